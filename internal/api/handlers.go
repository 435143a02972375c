package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"turnover/internal/domain"
	"turnover/internal/models"
)

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		if err := s.svc.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := newTaskQuery(r.URL.Query())
	if err := validateStruct(q); err != nil {
		s.fail(w, r, err)
		return
	}
	filter := models.TaskFilter{
		Status:     models.TaskStatus(q.Status),
		WorkerID:   parseID(q.WorkerID),
		PropertyID: parseID(q.PropertyID),
		StartDate:  dayStart(q.StartDate),
		EndDate:    dayEnd(q.EndDate),
	}

	actor, _ := actorFrom(r.Context())
	tasks, err := s.svc.Tasks.ListTasks(r.Context(), filter, actor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []*models.TaskView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *HTTPServer) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	task, err := s.svc.Tasks.GetTask(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// работник видит только свои задачи
	if actor, _ := actorFrom(r.Context()); actor.Type == models.ActorWorker && !task.AssignedTo(actor.ID) {
		s.fail(w, r, fmt.Errorf("task %d belongs to another worker: %w", id, domain.ErrForbidden))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleAssign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req assignRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	actor, _ := actorFrom(r.Context())
	task, err := s.svc.Tasks.Assign(r.Context(), id, req.WorkerID, actor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleStart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	actor, _ := actorFrom(r.Context())
	task, err := s.svc.Tasks.Start(r.Context(), id, actor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req completeRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	actor, _ := actorFrom(r.Context())
	task, err := s.svc.Tasks.Complete(r.Context(), id, actor, req.Notes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req cancelRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	actor, _ := actorFrom(r.Context())
	task, err := s.svc.Tasks.Cancel(r.Context(), id, actor, req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleChecklist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	itemID, err := pathID(r, "itemId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req checklistRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	actor, _ := actorFrom(r.Context())
	item, err := s.svc.Tasks.UpdateChecklistItem(r.Context(), id, itemID, *req.Completed, actor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	history, err := s.svc.Tasks.History(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	q := newBookingQuery(r.URL.Query())
	if err := validateStruct(q); err != nil {
		s.fail(w, r, err)
		return
	}
	bookings, err := s.svc.Overview.Bookings(r.Context(), models.BookingFilter{
		AccountID:  parseID(q.AccountID),
		PropertyID: parseID(q.PropertyID),
		StartDate:  dayStart(q.StartDate),
		EndDate:    dayEnd(q.EndDate),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []*models.BookingView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.svc.Overview.Accounts(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []*models.AccountOverview{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

const manualSyncKey = "ratelimit:manual_sync"

// handleSync runs a sync cycle now. Calls are throttled through the shared cache.
func (s *HTTPServer) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.svc.Sync == nil {
		writeError(w, http.StatusServiceUnavailable, "sync is not configured")
		return
	}
	if s.svc.Cache != nil {
		ok, err := s.svc.Cache.CheckRateLimit(r.Context(), manualSyncKey, s.manualSyncLimit, s.manualSyncWindow)
		if err != nil {
			s.log.Warn().Err(err).Msg("Manual sync throttle unavailable")
		} else if !ok {
			writeError(w, http.StatusTooManyRequests, "sync was triggered recently")
			return
		}
	}

	batch, err := s.svc.Sync.SyncAll(r.Context())
	code := http.StatusOK
	switch {
	case errors.Is(err, domain.ErrPartialFailure):
		code = http.StatusMultiStatus
	case err != nil:
		s.fail(w, r, err)
		return
	}
	writeJSON(w, code, map[string]any{"results": batch.Results, "failed": len(batch.Failed())})
}

func (s *HTTPServer) handleSyncRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.svc.Overview.SyncRuns(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []models.AccountSyncResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *HTTPServer) handleWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := s.svc.Overview.Workers(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if workers == nil {
		workers = []*models.Worker{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"workers": workers})
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	me, err := s.svc.Overview.Me(r.Context(), actor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	list, err := s.svc.Overview.Notifications(r.Context(), actor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func (s *HTTPServer) handleNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	actor, _ := actorFrom(r.Context())
	if err := s.svc.Overview.MarkNotificationRead(r.Context(), id, actor); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *HTTPServer) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Overview.Analytics(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *HTTPServer) handleTaskReport(w http.ResponseWriter, r *http.Request) {
	if s.svc.Reports == nil {
		writeError(w, http.StatusServiceUnavailable, "reports are not configured")
		return
	}
	q := reportQuery{From: r.URL.Query().Get("from"), To: r.URL.Query().Get("to")}
	if err := validateStruct(q); err != nil {
		s.fail(w, r, err)
		return
	}
	from, to := dayStart(q.From), dayEnd(q.To)
	if to.Before(*from) {
		s.fail(w, r, invalid("to is before from"))
		return
	}

	var buf bytes.Buffer
	if err := s.svc.Reports.Write(r.Context(), &buf, *from, *to); err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="tasks_%s_to_%s.xlsx"`, q.From, q.To))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

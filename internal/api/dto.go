package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"turnover/internal/domain"

	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

var validate = validator.New()

type assignRequest struct {
	WorkerID int64 `json:"worker_id" validate:"required,gt=0"`
}

type completeRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type checklistRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}

type taskQuery struct {
	Status     string `validate:"omitempty,oneof=pending assigned in_progress completed cancelled"`
	WorkerID   string `validate:"omitempty,number"`
	PropertyID string `validate:"omitempty,number"`
	StartDate  string `validate:"omitempty,datetime=2006-01-02"`
	EndDate    string `validate:"omitempty,datetime=2006-01-02"`
}

type bookingQuery struct {
	AccountID  string `validate:"omitempty,number"`
	PropertyID string `validate:"omitempty,number"`
	StartDate  string `validate:"omitempty,datetime=2006-01-02"`
	EndDate    string `validate:"omitempty,datetime=2006-01-02"`
}

type reportQuery struct {
	From string `validate:"required,datetime=2006-01-02"`
	To   string `validate:"required,datetime=2006-01-02"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, domain.ErrInvalidInput)...)
}

// decodeBody reads an optional JSON body into dst and validates it.
func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return invalid("invalid JSON body")
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return invalid("field %s failed %s", strings.ToLower(fe.Field()), fe.Tag())
		}
		return invalid("%v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("bad %s", name)
	}
	return id, nil
}

func parseID(raw string) int64 {
	id, _ := strconv.ParseInt(raw, 10, 64)
	return id
}

// dayStart parses YYYY-MM-DD as midnight UTC.
func dayStart(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}

// dayEnd parses YYYY-MM-DD as the last second of that UTC day.
func dayEnd(raw string) *time.Time {
	t := dayStart(raw)
	if t == nil {
		return nil
	}
	end := t.AddDate(0, 0, 1).Add(-time.Second)
	return &end
}

func newTaskQuery(q url.Values) taskQuery {
	return taskQuery{
		Status:     q.Get("status"),
		WorkerID:   q.Get("worker_id"),
		PropertyID: q.Get("property_id"),
		StartDate:  q.Get("start_date"),
		EndDate:    q.Get("end_date"),
	}
}

func newBookingQuery(q url.Values) bookingQuery {
	return bookingQuery{
		AccountID:  q.Get("account_id"),
		PropertyID: q.Get("property_id"),
		StartDate:  q.Get("start_date"),
		EndDate:    q.Get("end_date"),
	}
}

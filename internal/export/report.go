package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"turnover/internal/domain"
	"turnover/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	tasksSheet   = "Tasks"
	workersSheet = "Workers"
)

// TaskLister is the part of the task store the report reads.
type TaskLister interface {
	ListTasks(ctx context.Context, f models.TaskFilter) ([]*models.TaskView, error)
}

// Reporter renders cleaning tasks of a period into an XLSX workbook.
type Reporter struct {
	tasks  TaskLister
	dir    string
	logger *zerolog.Logger
}

func NewReporter(tasks TaskLister, dir string, logger *zerolog.Logger) *Reporter {
	return &Reporter{tasks: tasks, dir: dir, logger: logger}
}

// Write streams the report for tasks scheduled in [from, to] to w.
func (r *Reporter) Write(ctx context.Context, w io.Writer, from, to time.Time) error {
	f, err := r.build(ctx, from, to)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveFile writes the report into the export directory and returns its path.
func (r *Reporter) SaveFile(ctx context.Context, from, to time.Time) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := r.build(ctx, from, to)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := fmt.Sprintf("tasks_%s_to_%s.xlsx", from.Format("2006-01-02"), to.Format("2006-01-02"))
	path := filepath.Join(r.dir, fileName)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	r.logger.Info().Str("file_path", path).Msg("Excel report created")
	return path, nil
}

func (r *Reporter) build(ctx context.Context, from, to time.Time) (*excelize.File, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("report period ends before it starts: %w", domain.ErrInvalidInput)
	}
	tasks, err := r.tasks.ListTasks(ctx, models.TaskFilter{StartDate: &from, EndDate: &to})
	if err != nil {
		return nil, fmt.Errorf("error getting tasks: %w", err)
	}
	return Build(tasks, from, to)
}

// Build lays out the workbook: one row per task plus a per-worker summary.
func Build(tasks []*models.TaskView, from, to time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(tasksSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if _, err := f.NewSheet(workersSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	titleStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})

	_ = f.SetCellValue(tasksSheet, "A1", fmt.Sprintf("Period: %s - %s", from.Format("02.01.2006"), to.Format("02.01.2006")))
	_ = f.SetCellStyle(tasksSheet, "A1", "A1", titleStyle)

	headers := []string{"ID", "Property", "Address", "Scheduled", "Status", "Worker", "Guest", "Est. min", "Actual min", "Notes"}
	writeRow(f, tasksSheet, 2, toRow(headers))
	_ = f.SetCellStyle(tasksSheet, "A2", cellName(len(headers), 2), headerStyle)

	for i, t := range tasks {
		var actual interface{}
		if t.ActualDuration != nil {
			actual = *t.ActualDuration
		}
		writeRow(f, tasksSheet, i+3, []interface{}{
			t.ID,
			t.PropertyName,
			t.Address,
			t.ScheduledTime.UTC().Format("02.01.2006 15:04"),
			string(t.Status),
			str(t.WorkerName),
			str(t.GuestName),
			t.EstimatedDuration,
			actual,
			t.Notes,
		})
	}
	_ = f.SetColWidth(tasksSheet, "A", "A", 8)
	_ = f.SetColWidth(tasksSheet, "B", "G", 22)
	_ = f.SetColWidth(tasksSheet, "J", "J", 40)

	summaryHeaders := []string{"Worker", "Tasks", "Completed", "Actual min total"}
	writeRow(f, workersSheet, 1, toRow(summaryHeaders))
	_ = f.SetCellStyle(workersSheet, "A1", cellName(len(summaryHeaders), 1), headerStyle)
	for i, s := range summarize(tasks) {
		writeRow(f, workersSheet, i+2, []interface{}{s.name, s.tasks, s.completed, s.minutes})
	}
	_ = f.SetColWidth(workersSheet, "A", "A", 25)

	return f, nil
}

type workerSummary struct {
	name      string
	tasks     int
	completed int
	minutes   int
}

func summarize(tasks []*models.TaskView) []workerSummary {
	byName := make(map[string]*workerSummary)
	for _, t := range tasks {
		name := str(t.WorkerName)
		if name == "" {
			name = "(unassigned)"
		}
		s, ok := byName[name]
		if !ok {
			s = &workerSummary{name: name}
			byName[name] = s
		}
		s.tasks++
		if t.Status == models.TaskCompleted {
			s.completed++
		}
		if t.ActualDuration != nil {
			s.minutes += *t.ActualDuration
		}
	}

	out := make([]workerSummary, 0, len(byName))
	for _, s := range byName {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) {
	_ = f.SetSheetRow(sheet, cellName(1, row), &values)
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func toRow(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package google

import (
	"context"
	"fmt"
	"os"

	"turnover/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const tasksSheet = "Tasks"

var taskHeaders = []interface{}{
	"Task ID", "Property", "Address", "Scheduled", "Status", "Priority", "Worker", "Phone",
	"Guest", "Check-out", "Est. min", "Actual min", "Notes",
}

// TaskBoard mirrors the cleaning schedule into a Google spreadsheet for the ops team.
type TaskBoard struct {
	service       *sheets.Service
	spreadsheetID string
}

func NewTaskBoard(ctx context.Context, credentialsFile, spreadsheetID string) (*TaskBoard, error) {
	// Читаем ключ сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return NewTaskBoardWithService(srv, spreadsheetID), nil
}

func NewTaskBoardWithService(srv *sheets.Service, spreadsheetID string) *TaskBoard {
	return &TaskBoard{service: srv, spreadsheetID: spreadsheetID}
}

// TestConnection reads the header cell of the task sheet.
func (b *TaskBoard) TestConnection(ctx context.Context) error {
	_, err := b.service.Spreadsheets.Values.Get(b.spreadsheetID, tasksSheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// ReplaceTasksSheet rewrites the whole task sheet, header included.
func (b *TaskBoard) ReplaceTasksSheet(ctx context.Context, tasks []*models.TaskView) error {
	_, err := b.service.Spreadsheets.Values.Clear(b.spreadsheetID, tasksSheet+"!A1:Z", &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear tasks sheet: %w", err)
	}

	values := make([][]interface{}, 0, len(tasks)+1)
	values = append(values, taskHeaders)
	for _, t := range tasks {
		values = append(values, taskRowValues(t))
	}

	_, err = b.service.Spreadsheets.Values.Update(b.spreadsheetID, tasksSheet+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update tasks sheet: %w", err)
	}
	return nil
}

func taskRowValues(t *models.TaskView) []interface{} {
	actual := ""
	if t.ActualDuration != nil {
		actual = fmt.Sprintf("%d", *t.ActualDuration)
	}
	checkOut := ""
	if t.CheckOut != nil {
		checkOut = t.CheckOut.UTC().Format("02.01.2006 15:04")
	}
	return []interface{}{
		t.ID,
		t.PropertyName,
		t.Address,
		t.ScheduledTime.UTC().Format("02.01.2006 15:04"),
		string(t.Status),
		string(t.Priority),
		deref(t.WorkerName),
		deref(t.WorkerPhone),
		deref(t.GuestName),
		checkOut,
		t.EstimatedDuration,
		actual,
		t.Notes,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"famledger/internal/core"
	ports "famledger/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
}

var _ ports.ExpenseMirror = (*Client)(nil)

// Config selects the spreadsheet and the service account credentials. Either
// CredentialsJSON or CredentialsFile must be set; GOOGLE_APPLICATION_CREDENTIALS
// is used as a last resort.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client writing expense rows to cfg.SheetName
// (default "Expenses").
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Expenses"
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheet: sheet}, nil
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsJSON := []byte(strings.TrimSpace(cfg.CredentialsJSON))
	file := strings.TrimSpace(cfg.CredentialsFile)
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case len(credentialsJSON) > 0:
		slog.InfoContext(ctx, "Using inline JSON credentials")
	case file != "":
		var err error
		credentialsJSON, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read credentials file", "path", file, "size", len(credentialsJSON))
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) readIDColumn(ctx context.Context) ([][]any, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// UpsertExpense rewrites the expense's row in place, or appends one. An empty
// sheet gets the header row first.
func (c *Client) UpsertExpense(ctx context.Context, e core.FamilyExpense) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	colA, err := c.readIDColumn(ctx)
	if err != nil {
		return err
	}

	if row := findRow(colA, e.ID); row > 0 {
		vr := &gsheet.ValueRange{Values: [][]any{expenseRow(e)}}
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rowRange(c.sheet, row), vr).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update row %d in sheet %s: %w", row, c.sheet, err)
		}
		slog.InfoContext(ctx, "Expense row updated", "id", e.ID, "row", row)
		return nil
	}

	values := [][]any{expenseRow(e)}
	if len(colA) == 0 {
		values = append([][]any{header}, values...)
	}
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, fmt.Sprintf("%s!A:G", c.sheet), &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", c.sheet, err)
	}
	slog.InfoContext(ctx, "Expense row appended", "id", e.ID, "sheet", c.sheet)
	return nil
}

// RemoveExpense clears the expense's row. A missing row is not an error.
func (c *Client) RemoveExpense(ctx context.Context, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	colA, err := c.readIDColumn(ctx)
	if err != nil {
		return err
	}
	row := findRow(colA, id)
	if row == 0 {
		slog.DebugContext(ctx, "Expense row already absent", "id", id)
		return nil
	}

	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rowRange(c.sheet, row), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear row %d in sheet %s: %w", row, c.sheet, err)
	}
	slog.InfoContext(ctx, "Expense row cleared", "id", id, "row", row)
	return nil
}

package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"ssfarm/internal/core"
	ports "ssfarm/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var _ ports.BillSheetWriter = (*Client)(nil)

var header = []any{"Customer", "Phone", "Opening", "Litres", "Bill", "Paid", "Closing", "Status"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// New creates a Sheets client authenticated with a service account.
// credentialsJSON wins over credentialsFile when both are set.
func New(ctx context.Context, spreadsheetID, credentialsFile, credentialsJSON string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	var creds []byte
	switch {
	case strings.TrimSpace(credentialsJSON) != "":
		creds = []byte(credentialsJSON)
	case credentialsFile != "":
		raw, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		creds = raw
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_JSON or GOOGLE_CREDENTIALS_FILE)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID)
	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test endpoint.
func NewWithService(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID}
}

// SheetTitle names the tab holding a month's bills.
func SheetTitle(period string) string {
	return period + " Bills"
}

func (c *Client) WriteMonth(ctx context.Context, period string, rows []ports.BillRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	title := SheetTitle(period)

	if err := c.ensureSheet(ctx, title); err != nil {
		return "", err
	}

	all := fmt.Sprintf("'%s'!A:H", title)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, all, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", title, err)
	}

	values := buildValues(rows)
	rng := fmt.Sprintf("'%s'!A1:H%d", title, len(values))
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}

	slog.InfoContext(ctx, "Wrote monthly bills to sheet", "sheet", title, "rows", len(rows))
	return rng, nil
}

// ensureSheet adds the tab when the spreadsheet does not have it yet.
func (c *Client) ensureSheet(ctx context.Context, title string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	slog.InfoContext(ctx, "Created sheet tab", "sheet", title)
	return nil
}

// buildValues lays out the header, one row per bill and a totals row.
// Amounts are rounded to paise; the store keeps full precision.
func buildValues(rows []ports.BillRow) [][]any {
	out := make([][]any, 0, len(rows)+2)
	out = append(out, header)

	var qty, amount, paid, closing float64
	for _, r := range rows {
		out = append(out, []any{
			r.CustomerName, r.Phone,
			core.Round2(r.Opening), core.Round2(r.Quantity), core.Round2(r.Amount),
			core.Round2(r.Paid), core.Round2(r.Closing), r.Status,
		})
		qty += r.Quantity
		amount += r.Amount
		paid += r.Paid
		closing += r.Closing
	}
	out = append(out, []any{"Total", "", "", core.Round2(qty), core.Round2(amount), core.Round2(paid), core.Round2(closing), ""})
	return out
}

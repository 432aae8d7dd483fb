package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	ports "ssfarm/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type fakeSheets struct {
	mu       sync.Mutex
	titles   []string
	added    []string
	cleared  []string
	updated  map[string][][]any
	getCalls int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sheet-1"):
		f.getCalls++
		var sheets []map[string]any
		for _, t := range f.titles {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": t}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1", "sheets": sheets})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.added = append(f.added, rq.AddSheet.Properties.Title)
				f.titles = append(f.titles, rq.AddSheet.Properties.Title)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1"})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.cleared = append(f.cleared, path)
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1"})
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		if f.updated == nil {
			f.updated = map[string][][]any{}
		}
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		f.updated[rng] = vr.Values
		if r.URL.Query().Get("valueInputOption") != "RAW" {
			http.Error(w, `{"error":{"code":400,"message":"bad input option"}}`, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng})
	default:
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewWithService(svc, "sheet-1")
}

func TestWriteMonthCreatesTabAndWritesRows(t *testing.T) {
	fake := &fakeSheets{titles: []string{"Sheet1"}}
	c := newTestClient(t, fake)

	rows := []ports.BillRow{
		{CustomerName: "Asha", Phone: "9876543210", Opening: 100, Quantity: 30, Amount: 1800, Paid: 1000, Closing: 900, Status: "Partially Paid"},
		{CustomerName: "Ravi", Quantity: 15.5, Amount: 930, Closing: 930, Status: "Pending"},
	}

	rng, err := c.WriteMonth(context.Background(), "2024-06", rows)
	if err != nil {
		t.Fatalf("WriteMonth: %v", err)
	}
	if rng != "'2024-06 Bills'!A1:H4" {
		t.Errorf("unexpected range %q", rng)
	}
	if len(fake.added) != 1 || fake.added[0] != "2024-06 Bills" {
		t.Errorf("expected tab to be added, got %v", fake.added)
	}
	if len(fake.cleared) != 1 {
		t.Errorf("expected one clear call, got %d", len(fake.cleared))
	}

	values := fake.updated[rng]
	if len(values) != 4 {
		t.Fatalf("expected header, 2 rows and total, got %d rows", len(values))
	}
	if values[0][0] != "Customer" || values[3][0] != "Total" {
		t.Errorf("unexpected layout: %v", values)
	}
	if got := values[3][4].(float64); got != 2730 {
		t.Errorf("total bill = %v, want 2730", got)
	}

	// Second write reuses the tab.
	if _, err := c.WriteMonth(context.Background(), "2024-06", rows); err != nil {
		t.Fatalf("WriteMonth again: %v", err)
	}
	if len(fake.added) != 1 {
		t.Errorf("tab should not be added twice, got %v", fake.added)
	}
}

func TestWriteMonthWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "x"}
	if _, err := c.WriteMonth(context.Background(), "2024-06", nil); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, " ", "", "{}"); err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("expected missing id error, got %v", err)
	}
	if _, err := New(ctx, "id", "", ""); err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("expected missing credentials error, got %v", err)
	}
	if _, err := New(ctx, "id", "/does/not/exist.json", ""); err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("expected read error, got %v", err)
	}
}

func TestBuildValuesRoundsForDisplay(t *testing.T) {
	values := buildValues([]ports.BillRow{{CustomerName: "A", Amount: 10.005 + 0.0001, Quantity: 1.0 / 3}})
	if got := values[1][3].(float64); got != 0.33 {
		t.Errorf("quantity = %v, want 0.33", got)
	}
	if len(values) != 3 {
		t.Errorf("expected 3 rows, got %d", len(values))
	}
}

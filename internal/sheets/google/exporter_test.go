package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"smartfinance/internal/core"
	applog "smartfinance/internal/log"
)

func testRecord() core.TransactionRecord {
	return core.TransactionRecord{
		ID:          "11",
		Description: "Whole Foods",
		Amount:      decimal.RequireFromString("42.5"),
		Category:    "Food",
		Date:        "2024-04-02",
		Kind:        core.KindExpense,
		Merchant:    "Whole Foods Market",
	}
}

func newTestExporter(t *testing.T, h http.HandlerFunc) *Exporter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return NewWithService(svc, "sheet-id", "", applog.Discard())
}

func TestExportAppendsRow(t *testing.T) {
	var got gsheet.ValueRange
	var path, inputOption string

	e := newTestExporter(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		inputOption = r.URL.Query().Get("valueInputOption")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"Transactions!A7:F7"}}`))
	})

	ref, err := e.Export(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if ref != "Transactions!A7:F7" {
		t.Errorf("unexpected ref %q", ref)
	}
	if !strings.Contains(path, "/spreadsheets/sheet-id/values/") || !strings.HasSuffix(path, ":append") {
		t.Errorf("unexpected path %q", path)
	}
	if inputOption != "USER_ENTERED" {
		t.Errorf("unexpected valueInputOption %q", inputOption)
	}
	if len(got.Values) != 1 {
		t.Fatalf("expected one row, got %v", got.Values)
	}
	want := []string{"2024-04-02", "Whole Foods", "Food", "expense", "42.50", "Whole Foods Market"}
	for i, v := range got.Values[0] {
		if v != want[i] {
			t.Errorf("column %d: got %v, want %v", i, v, want[i])
		}
	}
}

func TestExportUpstreamError(t *testing.T) {
	e := newTestExporter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	})
	if _, err := e.Export(context.Background(), testRecord()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestExportRejectsInvalidRecord(t *testing.T) {
	e := NewWithService(nil, "sheet-id", "", applog.Discard())
	r := testRecord()
	r.ID = ""
	if _, err := e.Export(context.Background(), r); !errors.Is(err, core.ErrEmptyID) {
		t.Fatalf("expected ErrEmptyID, got %v", err)
	}
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	if _, err := New(context.Background(), Config{}, applog.Discard()); err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := New(context.Background(), Config{SpreadsheetID: "x"}, applog.Discard()); err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := New(context.Background(), Config{SpreadsheetID: "x", CredentialsFile: t.TempDir() + "/missing.json"}, applog.Discard()); err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", " abc ")
	t.Setenv("GOOGLE_SHEET_NAME", "Ledger")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/etc/sa.json")

	cfg := ConfigFromEnv()
	if cfg.SpreadsheetID != "abc" || cfg.SheetName != "Ledger" || cfg.CredentialsFile != "/etc/sa.json" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

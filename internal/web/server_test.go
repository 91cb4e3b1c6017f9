package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/JonMunkholm/CRM/internal/config"
	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/JonMunkholm/CRM/internal/core/entities"
	"github.com/JonMunkholm/CRM/internal/jobs"
	"github.com/JonMunkholm/CRM/internal/report"
	"github.com/JonMunkholm/CRM/internal/service"
	"github.com/JonMunkholm/CRM/internal/store"
	"github.com/JonMunkholm/CRM/internal/store/memory"
)

const customersCSV = "name,email\nAda,ada@x.com\nBob,not-an-email\n"

type fakeQueue struct {
	mu       sync.Mutex
	payloads []jobs.ImportPayload
}

func (q *fakeQueue) Enqueue(_ context.Context, p jobs.ImportPayload) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p.ImportID == "" {
		p.ImportID = "queued-1"
	}
	q.payloads = append(q.payloads, p)
	return p.ImportID, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(string) string { return "" })
	if err != nil {
		t.Fatal(err)
	}
	cfg.Rate.Enabled = false
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, queue Enqueuer) (*Server, *memory.Store) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig(t)
	}
	reg, err := entities.NewRegistry("")
	if err != nil {
		t.Fatal(err)
	}
	repo := memory.New()
	svc, err := service.New(service.Deps{Registry: reg, Repository: repo}, service.Options{
		MaxSourceSize: cfg.Import.MaxSourceSize,
	})
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(svc, cfg, queue)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, repo
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func csvRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	return req
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestEntities(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/entities", nil))
	list := decode[[]core.EntitySchema](t, rec)
	if len(list) != 4 {
		t.Errorf("got %d entities, want 4", len(list))
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/entities/customers/template", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("template status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "name,email,company,phone,customer_since,lifetime_value" {
		t.Errorf("template = %q", got)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "customers-template.csv") {
		t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/entities/invoices", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown entity status = %d", rec.Code)
	}
}

func TestImport_RawBody(t *testing.T) {
	s, repo := newTestServer(t, nil, nil)

	req := csvRequest(http.MethodPost, "/api/import/customers", customersCSV)
	req.Header.Set(ImportIDHeader, "import-42")
	rec := do(t, s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	sum := decode[core.ImportSummary](t, rec)
	if sum.ImportID != "import-42" {
		t.Errorf("ImportID = %q", sum.ImportID)
	}
	if sum.TotalRecords != 2 || sum.ImportedCount != 1 || len(sum.Rejected) != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if repo.Len("customers") != 1 {
		t.Errorf("stored %d customers", repo.Len("customers"))
	}
}

func TestImport_Multipart(t *testing.T) {
	tests := []struct {
		name  string
		build func(mw *multipart.Writer)
	}{
		{"file", func(mw *multipart.Writer) {
			fw, _ := mw.CreateFormFile("file", "customers.json")
			_, _ = fw.Write([]byte(`[{"name":"Ada","email":"ada@x.com"}]`))
		}},
		{"text with format", func(mw *multipart.Writer) {
			_ = mw.WriteField("format", "json")
			_ = mw.WriteField("text", `[{"name":"Ada","email":"ada@x.com"}]`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, nil, nil)

			var body bytes.Buffer
			mw := multipart.NewWriter(&body)
			tt.build(mw)
			_ = mw.Close()

			req := httptest.NewRequest(http.MethodPost, "/api/import/customers", &body)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			rec := do(t, s, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			sum := decode[core.ImportSummary](t, rec)
			if sum.Format != core.FormatJSON || sum.ImportedCount != 1 {
				t.Errorf("summary = %+v", sum)
			}
		})
	}
}

func TestImport_MultipartBlankText(t *testing.T) {
	tests := []struct {
		name     string
		text     *string
		wantCode int
	}{
		{"blank text imports nothing", ptr("  \n "), http.StatusOK},
		{"empty text imports nothing", ptr(""), http.StatusOK},
		{"no source field", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, repo := newTestServer(t, nil, nil)

			var body bytes.Buffer
			mw := multipart.NewWriter(&body)
			_ = mw.WriteField("format", "csv")
			if tt.text != nil {
				_ = mw.WriteField("text", *tt.text)
			}
			_ = mw.Close()

			req := httptest.NewRequest(http.MethodPost, "/api/import/customers", &body)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			rec := do(t, s, req)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				if got := decode[ErrorResponse](t, rec); got.Code != "FILE003" {
					t.Errorf("code = %q, want FILE003", got.Code)
				}
				return
			}
			sum := decode[core.ImportSummary](t, rec)
			if sum.TotalRecords != 0 || sum.ImportedCount != 0 || len(sum.Rejected) != 0 {
				t.Errorf("summary = %+v", sum)
			}
			if repo.Len("customers") != 0 {
				t.Error("nothing should be stored")
			}
		})
	}
}

func ptr(s string) *string { return &s }

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name     string
		req      func() *http.Request
		wantCode int
		wantErr  string
	}{
		{
			name:     "unknown entity",
			req:      func() *http.Request { return csvRequest(http.MethodPost, "/api/import/invoices", customersCSV) },
			wantCode: http.StatusNotFound,
			wantErr:  "IMP007",
		},
		{
			name: "malformed json",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/import/customers?format=json", strings.NewReader(`[{"name":`))
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "IMP001",
		},
		{
			name: "unknown format",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/import/customers?format=xml", strings.NewReader("<a/>"))
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "IMP008",
		},
		{
			name:     "empty body",
			req:      func() *http.Request { return httptest.NewRequest(http.MethodPost, "/api/import/customers", nil) },
			wantCode: http.StatusBadRequest,
			wantErr:  "FILE003",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, nil, nil)
			rec := do(t, s, tt.req())
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := decode[ErrorResponse](t, rec); got.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", got.Code, tt.wantErr)
			}
		})
	}
}

func TestImport_SourceTooLarge(t *testing.T) {
	cfg := testConfig(t)
	cfg.Import.MaxSourceSize = 10
	s, _ := newTestServer(t, cfg, nil)

	rec := do(t, s, csvRequest(http.MethodPost, "/api/import/customers", customersCSV))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestImport_HTMXError(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	req := csvRequest(http.MethodPost, "/api/import/invoices", customersCSV)
	req.Header.Set("HX-Request", "true")
	rec := do(t, s, req)

	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "Code: IMP007") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestPreview(t *testing.T) {
	s, repo := newTestServer(t, nil, nil)
	rec := do(t, s, csvRequest(http.MethodPost, "/api/import/customers/preview", customersCSV))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	p := decode[core.Preview](t, rec)
	if len(p.Results) != 2 || p.Summary.ImportedCount != 1 {
		t.Errorf("preview = %+v", p)
	}
	if repo.Len("customers") != 0 {
		t.Error("preview must not store records")
	}
}

func TestImportAsync(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s, _ := newTestServer(t, nil, nil)
		rec := do(t, s, csvRequest(http.MethodPost, "/api/import/customers/async", customersCSV))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d", rec.Code)
		}
		if got := decode[ErrorResponse](t, rec); got.Code != "IMP010" {
			t.Errorf("code = %q", got.Code)
		}
	})

	t.Run("queued", func(t *testing.T) {
		q := &fakeQueue{}
		s, _ := newTestServer(t, nil, q)
		rec := do(t, s, csvRequest(http.MethodPost, "/api/import/Customers/async?filename=c.csv", customersCSV))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		body := decode[map[string]string](t, rec)
		if body["importId"] != "queued-1" {
			t.Errorf("body = %v", body)
		}
		if len(q.payloads) != 1 {
			t.Fatalf("enqueued %d tasks", len(q.payloads))
		}
		p := q.payloads[0]
		if p.Entity != "customers" || p.Format != "csv" || p.Filename != "c.csv" || p.Text != customersCSV {
			t.Errorf("payload = %+v", p)
		}
	})

	t.Run("bad format", func(t *testing.T) {
		q := &fakeQueue{}
		s, _ := newTestServer(t, nil, q)
		rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/import/customers/async?format=xml", strings.NewReader("x")))
		if rec.Code != http.StatusBadRequest || len(q.payloads) != 0 {
			t.Errorf("status = %d, enqueued = %d", rec.Code, len(q.payloads))
		}
	})
}

func TestHistoryAndReport(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	req := csvRequest(http.MethodPost, "/api/import/customers", customersCSV)
	req.Header.Set(ImportIDHeader, "imp-1")
	if rec := do(t, s, req); rec.Code != http.StatusOK {
		t.Fatalf("import status = %d", rec.Code)
	}

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/imports/customers/history?limit=5", nil))
	list := decode[[]core.ImportSummary](t, rec)
	if len(list) != 1 || list[0].ImportID != "imp-1" {
		t.Fatalf("history = %+v", list)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/imports/customers/imp-1", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("summary status = %d", rec.Code)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/imports/customers/imp-1/report.xlsx", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("report status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != report.ContentType {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if rec.Body.Len() == 0 {
		t.Error("empty workbook")
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/imports/customers/missing/report.xlsx", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing report status = %d", rec.Code)
	}
}

func TestRecords(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	save := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/entities/customers/records", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return do(t, s, req)
	}

	rec := save(`{"name":"Ada","email":"ada@x.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", rec.Code, rec.Body.String())
	}
	saved := decode[store.Record](t, rec)
	if saved.ID == "" || saved.Fields["email"] != "ada@x.com" {
		t.Errorf("saved = %+v", saved)
	}

	rec = save(`{"email":"nope"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid save status = %d", rec.Code)
	}
	errBody := decode[ErrorResponse](t, rec)
	if errBody.Code != "VAL001" || len(errBody.Reasons) != 2 {
		t.Errorf("error = %+v", errBody)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/entities/customers/records", nil))
	if list := decode[[]store.Record](t, rec); len(list) != 1 {
		t.Errorf("list = %+v", list)
	}

	path := "/api/entities/customers/records/" + saved.ID
	if rec := do(t, s, httptest.NewRequest(http.MethodGet, path, nil)); rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}
	if rec := do(t, s, httptest.NewRequest(http.MethodDelete, path, nil)); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	rec = do(t, s, httptest.NewRequest(http.MethodGet, path, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Code != "STORE001" {
		t.Errorf("code = %q", got.Code)
	}
}

func TestSessionFlow(t *testing.T) {
	s, repo := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{"entity":"customers"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := do(t, s, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	st := decode[core.SessionState](t, rec)
	if st.Phase != core.PhaseIdle || st.Entity != "customers" {
		t.Fatalf("state = %+v", st)
	}
	base := "/api/sessions/" + st.ID

	// Submitting before loading is refused.
	if rec := do(t, s, httptest.NewRequest(http.MethodPost, base+"/submit", nil)); rec.Code != http.StatusConflict {
		t.Errorf("early submit status = %d", rec.Code)
	}

	rec = do(t, s, csvRequest(http.MethodPost, base+"/source", customersCSV))
	st = decode[core.SessionState](t, rec)
	if st.Phase != core.PhaseParsed || st.Format != core.FormatCSV || !st.FormatManual {
		t.Errorf("after load = %+v", st)
	}

	req = httptest.NewRequest(http.MethodPut, base+"/format", strings.NewReader(`{"format":"csv"}`))
	req.Header.Set("Content-Type", "application/json")
	if rec := do(t, s, req); rec.Code != http.StatusOK {
		t.Errorf("format status = %d", rec.Code)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodPost, base+"/submit", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body = %s", rec.Code, rec.Body.String())
	}
	st = decode[core.SessionState](t, rec)
	if st.Phase != core.PhaseDone || st.Summary == nil || st.Summary.ImportedCount != 1 {
		t.Errorf("after submit = %+v", st)
	}
	if repo.Len("customers") != 1 {
		t.Errorf("stored %d", repo.Len("customers"))
	}

	if rec := do(t, s, httptest.NewRequest(http.MethodPost, base+"/submit", nil)); rec.Code != http.StatusConflict {
		t.Errorf("second submit status = %d", rec.Code)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodPost, base+"/reset", nil))
	if st := decode[core.SessionState](t, rec); st.Phase != core.PhaseIdle {
		t.Errorf("after reset = %+v", st)
	}

	req = httptest.NewRequest(http.MethodGet, base, nil)
	req.Header.Set("HX-Request", "true")
	if rec := do(t, s, req); !strings.Contains(rec.Body.String(), "Waiting for a file") {
		t.Errorf("htmx body = %s", rec.Body.String())
	}

	if rec := do(t, s, httptest.NewRequest(http.MethodDelete, base, nil)); rec.Code != http.StatusNoContent {
		t.Errorf("close status = %d", rec.Code)
	}
	if rec := do(t, s, httptest.NewRequest(http.MethodGet, base, nil)); rec.Code != http.StatusNotFound {
		t.Errorf("get after close status = %d", rec.Code)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s, _ := newTestServer(t, cfg, nil)

	if rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/entities", nil)); rec.Code != http.StatusUnauthorized {
		t.Errorf("status without key = %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/entities", nil)
	req.Header.Set("X-API-Key", "secret")
	if rec := do(t, s, req); rec.Code != http.StatusOK {
		t.Errorf("status with key = %d", rec.Code)
	}
	if rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz should not need a key, status = %d", rec.Code)
	}
}

func TestImportRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 100
	cfg.Rate.ImportLimit = 1
	s, _ := newTestServer(t, cfg, nil)

	if rec := do(t, s, csvRequest(http.MethodPost, "/api/import/customers", customersCSV)); rec.Code != http.StatusOK {
		t.Fatalf("first import status = %d", rec.Code)
	}
	if rec := do(t, s, csvRequest(http.MethodPost, "/api/import/customers", customersCSV)); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second import status = %d", rec.Code)
	}
	if rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/entities", nil)); rec.Code != http.StatusOK {
		t.Errorf("reads keep the general budget, status = %d", rec.Code)
	}
}

func TestFormatFromContentType(t *testing.T) {
	tests := map[string]string{
		"text/csv":                        "csv",
		"application/json; charset=utf-8": "json",
		"text/plain":                      "",
		"":                                "",
	}
	for in, want := range tests {
		if got := formatFromContentType(in); got != want {
			t.Errorf("formatFromContentType(%q) = %q, want %q", in, got, want)
		}
	}
}

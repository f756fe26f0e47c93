package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forum/internal/assistant"
	"forum/internal/cache"
	"forum/internal/core"
	"forum/internal/metrics"
	"forum/internal/services"
	sheetmem "forum/internal/sheets/memory"
	"forum/internal/storage/memory"
)

type fakeGenerator struct{ reply string }

func (f fakeGenerator) GenerateText(context.Context, string, string) (string, error) {
	return f.reply, nil
}

type fakeConsent struct {
	codes []string
	err   error
}

func (f *fakeConsent) ConsentEnabled() bool { return true }
func (f *fakeConsent) AuthCodeURL(state string) (string, error) {
	return "https://accounts.example.com/auth?state=" + state, nil
}
func (f *fakeConsent) Exchange(_ context.Context, code string) error {
	f.codes = append(f.codes, code)
	return f.err
}

type testEnv struct {
	srv     *Server
	store   *memory.Store
	sheet   *sheetmem.Sheet
	consent *fakeConsent
}

type envOption func(*Options, *Services)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	store := memory.New()
	m := metrics.New()
	deps := services.Deps{
		Store:   store,
		Metrics: m,
		Summary: cache.NewLRUCache[core.Summary](1, time.Minute),
	}
	ledger := services.NewLedgerService(deps)
	dir := services.NewDirectoryService(deps, ledger)
	sheet := sheetmem.New()
	consent := &fakeConsent{}

	o := Options{Addr: ":0", Metrics: m, Store: store, RateLimitPerMinute: 1000}
	svc := Services{
		Ledger:    ledger,
		Directory: dir,
		Board:     services.NewBoardService(deps),
		Auditor:   services.NewAuditor(deps, 2),
		Importer:  services.NewImportService(deps, sheet, dir, "sheet-1", "Sheet1!A2:E100"),
		Assistant: assistant.NewService(fakeGenerator{reply: "আপনার সঞ্চয় ভালো আছে।"}, store, nil),
		Consent:   consent,
	}
	for _, opt := range opts {
		opt(&o, &svc)
	}
	srv := NewServer(o, svc)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, store: store, sheet: sheet, consent: consent}
}

func (e *testEnv) do(t *testing.T, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rdr)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[errorBody](t, rec).Error.Kind
}

func (e *testEnv) createMember(t *testing.T, id string) core.Member {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/members", map[string]any{"id": id, "name": "সদস্য " + id})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[core.Member](t, rec)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/readyz", nil).Code)

	require.NoError(t, env.store.Close())
	rec = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "store_unavailable", errorKind(t, rec))
}

func TestMemberCRUD(t *testing.T) {
	env := newTestEnv(t)

	m := env.createMember(t, "M-001")
	assert.Equal(t, "M-001@al-ittehad.com", m.Email)
	assert.Equal(t, core.NewMoney(2000), m.MonthlySavings)
	assert.Equal(t, core.RoleMember, m.Role)

	rec := env.do(t, http.MethodPost, "/api/members", map[string]any{"id": "M-001", "name": "dup"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict_error", errorKind(t, rec))

	rec = env.do(t, http.MethodPost, "/api/members", `{"id":"M-002","name":"x","nickname":"y"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorKind(t, rec))

	rec = env.do(t, http.MethodGet, "/api/members/M-999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found_error", errorKind(t, rec))

	rec = env.do(t, http.MethodPut, "/api/members/M-001", map[string]any{"phone": "01700000000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "01700000000", decode[core.Member](t, rec).Phone)

	list := decode[[]core.Member](t, env.do(t, http.MethodGet, "/api/members", nil))
	require.Len(t, list, 1)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/members/M-001", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/members/M-001", nil).Code)
}

func TestRecordTransaction(t *testing.T) {
	env := newTestEnv(t)
	env.createMember(t, "M-001")

	rec := env.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"memberId": "M-001", "amount": 2000, "kind": "deposit", "description": "Monthly Savings", "occurredOn": "2024-03-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[map[string]string](t, rec)["id"]
	assert.True(t, strings.HasPrefix(id, "tx-"))

	m := decode[core.Member](t, env.do(t, http.MethodGet, "/api/members/M-001", nil))
	assert.Equal(t, core.NewMoney(2000), m.TotalSaved)

	// original field names are accepted too
	rec = env.do(t, http.MethodPost, "/api/transactions", `{"memberId":"M-001","amount":"150.50","type":"profit","description":"Q1","date":"2024-04-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	txs := decode[[]core.Transaction](t, env.do(t, http.MethodGet, "/api/members/M-001/transactions", nil))
	require.Len(t, txs, 2)
	assert.Equal(t, core.KindProfit, txs[0].Kind, "newest first")
	assert.Equal(t, int64(15050), txs[0].Amount.Cents)

	all := decode[[]core.Transaction](t, env.do(t, http.MethodGet, "/api/transactions", nil))
	assert.Len(t, all, 2)
	assert.Empty(t, decode[[]core.Transaction](t, env.do(t, http.MethodGet, "/api/members/M-999/transactions", nil)))
}

func TestRecordTransactionErrors(t *testing.T) {
	env := newTestEnv(t)
	env.createMember(t, "M-001")

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"unknown member", `{"memberId":"M-999","amount":10,"kind":"deposit","description":"x"}`, 404, "not_found_error"},
		{"missing amount", `{"memberId":"M-001","kind":"deposit","description":"x"}`, 400, "validation_error"},
		{"null amount", `{"memberId":"M-001","amount":null,"kind":"deposit","description":"x"}`, 400, "validation_error"},
		{"text amount", `{"memberId":"M-001","amount":"abc","kind":"deposit","description":"x"}`, 400, "validation_error"},
		{"bad kind", `{"memberId":"M-001","amount":10,"kind":"withdrawal","description":"x"}`, 400, "validation_error"},
		{"kind and type disagree", `{"memberId":"M-001","amount":10,"kind":"deposit","type":"due","description":"x"}`, 400, "validation_error"},
		{"empty description", `{"memberId":"M-001","amount":10,"kind":"deposit","description":"  "}`, 400, "validation_error"},
		{"bad date", `{"memberId":"M-001","amount":10,"kind":"deposit","description":"x","occurredOn":"yesterday"}`, 400, "validation_error"},
		{"empty body", ``, 400, "validation_error"},
		{"trailing data", `{"memberId":"M-001","amount":10,"kind":"deposit","description":"x"} {}`, 400, "validation_error"},
		{"trailing brace", `{"memberId":"M-001","amount":10,"kind":"deposit","description":"x"}}`, 400, "validation_error"},
		{"sub-cent amount", `{"memberId":"M-001","amount":12.345,"kind":"deposit","description":"x"}`, 400, "validation_error"},
		{"sub-cent text amount", `{"memberId":"M-001","amount":"0.001","kind":"deposit","description":"x"}`, 400, "validation_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/transactions", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, errorKind(t, rec))
		})
	}

	m := decode[core.Member](t, env.do(t, http.MethodGet, "/api/members/M-001", nil))
	assert.Zero(t, m.TotalSaved.Cents)
}

func TestRecordTransactionOverflow(t *testing.T) {
	env := newTestEnv(t)
	env.createMember(t, "M-001")

	// 92233720368547758.00 is 2^63-8 cents.
	rec := env.do(t, http.MethodPut, "/api/members/M-001", `{"totalSaved":"92233720368547758.00"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/transactions", `{"memberId":"M-001","amount":1,"kind":"deposit","description":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "validation_error", errorKind(t, rec))

	m := decode[core.Member](t, env.do(t, http.MethodGet, "/api/members/M-001", nil))
	assert.Equal(t, int64(9223372036854775800), m.TotalSaved.Cents)
}

func TestRecordTransactionIdempotency(t *testing.T) {
	env := newTestEnv(t)
	env.createMember(t, "M-001")
	body := map[string]any{"memberId": "M-001", "amount": 500, "kind": "deposit", "description": "retry me"}

	first := env.do(t, http.MethodPost, "/api/transactions", body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.Code)
	second := env.do(t, http.MethodPost, "/api/transactions", body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusOK, second.Code)

	firstID := decode[map[string]any](t, first)["id"]
	replay := decode[map[string]any](t, second)
	assert.Equal(t, firstID, replay["id"])
	assert.Equal(t, true, replay["replayed"])

	m := decode[core.Member](t, env.do(t, http.MethodGet, "/api/members/M-001", nil))
	assert.Equal(t, core.NewMoney(500), m.TotalSaved)

	body["amount"] = 600
	rec := env.do(t, http.MethodPost, "/api/transactions", body, "Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	body["idempotencyKey"] = "k-2"
	rec = env.do(t, http.MethodPost, "/api/transactions", body, "Idempotency-Key", "k-3")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverrideAndAudit(t *testing.T) {
	env := newTestEnv(t)
	env.createMember(t, "M-001")
	env.createMember(t, "M-002")
	env.do(t, http.MethodPost, "/api/transactions", map[string]any{"memberId": "M-001", "amount": 100, "kind": "deposit", "description": "d"})

	rec := env.do(t, http.MethodPut, "/api/members/M-001", map[string]any{"totalSaved": 175, "totalDue": 50})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rep := decode[core.DriftReport](t, env.do(t, http.MethodGet, "/api/members/M-001/audit", nil))
	assert.Equal(t, core.NewMoney(75), rep.Drift)

	all := decode[auditResponse](t, env.do(t, http.MethodGet, "/api/audit", nil))
	assert.Equal(t, 2, all.Members)
	assert.Equal(t, 1, all.DriftMembers)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/members/M-404/audit", nil).Code)

	sum := decode[core.Summary](t, env.do(t, http.MethodGet, "/api/summary", nil))
	assert.Equal(t, 2, sum.Members)
	assert.Equal(t, core.NewMoney(175), sum.TotalSaved)
	assert.Equal(t, core.NewMoney(50), sum.TotalDue)
}

func TestNoticesAndProjects(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/notices", map[string]any{"title": "সভা", "content": "শুক্রবার সভা", "date": "2024-05-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	n := decode[core.Notice](t, rec)
	assert.Equal(t, services.DefaultNoticeAuthor, n.Author)
	assert.Equal(t, core.PriorityMedium, n.Priority)
	assert.Equal(t, "/api/notices/"+n.ID, rec.Header().Get("Location"))

	rec = env.do(t, http.MethodPut, "/api/notices/"+n.ID, map[string]any{"title": "সভা", "content": "শনিবার", "priority": "high"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, core.PriorityHigh, decode[core.Notice](t, rec).Priority)
	assert.Len(t, decode[[]core.Notice](t, env.do(t, http.MethodGet, "/api/notices", nil)), 1)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/notices/"+n.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/notices/"+n.ID, nil).Code)

	rec = env.do(t, http.MethodPost, "/api/projects", map[string]any{"title": "Super Shop", "investmentAmount": 500000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[core.ProjectUpdate](t, rec)
	assert.Equal(t, core.StatusRunning, p.Status)
	assert.Contains(t, p.ImageURL, p.ID)

	rec = env.do(t, http.MethodPost, "/api/projects", map[string]any{"title": "bad", "investmentAmount": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/projects/"+p.ID, map[string]any{"title": "Super Shop", "investmentAmount": 600000, "status": "profitable"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sum := decode[core.Summary](t, env.do(t, http.MethodGet, "/api/summary", nil))
	assert.Equal(t, core.NewMoney(600000), sum.TotalInvestment)

	assert.Len(t, decode[[]core.ProjectUpdate](t, env.do(t, http.MethodGet, "/api/projects", nil)), 1)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/projects/"+p.ID, nil).Code)
}

func TestImportSheets(t *testing.T) {
	env := newTestEnv(t)
	env.createMember(t, "M-001")
	env.sheet.Put("sheet-1", "Sheet1!A2:E100", [][]string{
		{"M-001", "সদস্য ১", "40000", "2000", "1500"},
		{"M-002", "সদস্য ২", "38000", "", "1500"},
		{"", "no id", "1", "1", "1"},
	})

	rec := env.do(t, http.MethodPost, "/api/import/sheets", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[services.ImportReport](t, rec)
	assert.Equal(t, services.ImportReport{Imported: 2, Created: 1, Updated: 1, Skipped: 1}, report)

	m := decode[core.Member](t, env.do(t, http.MethodGet, "/api/members/M-002", nil))
	assert.Equal(t, core.NewMoney(38000), m.TotalSaved)

	rec = env.do(t, http.MethodPost, "/api/import/sheets", map[string]any{"range": "Other!A1:E2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	disabled := newTestEnv(t, func(_ *Options, s *Services) { s.Importer = nil })
	rec = disabled.do(t, http.MethodPost, "/api/import/sheets", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "configuration_error", errorKind(t, rec))
}

func TestGoogleConsentFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/auth/google/url", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	u, err := url.Parse(decode[map[string]string](t, rec)["url"])
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/auth/google/callback?state=forged&code=c", nil).Code)

	rec = env.do(t, http.MethodGet, "/auth/google/callback?state="+state+"&code=auth-code", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"auth-code"}, env.consent.codes)

	rec = env.do(t, http.MethodGet, "/auth/google/callback?state="+state+"&code=auth-code", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "state is single use")

	env.consent.err = errors.New("invalid_grant")
	rec = env.do(t, http.MethodGet, "/api/auth/google/url", nil)
	u, _ = url.Parse(decode[map[string]string](t, rec)["url"])
	rec = env.do(t, http.MethodGet, "/auth/google/callback?state="+u.Query().Get("state")+"&code=x", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	disabled := newTestEnv(t, func(_ *Options, s *Services) { s.Consent = nil })
	assert.Equal(t, http.StatusServiceUnavailable, disabled.do(t, http.MethodGet, "/api/auth/google/url", nil).Code)
}

func TestAssistant(t *testing.T) {
	env := newTestEnv(t)
	env.createMember(t, "M-001")

	rec := env.do(t, http.MethodPost, "/api/assistant", map[string]any{"memberId": "M-001", "prompt": "আমার বকেয়া কত?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "আপনার সঞ্চয় ভালো আছে।", decode[assistant.Answer](t, rec).Reply)

	rec = env.do(t, http.MethodPost, "/api/assistant", map[string]any{"prompt": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	off := newTestEnv(t, func(_ *Options, s *Services) { s.Assistant = assistant.NewService(nil, nil, nil) })
	rec = off.do(t, http.MethodPost, "/api/assistant", map[string]any{"prompt": "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "assistant_unavailable", errorKind(t, rec))
}

func TestWriteRateLimit(t *testing.T) {
	env := newTestEnv(t, func(o *Options, _ *Services) { o.RateLimitPerMinute = 2 })

	for i := 0; i < 2; i++ {
		env.do(t, http.MethodPost, "/api/notices", map[string]any{"title": "t", "content": "c"})
	}
	rec := env.do(t, http.MethodPost, "/api/notices", map[string]any{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", errorKind(t, rec))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/notices", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/members/M-404", nil)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `forum_http_requests_total{method="GET",route="GET /api/members/{id}",status="404"} 1`)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPatch, "/api/members", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

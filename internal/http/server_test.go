package http

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"tally/internal/services"
	"tally/internal/session"
	"tally/internal/store/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st := memory.New([]string{"Groceries", "Transport"}, []string{"Salary"})
	svc := services.NewLedgerService(st, nil)
	mgr := session.NewManager(100, time.Hour, st.DropSession, nil)
	return NewServer(":0", svc, mgr)
}

// do runs a request through the full middleware stack.
func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

// sessionCookie pulls the session cookie out of a response.
func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func postForm(s *Server, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return do(s, req)
}

func get(s *Server, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return do(s, req)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	if rec := get(s, "/healthz", nil); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
	if rec := get(s, "/readyz", nil); rec.Code != http.StatusOK || rec.Body.String() != "ready" {
		t.Fatalf("readyz: %d %q", rec.Code, rec.Body.String())
	}
}

func TestIndexOpensSession(t *testing.T) {
	s := newTestServer(t)

	rec := get(s, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("index: %d", rec.Code)
	}
	c := sessionCookie(t, rec)
	if !c.HttpOnly || c.Value == "" {
		t.Fatalf("cookie not hardened: %+v", c)
	}
	if !strings.Contains(rec.Body.String(), "Groceries") {
		t.Fatal("index missing seeded categories")
	}
}

func TestAddTransactionFlow(t *testing.T) {
	s := newTestServer(t)
	cookie := sessionCookie(t, get(s, "/", nil))

	rec := postForm(s, "/transactions", url.Values{
		"kind":        {"expense"},
		"date":        {"2025-06-01"},
		"category":    {"Groceries"},
		"description": {"weekly shop"},
		"amount":      {"42.50"},
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("add: %d %s", rec.Code, rec.Body.String())
	}
	if trigger := rec.Header().Get("HX-Trigger"); !strings.Contains(trigger, "ledger:changed") {
		t.Fatalf("missing trigger: %q", trigger)
	}

	rec = get(s, "/ui/ledger", cookie)
	body := rec.Body.String()
	if !strings.Contains(body, "weekly shop") || !strings.Contains(body, "-42.50") {
		t.Fatalf("ledger partial missing row: %s", body)
	}
}

func TestAddTransactionBlankDescription(t *testing.T) {
	s := newTestServer(t)
	cookie := sessionCookie(t, get(s, "/", nil))

	rec := postForm(s, "/transactions", url.Values{
		"kind":     {"expense"},
		"date":     {"2025-06-01"},
		"category": {"Groceries"},
		"amount":   {"5"},
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("add: %d", rec.Code)
	}

	body := get(s, "/export", cookie).Body.String()
	if !strings.Contains(body, "2025-06-01,Groceries,-,-5.00,Expense") {
		t.Fatalf("blank description not stored as dash: %s", body)
	}
}

func TestAddTransactionInvalidAmount(t *testing.T) {
	s := newTestServer(t)
	cookie := sessionCookie(t, get(s, "/", nil))

	rec := postForm(s, "/transactions", url.Values{
		"kind":     {"expense"},
		"category": {"Groceries"},
		"amount":   {"not-a-number"},
	}, cookie)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestEditTransaction(t *testing.T) {
	s := newTestServer(t)
	cookie := sessionCookie(t, get(s, "/", nil))

	postForm(s, "/transactions", url.Values{
		"kind": {"expense"}, "category": {"Groceries"}, "description": {"before"}, "amount": {"10"},
	}, cookie)

	rec := postForm(s, "/transactions/edit", url.Values{
		"position":    {"0"},
		"kind":        {"income"},
		"date":        {"2025-06-02"},
		"category":    {"Salary"},
		"description": {"after"},
		"amount":      {"99"},
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit: %d %s", rec.Code, rec.Body.String())
	}

	body := get(s, "/ui/ledger", cookie).Body.String()
	if !strings.Contains(body, "after") || strings.Contains(body, "before") {
		t.Fatalf("edit not reflected: %s", body)
	}
}

func TestDeleteTransactionOutOfRange(t *testing.T) {
	s := newTestServer(t)
	cookie := sessionCookie(t, get(s, "/", nil))

	rec := postForm(s, "/transactions/delete", url.Values{"position": {"3"}}, cookie)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAddCategoryConflicts(t *testing.T) {
	s := newTestServer(t)
	cookie := sessionCookie(t, get(s, "/", nil))

	rec := postForm(s, "/categories", url.Values{"kind": {"expense"}, "name": {"Pet Care"}}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("add category: %d", rec.Code)
	}
	rec = postForm(s, "/categories", url.Values{"kind": {"expense"}, "name": {"Pet Care"}}, cookie)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	rec = postForm(s, "/categories", url.Values{"kind": {"expense"}, "name": {"  "}}, cookie)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestCategoryOptionsPartial(t *testing.T) {
	s := newTestServer(t)
	cookie := sessionCookie(t, get(s, "/", nil))

	body := get(s, "/ui/categories?kind=income", cookie).Body.String()
	if !strings.Contains(body, "Salary") || strings.Contains(body, "Groceries") {
		t.Fatalf("wrong options for income: %s", body)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	s := newTestServer(t)
	alice := sessionCookie(t, get(s, "/", nil))
	bob := sessionCookie(t, get(s, "/", nil))

	postForm(s, "/transactions", url.Values{
		"kind": {"expense"}, "category": {"Groceries"}, "description": {"alice-only"}, "amount": {"5"},
	}, alice)

	if body := get(s, "/ui/ledger", bob).Body.String(); strings.Contains(body, "alice-only") {
		t.Fatal("bob can see alice's ledger")
	}
}

func importCSV(t *testing.T, s *Server, cookie *http.Cookie, mode, csv string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "upload.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = io.WriteString(fw, csv)
	_ = mw.WriteField("mode", mode)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	return do(s, req)
}

func TestImportExportRoundTrip(t *testing.T) {
	s := newTestServer(t)
	cookie := sessionCookie(t, get(s, "/", nil))

	csv := "date,category,description,amount,type\n" +
		"2025-01-01,Rent,January,800,expense\n" +
		"2025-01-02,Salary,January pay,2000,income\n"
	rec := importCSV(t, s, cookie, "replace", csv)
	if rec.Code != http.StatusOK {
		t.Fatalf("import: %d %s", rec.Code, rec.Body.String())
	}

	rec = get(s, "/export", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type: %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "2025-01-01,Rent,January,-800.00,Expense") {
		t.Fatalf("export missing row: %s", body)
	}
}

func TestImportRejectsBadRows(t *testing.T) {
	s := newTestServer(t)
	cookie := sessionCookie(t, get(s, "/", nil))

	postForm(s, "/transactions", url.Values{
		"kind": {"expense"}, "category": {"Groceries"}, "description": {"keep"}, "amount": {"5"},
	}, cookie)

	csv := "date,category,description,amount,type\n" +
		"bad-date,Rent,x,800,expense\n"
	rec := importCSV(t, s, cookie, "replace", csv)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	if body := get(s, "/ui/ledger", cookie).Body.String(); !strings.Contains(body, "keep") {
		t.Fatal("failed import wiped ledger")
	}
}

func TestRateLimiterAllowsThenBlocks(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 60; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d blocked too early", i)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("request 61 should be blocked")
	}
	if !rl.allow("10.0.0.2") {
		t.Fatal("other clients must not be affected")
	}
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"opsdeck/internal/domain"
	"opsdeck/internal/overview"
)

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

type fakeAuth struct {
	users map[string]domain.User
	err   error
}

func (f *fakeAuth) ViewerByToken(_ context.Context, token string, _ time.Time) (domain.User, error) {
	if f.err != nil {
		return domain.User{}, f.err
	}
	user, ok := f.users[token]
	if !ok {
		return domain.User{}, domain.ErrUnauthenticated
	}
	return user, nil
}

type fakeOverview struct {
	result overview.Result
	err    error

	gotViewer    domain.User
	gotTimeframe domain.Timeframe
	gotForce     bool
	calls        int
}

func (f *fakeOverview) Overview(_ context.Context, viewer domain.User, timeframe domain.Timeframe, forceRefresh bool) (overview.Result, error) {
	f.calls++
	f.gotViewer = viewer
	f.gotTimeframe = timeframe
	f.gotForce = forceRefresh
	return f.result, f.err
}

func testHandler(svc *fakeOverview) *Handler {
	auth := &fakeAuth{users: map[string]domain.User{
		"tok-1": {ID: "u1", DisplayName: "Dana", Role: domain.RoleMember},
	}}
	return NewHandler(auth, svc, func() time.Time { return testNow }, nil)
}

func postOverview(h *Handler, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/overview", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var envelope ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, rec.Body.String())
	}
	return envelope.Error
}

func TestOverviewSuccess(t *testing.T) {
	svc := &fakeOverview{result: overview.Result{
		Summary: domain.Summary{
			Metrics:   domain.Metrics{TasksDone: 3, NewLeads: 1, ActiveProjects: 2, BlockedTasks: 1},
			Highlight: "A busy week.",
		},
		CacheStatus: overview.CacheMiss,
		CachedAt:    testNow,
		ExpiresAt:   testNow.Add(time.Hour),
	}}
	rec := postOverview(testHandler(svc), "tok-1", `{"timeframeDays":14,"forceRefresh":true}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if svc.gotViewer.ID != "u1" || svc.gotTimeframe != domain.TimeframeFortnight || !svc.gotForce {
		t.Fatalf("service called with viewer=%+v timeframe=%v force=%v", svc.gotViewer, svc.gotTimeframe, svc.gotForce)
	}
	if got := rec.Header().Get("X-Overview-Cache"); got != "miss" {
		t.Fatalf("cache header = %q", got)
	}
	if got := rec.Header().Get("X-Overview-Cached-At"); got != "2026-08-30T12:00:00Z" {
		t.Fatalf("cached-at header = %q", got)
	}
	if got := rec.Header().Get("X-Overview-Expires-At"); got != "2026-08-30T13:00:00Z" {
		t.Fatalf("expires-at header = %q", got)
	}

	var summary domain.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if summary.Highlight != "A busy week." || summary.Metrics.TasksDone != 3 {
		t.Fatalf("body = %+v", summary)
	}
}

func TestOverviewDefaultsTimeframe(t *testing.T) {
	svc := &fakeOverview{}
	rec := postOverview(testHandler(svc), "tok-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if svc.gotTimeframe != domain.TimeframeWeek {
		t.Fatalf("default timeframe = %v", svc.gotTimeframe)
	}
	if svc.gotForce {
		t.Fatal("forceRefresh defaulted to true")
	}
}

func TestOverviewMissingToken(t *testing.T) {
	svc := &fakeOverview{}
	rec := postOverview(testHandler(svc), "", "{}")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if apiErr := decodeError(t, rec); apiErr.Code != "unauthenticated" {
		t.Fatalf("error code = %q", apiErr.Code)
	}
	if svc.calls != 0 {
		t.Fatal("service reached without a session")
	}
}

func TestOverviewUnknownToken(t *testing.T) {
	rec := postOverview(testHandler(&fakeOverview{}), "nope", "{}")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestOverviewNonBearerScheme(t *testing.T) {
	h := testHandler(&fakeOverview{})
	req := httptest.NewRequest(http.MethodPost, "/overview", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestOverviewSessionStoreFailure(t *testing.T) {
	h := NewHandler(&fakeAuth{err: errors.New("db locked")}, &fakeOverview{}, func() time.Time { return testNow }, nil)
	rec := postOverview(h, "tok-1", "{}")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestOverviewRejectsBadTimeframe(t *testing.T) {
	svc := &fakeOverview{}
	rec := postOverview(testHandler(svc), "tok-1", `{"timeframeDays":3}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if apiErr := decodeError(t, rec); apiErr.Code != "invalid_request" {
		t.Fatalf("error code = %q", apiErr.Code)
	}
	if svc.calls != 0 {
		t.Fatal("service reached with invalid timeframe")
	}
}

func TestOverviewRejectsMalformedBody(t *testing.T) {
	for _, body := range []string{"{not json", `{"unknownField":1}`, `{"timeframeDays":7}{"again":true}`} {
		rec := postOverview(testHandler(&fakeOverview{}), "tok-1", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d", body, rec.Code)
		}
	}
}

func TestOverviewInternalFailureIsOpaque(t *testing.T) {
	svc := &fakeOverview{err: errors.New("sqlite disk io error at page 12")}
	rec := postOverview(testHandler(svc), "tok-1", "{}")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	apiErr := decodeError(t, rec)
	if apiErr.Message != "internal error" {
		t.Fatalf("internal detail leaked: %q", apiErr.Message)
	}
}

func TestOverviewMethodNotAllowed(t *testing.T) {
	h := testHandler(&fakeOverview{})
	req := httptest.NewRequest(http.MethodGet, "/overview", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != http.MethodPost {
		t.Fatalf("allow header = %q", got)
	}
}

func TestUnknownEndpoint(t *testing.T) {
	h := testHandler(&fakeOverview{})
	req := httptest.NewRequest(http.MethodPost, "/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

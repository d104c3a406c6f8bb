package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/contesthub/internal/contest"
	"github.com/hitoshi/contesthub/internal/metrics"
	"github.com/hitoshi/contesthub/internal/middleware"
	"github.com/hitoshi/contesthub/internal/model"
	"github.com/hitoshi/contesthub/internal/repository"
	"github.com/hitoshi/contesthub/internal/stats"
)

// fakeAdapter はContestSourceとUserFetcherを兼ねるテスト用アダプタ。
type fakeAdapter struct {
	platform model.Platform
	contests []model.Contest
	users    map[string]*model.UserStats
}

func (f *fakeAdapter) Platform() model.Platform { return f.platform }

func (f *fakeAdapter) FetchContests(ctx context.Context) []model.Contest {
	out := make([]model.Contest, len(f.contests))
	copy(out, f.contests)
	return out
}

func (f *fakeAdapter) FetchUser(ctx context.Context, handle string) (*model.UserStats, error) {
	if u, ok := f.users[handle]; ok {
		return u, nil
	}
	return nil, model.NewNotFoundError(f.platform, handle)
}

type fakePinger struct {
	err error
}

func (p *fakePinger) PingContext(ctx context.Context) error { return p.err }

// newTestRouter は実際の集約・解決ロジックとフェイクのアダプタでルーターを組み立てる。
func newTestRouter(t *testing.T, mutate func(*RouterDeps)) (http.Handler, *prometheus.Registry) {
	t.Helper()
	cf := &fakeAdapter{
		platform: model.PlatformCodeforces,
		contests: []model.Contest{model.NewContest(model.PlatformCodeforces, "Codeforces Round 950", 3000, 7200, "https://codeforces.com/contests/1980")},
		users: map[string]*model.UserStats{
			"tourist": {Platform: model.PlatformCodeforces, Codeforces: &model.CodeforcesUser{Handle: "tourist", Rating: 3800, Rank: "legendary grandmaster"}},
		},
	}
	lc := &fakeAdapter{
		platform: model.PlatformLeetCode,
		contests: []model.Contest{model.NewContest(model.PlatformLeetCode, "Weekly Contest 400", 1000, 5400, "https://leetcode.com/contest/weekly-contest-400")},
	}
	cc := &fakeAdapter{platform: model.PlatformCodeChef}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	repo := repository.NewMemoryConnectionRepo()
	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(limiter.Stop)

	deps := &RouterDeps{
		Logger:            testLogger(),
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       limiter,
		StatusRecorder:    collector,
		Contests:          contest.NewAggregator(testLogger(), collector, cf, lc, cc),
		Stats:             stats.NewResolver(testLogger(), collector, repo, cf, lc),
		Connections:       repo,
		MetricsHandler:    metrics.Handler(reg),
	}
	if mutate != nil {
		mutate(deps)
	}
	return NewRouter(deps), reg
}

func doRequest(h http.Handler, method, path, body, userID string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_Index(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := doRequest(r, http.MethodGet, "/", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body indexResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Message != "Coding Contests API" {
		t.Errorf("message = %q", body.Message)
	}
	if _, ok := body.Endpoints["/contests"]; !ok {
		t.Error("endpoints should list /contests")
	}
}

func TestRouter_ContestsMergedAndSorted(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := doRequest(r, http.MethodGet, "/contests", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	env := parseEnvelope(t, w)
	if env.Count == nil || *env.Count != 2 {
		t.Fatalf("count = %v, want 2", env.Count)
	}
	var contests []model.Contest
	if err := json.Unmarshal(env.Data, &contests); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if contests[0].Platform != model.PlatformLeetCode || contests[1].Platform != model.PlatformCodeforces {
		t.Errorf("order = [%s %s], want [LeetCode Codeforces]", contests[0].Platform, contests[1].Platform)
	}
}

func TestRouter_PlatformContests(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := doRequest(r, http.MethodGet, "/contests/codechef", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	env := parseEnvelope(t, w)
	if env.Count == nil || *env.Count != 0 || string(env.Data) != "[]" {
		t.Errorf("envelope = count %v data %s, want empty list", env.Count, env.Data)
	}

	w = doRequest(r, http.MethodGet, "/contests/atcoder", "", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown platform status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestRouter_UnknownLeetCodeUserReturns404(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := doRequest(r, http.MethodGet, "/users/leetcode/doesnotexist123", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	env := parseEnvelope(t, w)
	if env.Status != "error" {
		t.Errorf("status field = %q, want error", env.Status)
	}
	if !strings.Contains(env.Message, "not found") {
		t.Errorf("message = %q, want to contain 'not found'", env.Message)
	}
}

func TestRouter_CodeChefUserLookupNotSupported(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := doRequest(r, http.MethodGet, "/users/codechef/chef", "", "")
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotImplemented)
	}
}

func TestRouter_UserStatsAndSummary(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := doRequest(r, http.MethodGet, "/users/codeforces/tourist", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	w = doRequest(r, http.MethodGet, "/users/codeforces/tourist/summary", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("summary status = %d, want %d", w.Code, http.StatusOK)
	}
	var summary model.StatsSummary
	if err := json.Unmarshal(parseEnvelope(t, w).Data, &summary); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	if summary.Rating != 3800 {
		t.Errorf("rating = %d, want 3800", summary.Rating)
	}
}

func TestRouter_MeRoutesRequireIdentity(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	for _, path := range []string{"/api/me/connections", "/api/me/stats"} {
		w := doRequest(r, http.MethodGet, path, "", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s status = %d, want %d", path, w.Code, http.StatusUnauthorized)
		}
	}
}

func TestRouter_ConnectionLifecycle(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := doRequest(r, http.MethodPut, "/api/me/connections/codeforces", `{"username":"tourist"}`, "user-1")
	if w.Code != http.StatusOK {
		t.Fatalf("connect status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	w = doRequest(r, http.MethodPut, "/api/me/connections/leetcode", `{"username":"ghost"}`, "user-1")
	if w.Code != http.StatusOK {
		t.Fatalf("connect status = %d, want %d", w.Code, http.StatusOK)
	}

	w = doRequest(r, http.MethodGet, "/api/me/connections", "", "user-1")
	if env := parseEnvelope(t, w); env.Count == nil || *env.Count != 2 {
		t.Fatalf("connections count = %v, want 2", env.Count)
	}

	w = doRequest(r, http.MethodGet, "/api/me/stats", "", "user-1")
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d, want %d", w.Code, http.StatusOK)
	}
	var entries []stats.ConnectedStats
	if err := json.Unmarshal(parseEnvelope(t, w).Data, &entries); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Summary == nil || entries[0].Summary.Rating != 3800 {
		t.Errorf("codeforces entry = %+v", entries[0])
	}
	if entries[1].ErrorKind != model.KindNotFound {
		t.Errorf("leetcode entry errorKind = %q, want not_found", entries[1].ErrorKind)
	}

	w = doRequest(r, http.MethodDelete, "/api/me/connections/leetcode", "", "user-1")
	if w.Code != http.StatusNoContent {
		t.Fatalf("disconnect status = %d, want %d", w.Code, http.StatusNoContent)
	}
	w = doRequest(r, http.MethodDelete, "/api/me/connections/codechef", "", "user-1")
	if w.Code != http.StatusNotFound {
		t.Errorf("disconnect unknown status = %d, want %d", w.Code, http.StatusNotFound)
	}

	// 他のユーザーからは見えない
	w = doRequest(r, http.MethodGet, "/api/me/connections", "", "user-2")
	if env := parseEnvelope(t, w); env.Count == nil || *env.Count != 0 {
		t.Errorf("user-2 connections count = %v, want 0", env.Count)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := doRequest(r, http.MethodGet, "/contests", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("contests status = %d", w.Code)
	}

	w = doRequest(r, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("health = %d %s", w.Code, w.Body.String())
	}

	w = doRequest(r, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `contesthub_upcoming_contests{platform="codeforces"} 1`) {
		t.Errorf("metrics missing upcoming_contests gauge:\n%s", body)
	}
	if !strings.Contains(body, `contesthub_http_status_total{status_code="200"}`) {
		t.Errorf("metrics missing http status counter:\n%s", body)
	}
}

func TestRouter_HealthReportsDatabaseFailure(t *testing.T) {
	r, _ := newTestRouter(t, func(d *RouterDeps) {
		d.DB = &fakePinger{err: errors.New("connection refused")}
	})

	w := doRequest(r, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestRouter_MiddlewareHeaders(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/contests", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(middleware.RequestIDHeader); got != "req-123" {
		t.Errorf("X-Request-ID = %q, want req-123", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestRouter_PreflightReturns204(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := doRequest(r, http.MethodOptions, "/api/me/connections/codeforces", "", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestRouter_UnknownRouteReturnsEnvelope(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := doRequest(r, http.MethodGet, "/nope", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if env := parseEnvelope(t, w); env.Status != "error" {
		t.Errorf("status field = %q, want error", env.Status)
	}
}

func TestRouter_UserLookupRateLimited(t *testing.T) {
	r, _ := newTestRouter(t, func(d *RouterDeps) {
		d.RateLimiter.Stop()
		d.RateLimiter = middleware.NewRateLimiter(middleware.PerMinuteRateLimiterConfig(100, 1))
		t.Cleanup(d.RateLimiter.Stop)
	})

	w := doRequest(r, http.MethodGet, "/users/codeforces/tourist", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("first status = %d, want %d", w.Code, http.StatusOK)
	}
	w = doRequest(r, http.MethodGet, "/users/codeforces/tourist", "", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header should be set")
	}

	// コンテスト一覧は一般枠のため制限されない
	w = doRequest(r, http.MethodGet, "/contests", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("contests status = %d, want %d", w.Code, http.StatusOK)
	}
}

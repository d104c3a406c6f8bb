package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/contesthub/internal/config"
	"github.com/hitoshi/contesthub/internal/model"
)

// newAPIServer はContestHub APIを模したテストサーバーを起動する。
func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		case "/contests":
			_, _ = w.Write([]byte(`{"status":"success","count":2,"data":[
				{"platform":"LeetCode","name":"Weekly Contest 400","startTimeUnix":1717900200,"duration":"1h 30m","url":"https://leetcode.com/contest/weekly-contest-400"},
				{"platform":"CodeChef","name":"Starters 140","startTimeUnix":1717941600,"duration":"2h 0m","url":"https://www.codechef.com/START140"}
			]}`))
		case "/contests/codeforces":
			_, _ = w.Write([]byte(`{"status":"success","count":0,"data":[]}`))
		case "/users/codeforces/tourist/summary":
			_, _ = w.Write([]byte(`{"status":"success","data":{"platform":"Codeforces","username":"tourist","rating":3800,"rank":"legendary grandmaster","solved":1000,"totalContests":250}}`))
		case "/users/leetcode/ghost/summary":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":"error","message":"failed to fetch data for ghost on leetcode: user \"ghost\" not found"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":"error","message":"route not found"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunContests_PrintsTable(t *testing.T) {
	srv := newAPIServer(t)
	cfg := &config.Config{APIURL: srv.URL}

	var out bytes.Buffer
	if err := runContests(context.Background(), cfg, &out, nil); err != nil {
		t.Fatalf("runContests() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"PLATFORM", "Weekly Contest 400", "Starters 140", "1h 30m", "https://www.codechef.com/START140"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "Weekly Contest 400") > strings.Index(got, "Starters 140") {
		t.Errorf("contests should keep API order:\n%s", got)
	}
}

func TestRunContests_PlatformFilter(t *testing.T) {
	srv := newAPIServer(t)
	cfg := &config.Config{APIURL: srv.URL}

	var out bytes.Buffer
	if err := runContests(context.Background(), cfg, &out, []string{"Codeforces"}); err != nil {
		t.Fatalf("runContests() error = %v", err)
	}
	if !strings.Contains(out.String(), "No upcoming contests.") {
		t.Errorf("output = %q, want empty message", out.String())
	}
}

func TestRunContests_UnknownPlatform(t *testing.T) {
	cfg := &config.Config{APIURL: "http://127.0.0.1:1"}
	err := runContests(context.Background(), cfg, &bytes.Buffer{}, []string{"atcoder"})
	if model.KindOf(err) != model.KindValidation {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestRunStats_PrintsSummaryAndErrors(t *testing.T) {
	srv := newAPIServer(t)
	cfg := &config.Config{APIURL: srv.URL}

	var out bytes.Buffer
	err := runStats(context.Background(), cfg, &out, []string{"leetcode=ghost", "codeforces=tourist", "codechef="})
	if err != nil {
		t.Fatalf("runStats() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want 4:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[1], "Codeforces") || !strings.Contains(lines[1], "3800") {
		t.Errorf("codeforces line = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "LeetCode") || !strings.Contains(lines[2], "not found") {
		t.Errorf("leetcode line = %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "CodeChef") || !strings.Contains(lines[3], "No username provided") {
		t.Errorf("codechef line = %q", lines[3])
	}
}

func TestParseStatsArgs_Invalid(t *testing.T) {
	tests := [][]string{
		nil,
		{"tourist"},
		{"atcoder=tourist"},
	}
	for _, args := range tests {
		if _, err := parseStatsArgs(args); err == nil {
			t.Errorf("parseStatsArgs(%v) expected error", args)
		}
	}
}

func TestRunHealthcheck(t *testing.T) {
	srv := newAPIServer(t)
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("failed to parse URL: %v", err)
	}

	cfg := &config.Config{ServerPort: u.Port()}
	if err := runHealthcheck(context.Background(), cfg); err != nil {
		t.Errorf("runHealthcheck() error = %v", err)
	}
}

func TestRunHealthcheck_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u, _ := url.Parse(srv.URL)
	srv.Close()

	cfg := &config.Config{ServerPort: u.Port()}
	if err := runHealthcheck(context.Background(), cfg); err == nil {
		t.Error("runHealthcheck() expected error when server is down")
	}
}

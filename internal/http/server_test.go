package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budgetdigest/internal/amqp"
	"budgetdigest/internal/core"
	"budgetdigest/internal/log"
	"budgetdigest/internal/render"
	"budgetdigest/internal/service"
)

type fakeRunner struct {
	result   service.RunResult
	runErr   error
	lastOpts service.RunOptions
	runs     []core.RunLog
}

func (f *fakeRunner) Run(_ context.Context, opts service.RunOptions) (service.RunResult, error) {
	f.lastOpts = opts
	return f.result, f.runErr
}

func (f *fakeRunner) Preview(_ context.Context, _ string) (render.Email, error) {
	return render.Email{Subject: "s", HTML: "<html><body>preview</body></html>", Text: "preview"}, nil
}

func (f *fakeRunner) PromptPreview(_ context.Context, _ string) (string, error) {
	return "<week>\nspent_this_week: 100.00\n</week>", nil
}

func (f *fakeRunner) Runs(_ context.Context, _ string, _ int) ([]core.RunLog, error) {
	return f.runs, nil
}

type fakePublisher struct {
	published []*amqp.RunRequestMessage
	err       error
}

func (f *fakePublisher) PublishRunRequest(_ context.Context, msg *amqp.RunRequestMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

const testSecret = "cron-secret"

func newTestServer(t *testing.T, runner Runner, publisher RunPublisher) *Server {
	t.Helper()
	logger := log.New(log.Config{Level: slog.LevelError})
	s := NewServer(":0", runner, publisher, Options{CronSecret: testSecret, DefaultUserID: "default"}, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func doRequest(s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestRunRequiresAuth(t *testing.T) {
	s := newTestServer(t, &fakeRunner{}, nil)

	cases := []struct {
		token string
		want  int
	}{
		{"", http.StatusUnauthorized},
		{"wrong", http.StatusUnauthorized},
		{testSecret, http.StatusOK},
	}
	for i, c := range cases {
		rec := doRequest(s, http.MethodPost, "/api/run", "", c.token)
		if rec.Code != c.want {
			t.Fatalf("case %d: status = %d, want %d", i, rec.Code, c.want)
		}
	}
}

func TestRunInline(t *testing.T) {
	runner := &fakeRunner{result: service.RunResult{RunID: "r1", Status: core.RunSuccess, EmailsSent: 2}}
	s := newTestServer(t, runner, nil)

	rec := doRequest(s, http.MethodPost, "/api/run",
		`{"userId":"u1","skipAi":true,"force":true}`, testSecret)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if runner.lastOpts.UserID != "u1" || !runner.lastOpts.SkipAI || !runner.lastOpts.Force || runner.lastOpts.SkipEmail {
		t.Fatalf("options not forwarded: %+v", runner.lastOpts)
	}

	var result service.RunResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.RunID != "r1" || result.EmailsSent != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRunEmptyBodyUsesDefaults(t *testing.T) {
	runner := &fakeRunner{result: service.RunResult{Status: core.RunSuccess}}
	s := newTestServer(t, runner, nil)

	rec := doRequest(s, http.MethodPost, "/api/run", "", testSecret)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if runner.lastOpts.UserID != "default" {
		t.Fatalf("expected default user, got %q", runner.lastOpts.UserID)
	}
}

func TestRunFailedMapsTo500(t *testing.T) {
	runner := &fakeRunner{
		result: service.RunResult{RunID: "r1", Status: core.RunFailed, Errors: []string{"fetch: boom"}},
		runErr: context.DeadlineExceeded,
	}
	s := newTestServer(t, runner, nil)

	rec := doRequest(s, http.MethodPost, "/api/run", "{}", testSecret)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "fetch: boom") {
		t.Fatalf("result errors missing from body: %s", rec.Body.String())
	}
}

func TestRunQueued(t *testing.T) {
	publisher := &fakePublisher{}
	s := newTestServer(t, &fakeRunner{}, publisher)

	rec := doRequest(s, http.MethodPost, "/api/run", `{"skipEmail":true}`, testSecret)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(publisher.published))
	}
	msg := publisher.published[0]
	if msg.UserID != "default" || !msg.SkipEmail || msg.SkipAI {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestRunQueueUnavailable(t *testing.T) {
	publisher := &fakePublisher{err: context.DeadlineExceeded}
	s := newTestServer(t, &fakeRunner{}, publisher)

	rec := doRequest(s, http.MethodPost, "/api/run", "{}", testSecret)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestRunMalformedBody(t *testing.T) {
	s := newTestServer(t, &fakeRunner{}, nil)

	rec := doRequest(s, http.MethodPost, "/api/run", `{"userId": 42`, testSecret)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRunMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, &fakeRunner{}, nil)

	rec := doRequest(s, http.MethodGet, "/api/run", "", testSecret)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if rec.Header().Get("Allow") != "POST" {
		t.Fatalf("Allow header = %q", rec.Header().Get("Allow"))
	}
}

func TestPreview(t *testing.T) {
	s := newTestServer(t, &fakeRunner{}, nil)

	rec := doRequest(s, http.MethodGet, "/api/preview", "", testSecret)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "preview") {
		t.Fatal("preview body missing")
	}
}

func TestPromptPreview(t *testing.T) {
	s := newTestServer(t, &fakeRunner{}, nil)

	rec := doRequest(s, http.MethodGet, "/api/preview/prompt", "", testSecret)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Prompt          string `json:"prompt"`
		EstimatedTokens int    `json:"estimatedTokens"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp.Prompt, "<week>") || resp.EstimatedTokens == 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRuns(t *testing.T) {
	runner := &fakeRunner{runs: []core.RunLog{
		{ID: "r2", Status: core.RunSuccess},
		{ID: "r1", Status: core.RunFailed},
	}}
	s := newTestServer(t, runner, nil)

	rec := doRequest(s, http.MethodGet, "/api/runs?limit=5", "", testSecret)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var runs []core.RunLog
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "r2" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestRunsEmptyIsJSONArray(t *testing.T) {
	s := newTestServer(t, &fakeRunner{}, nil)

	rec := doRequest(s, http.MethodGet, "/api/runs", "", testSecret)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("body = %q, want []", rec.Body.String())
	}
}

func TestRunsLimitValidation(t *testing.T) {
	s := newTestServer(t, &fakeRunner{}, nil)

	for i, v := range []string{"0", "-1", "101", "abc"} {
		rec := doRequest(s, http.MethodGet, "/api/runs?limit="+v, "", testSecret)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("case %d: status = %d, want 400", i, rec.Code)
		}
	}
}

func TestHealthEndpointsOpen(t *testing.T) {
	s := newTestServer(t, &fakeRunner{}, nil)

	for i, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(s, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("case %d: status = %d", i, rec.Code)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, &fakeRunner{}, nil)

	rec := doRequest(s, http.MethodGet, "/api/runs", "", testSecret)
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing X-Content-Type-Options")
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatal("missing Cache-Control")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(3)
	defer rl.stop()

	for i := 0; i < 3; i++ {
		if !rl.allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if rl.allow("1.2.3.4") {
		t.Fatal("request over limit should be denied")
	}
	if !rl.allow("5.6.7.8") {
		t.Fatal("other clients should not be affected")
	}
}

func TestExtractClientIP(t *testing.T) {
	cases := []struct {
		remoteAddr string
		xff        string
		want       string
	}{
		{"127.0.0.1:1234", "203.0.113.9", "203.0.113.9"},
		{"203.0.113.50:1234", "198.51.100.1", "203.0.113.50"}, // untrusted peer
		{"10.0.0.5:1234", "", "10.0.0.5"},
		{"127.0.0.1:1234", "not-an-ip", "127.0.0.1"},
	}
	for i, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = c.remoteAddr
		if c.xff != "" {
			req.Header.Set("X-Forwarded-For", c.xff)
		}
		if got := extractClientIP(req); got != c.want {
			t.Fatalf("case %d: got %q, want %q", i, got, c.want)
		}
	}
}

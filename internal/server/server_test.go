package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"shiksharaha/internal/assistant"
	"shiksharaha/internal/db"
	"shiksharaha/internal/migrate"
	"shiksharaha/internal/store"
)

type stubCompleter struct {
	reply string
	err   error
}

func (c stubCompleter) Complete(ctx context.Context, system string, messages []assistant.Message) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, completer assistant.Completer) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s := store.New(conn)
	if completer == nil {
		completer = stubCompleter{reply: "ok"}
	}
	svc := assistant.NewService(completer, zap.NewNop())
	handler, err := New(Config{
		Store:     s,
		Assistant: svc,
		BasePath:  "/v1",
		Auth:      AuthConfig{JWTSecret: "test-secret"},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestProjectLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects", map[string]any{
		"name":        "Girls Literacy",
		"description": "Rural literacy program",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	var created ProjectResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	if created.CurrentStep != 1 || created.Status != "draft" {
		t.Fatalf("unexpected defaults: %+v", created)
	}

	// current is a 404 until a project is opened
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects/current", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unset current, got %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/"+created.ID+"/open", nil, nil)
	if res.StatusCode >= 300 {
		t.Fatalf("open status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v1/projects/"+created.ID+"/data/problemTree", map[string]any{
		"causes":  []string{"a", "b"},
		"effects": []string{"c", "d"},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("put data status %d: %s", res.StatusCode, string(data))
	}

	for _, step := range []string{"1", "2", "3"} {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/"+created.ID+"/steps/"+step+"/complete", nil, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("complete step %s status %d: %s", step, res.StatusCode, string(data))
		}
	}
	var progressed ProjectResponse
	_ = json.Unmarshal(data, &progressed)
	if progressed.Progress != 43 || progressed.CurrentStep != 4 {
		t.Fatalf("expected 43%% at step 4, got %+v", progressed)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/projects/"+created.ID, map[string]any{
		"status": "review",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch status %d: %s", res.StatusCode, string(data))
	}
	var patched ProjectResponse
	_ = json.Unmarshal(data, &patched)
	if patched.Status != "review" {
		t.Fatalf("expected review, got %s", patched.Status)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v1/projects/"+created.ID, nil, nil)
	if res.StatusCode >= 300 {
		t.Fatalf("delete status %d: %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects/"+created.ID, nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", res.StatusCode)
	}
}

func TestCreateProjectValidation(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/projects", map[string]any{
		"description": "no name",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "bad_request" {
		t.Fatalf("expected bad_request code, got %q", envelope.Error.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/register", map[string]any{
		"name":     "Priya",
		"email":    "priya@ngo.org",
		"password": "anything",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("register status %d: %s", res.StatusCode, string(data))
	}
	var session SessionResponse
	if err := json.Unmarshal(data, &session); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	if session.Token == "" {
		t.Fatalf("expected a token with a secret configured")
	}

	// any non-empty password works, even a different one
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/login", map[string]any{
		"email":    "priya@ngo.org",
		"password": "totally-different",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}

	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/logout", nil, nil)
	if res.StatusCode >= 300 {
		t.Fatalf("logout status %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after logout, got %d", res.StatusCode)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/login", map[string]any{
		"email":    "priya@ngo.org",
		"password": "",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty password, got %d: %s", res.StatusCode, string(data))
	}
}

func TestCatalogEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/steps", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("steps status %d", res.StatusCode)
	}
	var steps []map[string]any
	_ = json.Unmarshal(data, &steps)
	if len(steps) != 7 {
		t.Fatalf("expected 7 steps, got %d", len(steps))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/badges", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("badges status %d", res.StatusCode)
	}
	var badges []map[string]any
	_ = json.Unmarshal(data, &badges)
	if len(badges) != 10 {
		t.Fatalf("expected 10 badges, got %d", len(badges))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/templates", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("templates status %d: %s", res.StatusCode, string(data))
	}
}

func TestDiscussionEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/discussions", map[string]any{
		"title": "Monitoring on a budget",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create discussion status %d: %s", res.StatusCode, string(data))
	}
	var d struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(data, &d)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/discussions/"+d.ID+"/replies", map[string]any{
		"text": "Paper forms plus a weekly photo upload.",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("reply status %d: %s", res.StatusCode, string(data))
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/discussions/nope/replies", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown thread, got %d", res.StatusCode)
	}
}

func TestChatEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, stubCompleter{reply: "Namaste! Let's define the problem."})
	defer cleanup()
	client := srv.Client()

	// missing messages key is rejected
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/chat", map[string]any{}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing messages, got %d: %s", res.StatusCode, string(data))
	}
	var flat map[string]string
	_ = json.Unmarshal(data, &flat)
	if flat["error"] == "" {
		t.Fatalf("expected flat error payload, got %s", string(data))
	}

	// an empty conversation is valid
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/chat", map[string]any{
		"messages": []any{},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for empty conversation, got %d: %s", res.StatusCode, string(data))
	}
	var msg assistant.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if msg.Role != "assistant" || msg.Content == "" {
		t.Fatalf("unexpected reply: %+v", msg)
	}
}

func TestChatUpstreamFailure(t *testing.T) {
	srv, cleanup := newTestServer(t, stubCompleter{err: errors.New("quota exceeded")})
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/chat", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "help"}},
	}, nil)
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", res.StatusCode, string(data))
	}
	var flat map[string]string
	_ = json.Unmarshal(data, &flat)
	if flat["error"] == "" || flat["details"] == "" {
		t.Fatalf("expected error and details, got %s", string(data))
	}
}

func TestGenerateReportEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, stubCompleter{reply: "# Program Design Report"})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/generate-report", map[string]any{}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing project, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/generate-report", map[string]any{
		"project": map[string]any{
			"id":   "p1",
			"name": "Girls Literacy",
			"data": map[string]any{
				"problemDefinition": map[string]any{"statement": "Low literacy among girls aged 6-14"},
			},
		},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("report status %d: %s", res.StatusCode, string(data))
	}
	var out struct {
		Report string `json:"report"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if out.Report == "" {
		t.Fatalf("expected report text")
	}
}

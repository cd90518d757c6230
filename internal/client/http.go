package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/groblegark/kconfig/internal/model"
)

// HTTPClient implements ConfigClient using the kconfig HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	actor      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request; actor is sent as the X-Actor header so the
// server can attribute mutations.
func NewHTTPClient(baseURL, token, actor string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		actor:      actor,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func configPath(projectID, name string) string {
	return "/v1/projects/" + url.PathEscape(projectID) + "/configs/" + url.PathEscape(name)
}

// --- Config CRUD ---

func (c *HTTPClient) CreateConfig(ctx context.Context, projectID string, req *CreateConfigRequest) (*model.Config, error) {
	var cfg model.Config
	path := "/v1/projects/" + url.PathEscape(projectID) + "/configs"
	if err := c.doJSON(ctx, http.MethodPost, path, req, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *HTTPClient) GetConfig(ctx context.Context, projectID, name string) (*model.Config, error) {
	var cfg model.Config
	if err := c.doJSON(ctx, http.MethodGet, configPath(projectID, name), nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *HTTPClient) ListConfigs(ctx context.Context, projectID string, req *ListConfigsRequest) (*ListConfigsResponse, error) {
	q := url.Values{}
	if req != nil {
		if req.Search != "" {
			q.Set("search", req.Search)
		}
		if req.Limit > 0 {
			q.Set("limit", fmt.Sprintf("%d", req.Limit))
		}
		if req.Offset > 0 {
			q.Set("offset", fmt.Sprintf("%d", req.Offset))
		}
	}

	path := "/v1/projects/" + url.PathEscape(projectID) + "/configs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListConfigsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UpdateConfig(ctx context.Context, projectID, name string, req *UpdateConfigRequest) (*model.Config, error) {
	var cfg model.Config
	if err := c.doJSON(ctx, http.MethodPatch, configPath(projectID, name), req, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *HTTPClient) DeleteConfig(ctx context.Context, projectID, name string) error {
	return c.doJSON(ctx, http.MethodDelete, configPath(projectID, name), nil, nil)
}

// --- Value evaluation ---

func (c *HTTPClient) EvaluateValue(ctx context.Context, projectID, name, environmentID string, evalCtx map[string]any) (*EvaluatedValue, error) {
	path := configPath(projectID, name) + "/value"
	if environmentID != "" {
		path += "?env=" + url.QueryEscape(environmentID)
	}
	body := map[string]any{}
	if evalCtx != nil {
		body["context"] = evalCtx
	}
	var out EvaluatedValue
	if err := c.doJSON(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Variants ---

func (c *HTTPClient) CreateVariant(ctx context.Context, projectID, name string, req *CreateVariantRequest) (*model.Variant, error) {
	var v model.Variant
	if err := c.doJSON(ctx, http.MethodPost, configPath(projectID, name)+"/variants", req, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *HTTPClient) GetVariant(ctx context.Context, projectID, name, environmentID string) (*model.Variant, error) {
	var v model.Variant
	path := configPath(projectID, name) + "/variants/" + url.PathEscape(environmentID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *HTTPClient) ListVariants(ctx context.Context, projectID, name string) ([]*model.Variant, error) {
	var resp struct {
		Variants []*model.Variant `json:"variants"`
	}
	if err := c.doJSON(ctx, http.MethodGet, configPath(projectID, name)+"/variants", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Variants, nil
}

func (c *HTTPClient) UpdateVariant(ctx context.Context, projectID, name, environmentID string, req *UpdateVariantRequest) (*model.Variant, error) {
	var v model.Variant
	path := configPath(projectID, name) + "/variants/" + url.PathEscape(environmentID)
	if err := c.doJSON(ctx, http.MethodPatch, path, req, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *HTTPClient) DeleteVariant(ctx context.Context, projectID, name, environmentID string) error {
	path := configPath(projectID, name) + "/variants/" + url.PathEscape(environmentID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// --- Proposals ---

func (c *HTTPClient) CreateProposal(ctx context.Context, req *CreateProposalRequest) (*model.Proposal, error) {
	var p model.Proposal
	if err := c.doJSON(ctx, http.MethodPost, "/v1/proposals", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) GetProposal(ctx context.Context, id string) (*model.Proposal, error) {
	var p model.Proposal
	if err := c.doJSON(ctx, http.MethodGet, "/v1/proposals/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) ListProposals(ctx context.Context, req *ListProposalsRequest) ([]*model.Proposal, error) {
	q := url.Values{}
	if req != nil {
		if req.ConfigID != "" {
			q.Set("config_id", req.ConfigID)
		}
		if req.ProjectID != "" {
			q.Set("project", req.ProjectID)
		}
		if req.VariantID != "" {
			q.Set("variant_id", req.VariantID)
		}
		if req.Scope != "" {
			q.Set("scope", string(req.Scope))
		}
		if req.Status != "" {
			q.Set("status", string(req.Status))
		}
		if req.Limit > 0 {
			q.Set("limit", fmt.Sprintf("%d", req.Limit))
		}
		if req.Offset > 0 {
			q.Set("offset", fmt.Sprintf("%d", req.Offset))
		}
	}

	path := "/v1/proposals"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Proposals []*model.Proposal `json:"proposals"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Proposals, nil
}

func (c *HTTPClient) ApproveProposal(ctx context.Context, id string) (*model.Proposal, error) {
	var p model.Proposal
	if err := c.doJSON(ctx, http.MethodPost, "/v1/proposals/"+url.PathEscape(id)+"/approve", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) RejectProposal(ctx context.Context, id string) (*model.Proposal, error) {
	var p model.Proposal
	if err := c.doJSON(ctx, http.MethodPost, "/v1/proposals/"+url.PathEscape(id)+"/reject", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// --- Replication ---

// Watch connects to the replication stream for a project. The returned
// channel delivers the snapshot first, then change events in commit order,
// and closes when the server ends the stream or ctx is cancelled.
func (c *HTTPClient) Watch(ctx context.Context, projectID string) (<-chan StreamEvent, error) {
	path := c.baseURL + "/v1/stream?project=" + url.QueryEscape(projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	c.setHeaders(req, false)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, apiErrorFromBody(resp.StatusCode, respBody)
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		var topic string
		var data []byte
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, ":"):
				// keepalive comment
			case strings.HasPrefix(line, "event:"):
				topic = strings.TrimPrefix(line, "event:")
			case strings.HasPrefix(line, "data:"):
				data = []byte(strings.TrimPrefix(line, "data:"))
			case line == "":
				if topic == "" && data == nil {
					continue
				}
				select {
				case events <- StreamEvent{Topic: topic, Data: data}:
				case <-ctx.Done():
					return
				}
				topic, data = "", nil
			}
		}
	}()
	return events, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func apiErrorFromBody(status int, body []byte) *APIError {
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: status, Message: errResp.Error}
	}
	return &APIError{StatusCode: status, Message: string(body)}
}

func (c *HTTPClient) setHeaders(req *http.Request, hasBody bool) {
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.actor != "" {
		req.Header.Set("X-Actor", c.actor)
	}
}

// doJSON performs an HTTP request with optional JSON body and decodes the
// JSON response. If result is nil, the response body is discarded (for
// DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req, body != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return apiErrorFromBody(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

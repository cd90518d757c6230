package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/groblegark/kconfig/internal/model"
)

// HTTPProvider resolves roles and flags from an external collaborator
// service. Responses are cached briefly because role lookups sit on the
// request path of every mutation.
type HTTPProvider struct {
	baseURL    string
	token      string
	httpClient *http.Client

	ttl   time.Duration
	mu    sync.Mutex
	roles map[string]cachedRole
	flags map[string]cachedFlags
}

type cachedRole struct {
	role    model.Role
	expires time.Time
}

type cachedFlags struct {
	flags   Flags
	expires time.Time
}

// NewHTTPProvider creates a provider targeting the given base URL
// (e.g. "http://collab.internal:8080"). When token is non-empty, an
// Authorization header is set on every request.
func NewHTTPProvider(baseURL, token string) *HTTPProvider {
	return &HTTPProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		ttl:        30 * time.Second,
		roles:      make(map[string]cachedRole),
		flags:      make(map[string]cachedFlags),
	}
}

func (p *HTTPProvider) RoleFor(ctx context.Context, projectID, email string) (model.Role, error) {
	email = model.NormalizeEmail(email)
	key := projectID + "\x00" + email

	p.mu.Lock()
	if c, ok := p.roles[key]; ok && time.Now().Before(c.expires) {
		p.mu.Unlock()
		return c.role, nil
	}
	p.mu.Unlock()

	var resp struct {
		Role string `json:"role"`
	}
	path := "/v1/projects/" + url.PathEscape(projectID) + "/collaborators/" + url.PathEscape(email)
	if err := p.getJSON(ctx, path, &resp); err != nil {
		return "", fmt.Errorf("role lookup for %s in %s: %w", email, projectID, err)
	}
	role := model.Role(resp.Role)

	p.mu.Lock()
	p.roles[key] = cachedRole{role: role, expires: time.Now().Add(p.ttl)}
	p.mu.Unlock()
	return role, nil
}

func (p *HTTPProvider) ProjectFlags(ctx context.Context, projectID string) (Flags, error) {
	p.mu.Lock()
	if c, ok := p.flags[projectID]; ok && time.Now().Before(c.expires) {
		p.mu.Unlock()
		return c.flags, nil
	}
	p.mu.Unlock()

	var flags Flags
	path := "/v1/projects/" + url.PathEscape(projectID) + "/settings"
	if err := p.getJSON(ctx, path, &flags); err != nil {
		return Flags{}, fmt.Errorf("flags lookup for %s: %w", projectID, err)
	}

	p.mu.Lock()
	p.flags[projectID] = cachedFlags{flags: flags, expires: time.Now().Add(p.ttl)}
	p.mu.Unlock()
	return flags, nil
}

// getJSON performs a GET request and decodes the JSON response.
func (p *HTTPProvider) getJSON(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

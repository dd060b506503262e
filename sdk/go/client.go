package shiksharahasdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Shiksha Raha HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Project represents the API program model.
type Project struct {
	ID             string                    `json:"id"`
	Name           string                    `json:"name"`
	Description    string                    `json:"description,omitempty"`
	Status         string                    `json:"status"`
	CurrentStep    int                       `json:"current_step"`
	Progress       int                       `json:"progress"`
	Data           map[string]map[string]any `json:"data"`
	CompletedSteps []int                     `json:"completed_steps"`
	CreatedAt      string                    `json:"created_at"`
	UpdatedAt      string                    `json:"updated_at"`
}

// User represents the session user.
type User struct {
	Name         string `json:"name,omitempty"`
	Email        string `json:"email"`
	Organization string `json:"organization,omitempty"`
	Role         string `json:"role,omitempty"`
	Onboarded    bool   `json:"onboarded"`
}

// Session is returned by register and login.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token,omitempty"`
}

// Badge represents a badge with its earned state.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Earned      bool   `json:"earned"`
	EarnedAt    string `json:"earned_at,omitempty"`
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateProject creates a program. templateID may be empty.
func (c *Client) CreateProject(ctx context.Context, name, description, templateID string) (Project, error) {
	body := map[string]any{"name": name}
	if description != "" {
		body["description"] = description
	}
	if templateID != "" {
		body["template_id"] = templateID
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "v1/projects", body, &resp)
	return resp, err
}

// ListProjects returns all programs, newest first.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var resp []Project
	err := c.do(ctx, http.MethodGet, "v1/projects", nil, &resp)
	return resp, err
}

// GetProject fetches a program by id.
func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, "v1/projects/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// DeleteProject removes a program.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v1/projects/"+url.PathEscape(id), nil, nil)
}

// UpdateStepData replaces one step's form payload.
func (c *Client) UpdateStepData(ctx context.Context, id, stepKey string, payload map[string]any) (Project, error) {
	var resp Project
	endpoint := fmt.Sprintf("v1/projects/%s/data/%s", url.PathEscape(id), url.PathEscape(stepKey))
	err := c.do(ctx, http.MethodPut, endpoint, payload, &resp)
	return resp, err
}

// CompleteStep marks a workflow step completed and returns the fresh program.
func (c *Client) CompleteStep(ctx context.Context, id string, step int) (Project, error) {
	var resp Project
	endpoint := fmt.Sprintf("v1/projects/%s/steps/%d/complete", url.PathEscape(id), step)
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// OpenProject sets the currently open program.
func (c *Client) OpenProject(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("v1/projects/%s/open", url.PathEscape(id))
	return c.do(ctx, http.MethodPost, endpoint, nil, nil)
}

// CurrentProject resolves the currently open program.
func (c *Client) CurrentProject(ctx context.Context) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, "v1/projects/current", nil, &resp)
	return resp, err
}

// Login starts a session; any non-empty credentials are accepted. The returned
// token is stored on the client for subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	body := map[string]any{"email": email, "password": password}
	var resp Session
	if err := c.do(ctx, http.MethodPost, "v1/auth/login", body, &resp); err != nil {
		return Session{}, err
	}
	c.BearerToken = resp.Token
	return resp, nil
}

// Badges returns the badge catalog with earned state.
func (c *Client) Badges(ctx context.Context) ([]Badge, error) {
	var resp []Badge
	err := c.do(ctx, http.MethodGet, "v1/badges", nil, &resp)
	return resp, err
}

// Chat sends a conversation to the assistant and returns its reply.
func (c *Client) Chat(ctx context.Context, messages []Message) (Message, error) {
	body := map[string]any{"messages": messages}
	var resp Message
	err := c.do(ctx, http.MethodPost, "api/chat", body, &resp)
	return resp, err
}

// GenerateReport asks the assistant for a program design report.
func (c *Client) GenerateReport(ctx context.Context, project Project) (string, error) {
	body := map[string]any{"project": project}
	var resp struct {
		Report string `json:"report"`
	}
	err := c.do(ctx, http.MethodPost, "api/generate-report", body, &resp)
	return resp.Report, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

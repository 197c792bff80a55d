package inbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://seller.shopdesk.io"
	DefaultTimeout = 30 * time.Second
)

// Backend is the remote inbox service the engine polls and replies through.
type Backend interface {
	// FetchConversationSummaries returns the summaries of both scopes in one round-trip.
	FetchConversationSummaries(ctx context.Context, storeRef string) (*SummaryList, error)
	// FetchReplies returns the replies recorded for one conversation.
	FetchReplies(ctx context.Context, key ConversationKey) ([]ReplyRecord, error)
	// SendReply files a reply using the scope-specific form.
	SendReply(ctx context.Context, form ReplyForm) error
}

// ============================================================================
// Client
// ============================================================================

// Client is the HTTP implementation of Backend.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ Backend = (*Client)(nil)

type ClientOption func(*Client)

func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// NewClient creates a backend client authenticated with apiKey.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ============================================================================
// Backend methods
// ============================================================================

func (c *Client) FetchConversationSummaries(ctx context.Context, storeRef string) (*SummaryList, error) {
	if storeRef == "" {
		return nil, errors.New("fetch summaries: store reference is required")
	}
	res, err := c.do(ctx, http.MethodGet, "/api/inbox/stores/"+url.PathEscape(storeRef)+"/conversations", nil, nil)
	if err != nil {
		return nil, err
	}
	if err := res.err("fetch summaries"); err != nil {
		return nil, err
	}
	var list SummaryList
	if err := res.Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode summaries: %w", err)
	}
	return &list, nil
}

func (c *Client) FetchReplies(ctx context.Context, key ConversationKey) ([]ReplyRecord, error) {
	query := map[string]string{
		"scope":       string(key.Scope),
		"counterpart": key.Counterpart,
	}
	if key.Scope == ScopeProduct {
		query["product"] = key.SubjectRef
	}
	res, err := c.do(ctx, http.MethodGet, "/api/inbox/replies", nil, query)
	if err != nil {
		return nil, err
	}
	if err := res.err("fetch replies"); err != nil {
		return nil, err
	}
	var replies []ReplyRecord
	if err := res.Decode(&replies); err != nil {
		return nil, fmt.Errorf("failed to decode replies: %w", err)
	}
	return replies, nil
}

func (c *Client) SendReply(ctx context.Context, form ReplyForm) error {
	switch form.Scope {
	case ScopeProduct:
		if form.ProductID == "" {
			return errors.New("send reply: product form requires a productId")
		}
	case ScopeStore:
	default:
		return fmt.Errorf("send reply: unknown scope %q", form.Scope)
	}
	res, err := c.do(ctx, http.MethodPost, "/api/inbox/replies", form, nil)
	if err != nil {
		return err
	}
	return res.err("send reply")
}

// ============================================================================
// Internal request helper
// ============================================================================

func (c *Client) do(ctx context.Context, method, path string, body interface{}, query map[string]string) (*Result, error) {
	data, err := c.doRequest(ctx, method, path, body, query)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Result](data)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, query map[string]string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		params := url.Values{}
		for k, v := range query {
			params.Set(k, v)
		}
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 && len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("request failed (%d)", resp.StatusCode)
	}
	return data, nil
}

func decodeJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

package ckan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"ckandump/internal/transport"
)

// DefaultBasePath is the action endpoint prefix appended to the
// catalog address. Some deployments bake the full action path into
// the address itself; use WithBasePath("") for those.
const DefaultBasePath = "api/action/"

// Option configures a Client.
type Option func(*Client)

// WithAPIKey authenticates every action call with the given key.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apikey = key }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithBasePath overrides the action endpoint prefix.
func WithBasePath(p string) Option {
	return func(c *Client) { c.basePath = p }
}

// WithGetOnly restricts the client to side-effect-free actions;
// file uploads are rejected.
func WithGetOnly() Option {
	return func(c *Client) { c.getOnly = true }
}

// Client issues named actions against a remote CKAN catalog and
// decodes the uniform response envelope.
type Client struct {
	address   string
	basePath  string
	apikey    string
	userAgent string
	getOnly   bool

	http *transport.Client
}

// NewClient creates a catalog client for the given address, issuing
// requests through the shared transport client.
func NewClient(address string, tc *transport.Client, opts ...Option) *Client {
	c := &Client{
		address:   strings.TrimRight(address, "/"),
		basePath:  DefaultBasePath,
		userAgent: "ckandump",
		http:      tc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CallOptions carries per-call overrides for CallAction.
type CallOptions struct {
	// APIKey overrides the client-level key for this call.
	APIKey string

	// Context is never supported for a remote catalog; passing one is
	// an error. Authentication goes through the API key instead.
	Context map[string]any

	// Files would attach multipart uploads to a write action. This
	// client only issues GETs, so files are rejected when the client
	// is get-only.
	Files map[string]io.Reader
}

// CallAction invokes a named action with the given parameters and
// returns the raw result payload from the response envelope.
//
// Application-level failures (a well-formed envelope with
// success=false) are returned as *APIError. Transport exhaustion that
// still yielded an error envelope is also converted to *APIError, so
// callers see the remote's own error taxonomy whenever it is known.
func (c *Client) CallAction(ctx context.Context, action string, params url.Values, opts *CallOptions) (json.RawMessage, error) {
	apikey := c.apikey
	if opts != nil {
		if opts.Context != nil {
			return nil, fmt.Errorf("ckan: %s: context is not supported for a remote catalog, use an API key", action)
		}
		if len(opts.Files) > 0 {
			if c.getOnly {
				return nil, fmt.Errorf("ckan: %s: files may not be sent when the client is get-only", action)
			}
			return nil, fmt.Errorf("ckan: %s: file uploads are not supported", action)
		}
		if opts.APIKey != "" {
			apikey = opts.APIKey
		}
	}

	actionURL := c.address + "/" + c.basePath + action

	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	if apikey != "" {
		header.Set("Authorization", apikey)
	}

	body, err := c.http.Get(ctx, actionURL, params, header)
	if err != nil {
		// The server may have answered every attempt with a
		// well-formed error envelope; surface it as such.
		var ex *transport.ExhaustedError
		if errors.As(err, &ex) && len(ex.Body) > 0 {
			if apiErr := decodeEnvelopeError(action, actionURL, ex.Body); apiErr != nil {
				return nil, apiErr
			}
		}
		return nil, fmt.Errorf("ckan: %s: %w", action, err)
	}

	return decodeEnvelope(action, actionURL, body)
}

// GroupList returns the ids of all groups in the catalog.
func (c *Client) GroupList(ctx context.Context) ([]string, error) {
	return c.callStringList(ctx, "group_list")
}

// PackageList returns the ids of all packages in the catalog.
func (c *Client) PackageList(ctx context.Context) ([]string, error) {
	return c.callStringList(ctx, "package_list")
}

// GroupShow fetches the raw metadata document for one group.
func (c *Client) GroupShow(ctx context.Context, id string) (json.RawMessage, error) {
	return c.CallAction(ctx, "group_show", url.Values{"id": {id}}, nil)
}

// PackageShow fetches the raw metadata document for one package.
func (c *Client) PackageShow(ctx context.Context, id string) (json.RawMessage, error) {
	return c.CallAction(ctx, "package_show", url.Values{"id": {id}}, nil)
}

func (c *Client) callStringList(ctx context.Context, action string) ([]string, error) {
	raw, err := c.CallAction(ctx, action, nil, nil)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("ckan: %s: decode result: %w", action, err)
	}
	return ids, nil
}

// envelope is the catalog's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *envelopeError  `json:"error"`
}

type envelopeError struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

func decodeEnvelope(action, actionURL string, body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("ckan: %s: malformed response: %w", action, err)
	}

	if !env.Success {
		if apiErr := envelopeToAPIError(action, actionURL, env); apiErr != nil {
			return nil, apiErr
		}
		return nil, fmt.Errorf("ckan: %s: server reported failure without an error object", action)
	}

	return env.Result, nil
}

// decodeEnvelopeError tries to extract an *APIError from a response
// body; it returns nil when the body is not a failure envelope.
func decodeEnvelopeError(action, actionURL string, body []byte) *APIError {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Success {
		return nil
	}
	return envelopeToAPIError(action, actionURL, env)
}

func envelopeToAPIError(action, actionURL string, env envelope) *APIError {
	if env.Error == nil {
		return nil
	}
	return &APIError{
		Action:  action,
		URL:     actionURL,
		Type:    env.Error.Type,
		Message: env.Error.Message,
	}
}

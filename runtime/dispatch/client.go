package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parcelops/resolve/runtime/card"
	"github.com/parcelops/resolve/runtime/task"
)

type (
	// Option configures the HTTP client.
	Option func(*Client)

	// Client speaks the task exchange JSON-RPC protocol to one remote
	// endpoint.
	Client struct {
		endpoint string
		http     *http.Client
		headers  http.Header
		id       uint64
	}

	clientRPCResponse struct {
		JSONRPC string          `json:"jsonrpc"`
		Result  json.RawMessage `json:"result"`
		Error   *rpcError       `json:"error"`
		ID      uint64          `json:"id"`
	}
)

// Error converts the rpcError into a human-readable string.
func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// WithHTTPClient overrides the underlying *http.Client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithHeader adds a static header to all outgoing requests.
func WithHeader(name, value string) Option {
	return func(cl *Client) {
		if cl.headers == nil {
			cl.headers = make(http.Header)
		}
		cl.headers.Add(name, value)
	}
}

// WithBearerToken configures the client to send an Authorization Bearer token.
func WithBearerToken(token string) Option {
	return WithHeader("Authorization", "Bearer "+token)
}

// NewClient constructs a client for the given JSON-RPC endpoint.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	cl := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 60 * time.Second},
		headers:  make(http.Header),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cl)
		}
	}
	if cl.http == nil {
		cl.http = &http.Client{Timeout: 60 * time.Second}
	}
	return cl, nil
}

func (c *Client) nextID() uint64 {
	return atomic.AddUint64(&c.id, 1)
}

// call issues one JSON-RPC exchange and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		ID:      c.nextID(),
		Params:  mustRaw(params),
	})
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, vs := range c.headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %d", resp.StatusCode)
	}

	var rpcResp clientRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return err
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out != nil {
		return json.Unmarshal(rpcResp.Result, out)
	}
	return nil
}

// SendTask sends the task to the remote agent and blocks until it reaches a
// terminal state.
func (c *Client) SendTask(ctx context.Context, agentID string, req TaskRequest) (task.Snapshot, error) {
	var snap task.Snapshot
	if err := c.call(ctx, "tasks/send", sendParams{Agent: agentID, Task: req}, &snap); err != nil {
		return task.Snapshot{}, &TransportError{Op: "tasks/send", Agent: agentID, Err: err}
	}
	return snap, nil
}

// GetTask returns the remote snapshot of a previously dispatched task.
func (c *Client) GetTask(ctx context.Context, taskID string) (task.Snapshot, error) {
	var snap task.Snapshot
	if err := c.call(ctx, "tasks/get", taskRefParams{TaskID: taskID}, &snap); err != nil {
		return task.Snapshot{}, &TransportError{Op: "tasks/get", Agent: "", Err: err}
	}
	return snap, nil
}

// CancelTask requests cancellation of a remote task.
func (c *Client) CancelTask(ctx context.Context, taskID string) (task.Snapshot, error) {
	var snap task.Snapshot
	if err := c.call(ctx, "tasks/cancel", taskRefParams{TaskID: taskID}, &snap); err != nil {
		return task.Snapshot{}, &TransportError{Op: "tasks/cancel", Agent: "", Err: err}
	}
	return snap, nil
}

// AgentCard fetches the named agent's published card.
func (c *Client) AgentCard(ctx context.Context, name string) (card.AgentCard, error) {
	var out card.AgentCard
	if err := c.call(ctx, "agent/card", cardParams{Name: name}, &out); err != nil {
		return card.AgentCard{}, &TransportError{Op: "agent/card", Agent: name, Err: err}
	}
	return out, nil
}

// ListAgents fetches all cards published by the remote endpoint.
func (c *Client) ListAgents(ctx context.Context) ([]card.AgentCard, error) {
	var out []card.AgentCard
	if err := c.call(ctx, "agent/list", nil, &out); err != nil {
		return nil, &TransportError{Op: "agent/list", Agent: "", Err: err}
	}
	return out, nil
}

func mustRaw(params any) json.RawMessage {
	if params == nil {
		return nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	return raw
}

type (
	// HTTP dispatches tasks to remote agents, resolving each agent's JSON-RPC
	// endpoint through the directory at send time. Clients are cached per
	// endpoint.
	HTTP struct {
		directory *card.Directory
		opts      []Option
		mu        sync.Mutex
		clients   map[string]*Client
	}
)

// NewHTTP creates a directory-backed HTTP dispatcher. The options are applied
// to every per-endpoint client.
func NewHTTP(directory *card.Directory, opts ...Option) (*HTTP, error) {
	if directory == nil {
		return nil, fmt.Errorf("agent directory is required")
	}
	return &HTTP{directory: directory, opts: opts, clients: make(map[string]*Client)}, nil
}

// SendTask resolves the agent's endpoint and forwards the task. An agent with
// no published card yields a TransportError matching ErrUnknownAgent.
func (h *HTTP) SendTask(ctx context.Context, agentID string, req TaskRequest) (task.Snapshot, error) {
	c, ok := h.directory.Describe(agentID)
	if !ok {
		return task.Snapshot{}, &TransportError{Op: "tasks/send", Agent: agentID, Err: ErrUnknownAgent}
	}
	cl, err := h.client(c.Endpoint)
	if err != nil {
		return task.Snapshot{}, &TransportError{Op: "tasks/send", Agent: agentID, Err: err}
	}
	return cl.SendTask(ctx, agentID, req)
}

func (h *HTTP) client(endpoint string) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cl, ok := h.clients[endpoint]; ok {
		return cl, nil
	}
	cl, err := NewClient(endpoint, h.opts...)
	if err != nil {
		return nil, err
	}
	h.clients[endpoint] = cl
	return cl, nil
}

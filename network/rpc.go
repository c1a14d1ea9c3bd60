package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Server error codes with a dedicated meaning.
const (
	CodeNotFound       = -5
	CodeMethodNotFound = -32601
)

// RPCClient speaks JSON-RPC 2.0 over HTTP to a ledger node. The Client
// methods are thin wrappers around Call.
type RPCClient struct {
	endpoint string
	user     string
	password string
	http     *http.Client
	limiter  *rate.Limiter
	seq      atomic.Int64
}

type rpcRequest struct {
	Version string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("network: rpc error %d: %s", e.Code, e.Message)
}

// Is reports CodeNotFound errors as ErrNotFound.
func (e *RPCError) Is(target error) bool {
	return target == ErrNotFound && e.Code == CodeNotFound
}

// NewRPCClient returns a client for cfg. Basic auth is sent when User is
// set; MaxRequestsPerSecond > 0 paces outgoing calls.
func NewRPCClient(cfg RPCConfig) *RPCClient {
	c := &RPCClient{
		endpoint: cfg.URL,
		user:     cfg.User,
		password: cfg.Password,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	if cfg.MaxRequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRequestsPerSecond), 1)
	}
	return c
}

// Call invokes method with params and decodes the result into result, which
// may be nil to discard it.
//
// Transport failures and non-2xx replies are ErrConnectionFailed (401 and 403
// are ErrUnauthorized); undecodable replies and id mismatches are
// ErrInvalidResponse; server error objects are returned as *RPCError.
func (c *RPCClient) Call(ctx context.Context, method string, params []any, result any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
	}
	if params == nil {
		params = []any{}
	}
	id := c.seq.Add(1)

	raw, err := c.post(ctx, rpcRequest{Version: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return err
	}
	resp, err := decodeResponse(raw, id)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("%w: %s result: %w", ErrInvalidResponse, method, err)
	}
	return nil
}

// post sends one request and returns the response body.
func (c *RPCClient) post(ctx context.Context, body rpcRequest) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("network: encode %s request: %w", body.Method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("network: %s request: %w", body.Method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrConnectionFailed, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return raw, nil
}

func decodeResponse(raw []byte, id int64) (*rpcResponse, error) {
	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	if resp.ID != id {
		return nil, fmt.Errorf("%w: reply to request %d, want %d", ErrInvalidResponse, resp.ID, id)
	}
	return &resp, nil
}

package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Transport
// --------------------------------------------------------------------------

// echoNode answers every call with reply(req), keeping the request id.
func echoNode(t *testing.T, reply func(req rpcRequest) rpcResponse) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := reply(req)
		resp.ID = req.ID
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCall_RequestShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "wallet", user)
		assert.Equal(t, "s3cret", pass)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.Version)
		assert.Equal(t, "getoutputids", req.Method)
		assert.Equal(t, []any{"rms1qq"}, req.Params)
		json.NewEncoder(w).Encode(rpcResponse{ID: req.ID, Result: json.RawMessage(`["a","b"]`)})
	}))
	defer server.Close()

	c := NewRPCClient(RPCConfig{URL: server.URL, User: "wallet", Password: "s3cret"})
	var ids []string
	require.NoError(t, c.Call(context.Background(), "getoutputids", []any{"rms1qq"}, &ids))
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestCall_NoAuthWithoutUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, ok := r.BasicAuth()
		assert.False(t, ok)
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotNil(t, req.Params)
		json.NewEncoder(w).Encode(rpcResponse{ID: req.ID})
	}))
	defer server.Close()

	require.NoError(t, NewRPCClient(RPCConfig{URL: server.URL}).Call(context.Background(), "gettips", nil, nil))
}

func TestCall_StatusErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusServiceUnavailable, ErrConnectionFailed},
		{http.StatusNotFound, ErrConnectionFailed},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "node is syncing", tt.status)
			}))
			defer server.Close()

			err := NewRPCClient(RPCConfig{URL: server.URL}).Call(context.Background(), "gettips", nil, nil)
			assert.ErrorIs(t, err, tt.want)
			if tt.want == ErrConnectionFailed {
				assert.Contains(t, err.Error(), "node is syncing")
			}
		})
	}
}

func TestCall_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := NewRPCClient(RPCConfig{URL: url}).Call(context.Background(), "gettips", nil, nil)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestCall_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewRPCClient(RPCConfig{URL: server.URL}).Call(ctx, "gettips", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

// --------------------------------------------------------------------------
// Responses
// --------------------------------------------------------------------------

func TestCall_ServerError(t *testing.T) {
	server := echoNode(t, func(rpcRequest) rpcResponse {
		return rpcResponse{Error: &RPCError{Code: -8, Message: "invalid parameter"}}
	})

	err := NewRPCClient(RPCConfig{URL: server.URL}).Call(context.Background(), "getoutput", []any{"0xbad"}, nil)
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -8, rpcErr.Code)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "network: rpc error -8: invalid parameter")
}

func TestCall_NotFoundCode(t *testing.T) {
	server := echoNode(t, func(rpcRequest) rpcResponse {
		return rpcResponse{Error: &RPCError{Code: CodeNotFound, Message: "no such output"}}
	})

	err := NewRPCClient(RPCConfig{URL: server.URL}).Call(context.Background(), "getoutput", []any{"0x00"}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCall_MismatchedID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(rpcResponse{ID: 999, Result: json.RawMessage(`1`)})
	}))
	defer server.Close()

	var n int
	err := NewRPCClient(RPCConfig{URL: server.URL}).Call(context.Background(), "gettips", nil, &n)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestCall_Undecodable(t *testing.T) {
	t.Run("body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>"))
		}))
		defer server.Close()
		err := NewRPCClient(RPCConfig{URL: server.URL}).Call(context.Background(), "gettips", nil, nil)
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("result", func(t *testing.T) {
		server := echoNode(t, func(rpcRequest) rpcResponse {
			return rpcResponse{Result: json.RawMessage(`"not a number"`)}
		})
		var n int
		err := NewRPCClient(RPCConfig{URL: server.URL}).Call(context.Background(), "gettips", nil, &n)
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})
}

func TestCall_DiscardResult(t *testing.T) {
	server := echoNode(t, func(rpcRequest) rpcResponse {
		return rpcResponse{Result: json.RawMessage(`"0x01"`)}
	})
	require.NoError(t, NewRPCClient(RPCConfig{URL: server.URL}).Call(context.Background(), "submitblock", []any{"b"}, nil))
}

func TestCall_SequentialIDs(t *testing.T) {
	var mu sync.Mutex
	var ids []int64
	server := echoNode(t, func(req rpcRequest) rpcResponse {
		mu.Lock()
		ids = append(ids, req.ID)
		mu.Unlock()
		return rpcResponse{Result: json.RawMessage(`0`)}
	})

	c := NewRPCClient(RPCConfig{URL: server.URL})
	for range 3 {
		require.NoError(t, c.Call(context.Background(), "gettips", nil, nil))
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

// --------------------------------------------------------------------------
// Pacing
// --------------------------------------------------------------------------

func TestCall_RateLimited(t *testing.T) {
	server := echoNode(t, func(rpcRequest) rpcResponse { return rpcResponse{} })
	c := NewRPCClient(RPCConfig{URL: server.URL, MaxRequestsPerSecond: 20})

	start := time.Now()
	for range 3 {
		require.NoError(t, c.Call(context.Background(), "gettips", nil, nil))
	}
	// One token up front, then one every 50ms.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestCall_RateLimitHonoursContext(t *testing.T) {
	server := echoNode(t, func(rpcRequest) rpcResponse { return rpcResponse{} })
	c := NewRPCClient(RPCConfig{URL: server.URL, MaxRequestsPerSecond: 0.1})
	require.NoError(t, c.Call(context.Background(), "gettips", nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Call(ctx, "gettips", nil, nil)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

package prover

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(url string) *Client {
	c := NewClient(url, "test-key", zap.NewNop())
	c.maxWait = 3 * time.Second
	return c
}

func TestProvePacket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/prove-packet", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ProofRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sepolia", req.SourceChain)

		_ = json.NewEncoder(w).Encode(ProofResponse{ProofID: "proof-9", Status: "pending"})
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).ProvePacket(context.Background(), ProofRequest{
		SourceChain: "sepolia",
		TargetChain: "optimism-sepolia",
		PacketData:  "0xpacket",
		Sequence:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, "proof-9", resp.ProofID)
	assert.Equal(t, "pending", resp.Status)
}

func TestGetProofRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "/get-proof/proof-9", r.URL.Path)
		_ = json.NewEncoder(w).Encode(ProofResponse{ProofID: "proof-9", Status: "proven"})
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).GetProof(context.Background(), "proof-9")
	require.NoError(t, err)
	assert.Equal(t, "proven", resp.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestClientErrorIsPermanent(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "not_found", "message": "no such proof"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetProof(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)
	assert.Equal(t, "no such proof", apiErr.Message)

	// 4xx is never retried.
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestChainStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chain-status/sepolia", r.URL.Path)
		_ = json.NewEncoder(w).Encode(ChainStatus{
			ChainID:      "sepolia",
			LatestHeight: 123456,
			Status:       "active",
		})
	}))
	defer srv.Close()

	status, err := newTestClient(srv.URL).ChainStatus(context.Background(), "sepolia")
	require.NoError(t, err)
	assert.Equal(t, uint64(123456), status.LatestHeight)
	assert.Equal(t, "active", status.Status)
}

func TestMalformedErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("plain text failure"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetProof(context.Background(), "x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "plain text failure", apiErr.Message)
}

// Package prover is the HTTP client for the remote proving service: packet
// proof requests, proof status lookups, and chain/relayer health. The live
// (non-demo) status oracle is built on top of it.
package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// ProofRequest asks the proving service to attest a source-chain packet.
type ProofRequest struct {
	SourceChain string `json:"sourceChain"`
	TargetChain string `json:"targetChain"`
	PacketData  string `json:"packetData"`
	Sequence    uint64 `json:"sequence"`
}

// ProofResponse is the service's view of one proof.
type ProofResponse struct {
	ProofID     string `json:"proofId"`
	Status      string `json:"status"` // pending | proven | failed
	Proof       string `json:"proof"`
	ProofHeight uint64 `json:"proofHeight"`
	MerkleRoot  string `json:"merkleRoot"`
	Timestamp   int64  `json:"timestamp"`
	Error       string `json:"error,omitempty"`
}

// ChainStatus reports the service's sync position on one chain.
type ChainStatus struct {
	ChainID         string `json:"chainId"`
	LatestHeight    uint64 `json:"latestHeight"`
	LatestBlockHash string `json:"latestBlockHash"`
	Status          string `json:"status"` // active | inactive | syncing
	LastUpdate      int64  `json:"lastUpdate"`
}

// APIError is a structured error response from the proving service.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("prover API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// Client talks to the proving service. Requests are retried with exponential
// backoff on network errors and 5xx responses; 4xx responses are permanent.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
	maxWait time.Duration
}

func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger.Named("prover"),
		maxWait: 30 * time.Second,
	}
}

// ProvePacket submits a proof request and returns the assigned proof id.
func (c *Client) ProvePacket(ctx context.Context, req ProofRequest) (*ProofResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proof request: %w", err)
	}
	return c.doProof(ctx, http.MethodPost, "/prove-packet", body)
}

// GetProof fetches the current status of a previously requested proof.
func (c *Client) GetProof(ctx context.Context, proofID string) (*ProofResponse, error) {
	return c.doProof(ctx, http.MethodGet, "/get-proof/"+proofID, nil)
}

// ChainStatus fetches the service's sync status for one chain.
func (c *Client) ChainStatus(ctx context.Context, chainID string) (*ChainStatus, error) {
	data, err := c.do(ctx, http.MethodGet, "/chain-status/"+chainID, nil)
	if err != nil {
		return nil, err
	}
	var status ChainStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to decode chain status: %w", err)
	}
	return &status, nil
}

func (c *Client) doProof(ctx context.Context, method, path string, body []byte) (*ProofResponse, error) {
	data, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	var resp ProofResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode proof response: %w", err)
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	op := func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Warn("Prover request failed, retrying",
				zap.String("path", path), zap.Error(err))
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode >= 500:
			c.logger.Warn("Prover returned server error, retrying",
				zap.String("path", path), zap.Int("status", resp.StatusCode))
			return nil, fmt.Errorf("prover server error: %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			apiErr := &APIError{StatusCode: resp.StatusCode}
			if err := json.Unmarshal(data, apiErr); err != nil {
				apiErr.Message = string(data)
			}
			return nil, backoff.Permanent(apiErr)
		}
		return data, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(c.maxWait),
	)
}

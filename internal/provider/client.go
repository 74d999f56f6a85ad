package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Messenger is the LinkedIn messaging surface the scheduler depends on.
// Calls are idempotency-unsafe: there is no dedupe key, so callers must
// never retry a send whose outcome is unknown without going through the
// queue's uniqueness constraint.
type Messenger interface {
	SendConnectionRequest(ctx context.Context, accountID int64, targetIdentifier, message string) (string, error)
	SendMessage(ctx context.Context, accountID int64, targetIdentifier, message string) (string, error)
	GetRelationshipStatus(ctx context.Context, accountID int64, targetIdentifier string) (RelationshipStatus, error)
}

// RelationshipStatus is the provider's view of the connection between a
// sending account and a target profile.
type RelationshipStatus struct {
	Accepted bool `json:"accepted"`
	Replied  bool `json:"replied"`
}

// Client talks to the messaging provider's JSON HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a provider client with an explicit per-call timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	AccountID        int64  `json:"account_id"`
	TargetIdentifier string `json:"target_identifier"`
	Message          string `json:"message"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Reason    string `json:"reason"`
}

// SendConnectionRequest sends an invite with an attached note and returns
// the provider message ID.
func (c *Client) SendConnectionRequest(ctx context.Context, accountID int64, targetIdentifier, message string) (string, error) {
	return c.send(ctx, "/v1/connection-requests", accountID, targetIdentifier, message)
}

// SendMessage sends a direct message to an existing connection.
func (c *Client) SendMessage(ctx context.Context, accountID int64, targetIdentifier, message string) (string, error) {
	return c.send(ctx, "/v1/messages", accountID, targetIdentifier, message)
}

func (c *Client) send(ctx context.Context, path string, accountID int64, targetIdentifier, message string) (string, error) {
	body, err := json.Marshal(sendRequest{
		AccountID:        accountID,
		TargetIdentifier: targetIdentifier,
		Message:          message,
	})
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return "", &TransientError{Reason: "network", Err: err}
	}
	defer resp.Body.Close()

	var out sendResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&out); decodeErr != nil && resp.StatusCode < 300 {
		return "", &TransientError{Reason: "bad_response", Err: decodeErr}
	}
	if resp.StatusCode >= 300 {
		return "", classify(resp.StatusCode, out.Reason)
	}
	if out.MessageID == "" {
		return "", &TransientError{Reason: "missing_message_id"}
	}
	return out.MessageID, nil
}

// GetRelationshipStatus asks the provider whether the target has accepted
// the account's connection request, and whether they replied.
func (c *Client) GetRelationshipStatus(ctx context.Context, accountID int64, targetIdentifier string) (RelationshipStatus, error) {
	path := fmt.Sprintf("/v1/relationship?account_id=%d&target=%s", accountID, targetIdentifier)
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return RelationshipStatus{}, &TransientError{Reason: "network", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var out sendResponse
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return RelationshipStatus{}, classify(resp.StatusCode, out.Reason)
	}

	var status RelationshipStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return RelationshipStatus{}, &TransientError{Reason: "bad_response", Err: err}
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body *bytes.Reader) (*http.Response, error) {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return c.http.Do(req)
}

var _ Messenger = (*Client)(nil)

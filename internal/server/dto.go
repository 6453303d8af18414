package server

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/harun/kaiwa/pkg/ledger"
	"github.com/labstack/echo/v4"
)

const (
	defaultLimit = 50
	maxBodyBytes = 1 << 20 // 1 MiB
)

// createSessionRequest is the POST /v1/sessions payload.
type createSessionRequest struct {
	SessionID string         `json:"sessionId"`
	Status    string         `json:"status,omitempty"`
	Language  string         `json:"language"`
	StartedAt string         `json:"startedAt,omitempty"` // RFC 3339
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// createEventRequest is the POST /v1/sessions/:session_id/events payload.
type createEventRequest struct {
	EventID string         `json:"eventId"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// decodeSessionRequest reads, schema-validates, and unmarshals a session
// creation body, then converts it to ledger params.
func decodeSessionRequest(c echo.Context) (ledger.CreateSessionParams, error) {
	body, err := readBody(c)
	if err != nil {
		return ledger.CreateSessionParams{}, err
	}
	if err := validateAgainst(sessionSchema, body); err != nil {
		return ledger.CreateSessionParams{}, err
	}

	var req createSessionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return ledger.CreateSessionParams{}, fmt.Errorf("malformed request body: %w", err)
	}

	params := ledger.CreateSessionParams{
		SessionID: req.SessionID,
		Status:    ledger.SessionStatus(req.Status),
		Language:  req.Language,
		Metadata:  req.Metadata,
	}
	if req.StartedAt != "" {
		startedAt, err := time.Parse(time.RFC3339, req.StartedAt)
		if err != nil {
			return ledger.CreateSessionParams{}, fmt.Errorf("invalid startedAt: %w", err)
		}
		params.StartedAt = startedAt
	}
	return params, nil
}

// decodeEventRequest reads, schema-validates, and unmarshals an event body.
func decodeEventRequest(c echo.Context) (createEventRequest, error) {
	body, err := readBody(c)
	if err != nil {
		return createEventRequest{}, err
	}
	if err := validateAgainst(eventSchema, body); err != nil {
		return createEventRequest{}, err
	}

	var req createEventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return createEventRequest{}, fmt.Errorf("malformed request body: %w", err)
	}
	return req, nil
}

func readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("request body is required")
	}
	return body, nil
}

// pageParams parses offset/limit query parameters. The core imposes no
// upper bound on limit; the transport only rejects values that make no
// sense at all.
func pageParams(c echo.Context) (offset, limit int, err error) {
	offset, limit = 0, defaultLimit

	if raw := c.QueryParam("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("offset must be a non-negative integer")
		}
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("limit must be a positive integer")
		}
	}
	return offset, limit, nil
}

package server

import (
	"net/http"

	"github.com/harun/kaiwa/internal/observability"
	"github.com/harun/kaiwa/pkg/ledger"
	"github.com/labstack/echo/v4"
)

// createOrGetSession handles POST /v1/sessions. Returns 200 whether the
// session was created or already existed; the caller cannot tell the
// difference and is not supposed to.
func (s *Server) createOrGetSession(c echo.Context) error {
	params, err := decodeSessionRequest(c)
	if err != nil {
		return badRequest(c, err)
	}

	sess, err := s.service.CreateOrGetSession(c.Request().Context(), params)
	if err != nil {
		return ledgerError(c, err)
	}

	observability.RecordSessionAudit(c.Request().Context(), "session_created_or_got", sess.SessionID, "success", nil)
	return c.JSON(http.StatusOK, sess)
}

// addEvent handles POST /v1/sessions/:session_id/events. 201 on success,
// including the idempotent-duplicate case where the original event comes
// back unchanged.
func (s *Server) addEvent(c echo.Context) error {
	sessionID := c.Param("session_id")

	req, err := decodeEventRequest(c)
	if err != nil {
		return badRequest(c, err)
	}

	event, err := s.service.AddEvent(c.Request().Context(), sessionID, req.EventID, ledger.EventType(req.Type), req.Payload)
	if err != nil {
		return ledgerError(c, err)
	}

	observability.RecordEventAudit(c.Request().Context(), sessionID, event.EventID, "success", nil)
	return c.JSON(http.StatusCreated, event)
}

// getSession handles GET /v1/sessions/:session_id with offset/limit
// pagination over the session's event log.
func (s *Server) getSession(c echo.Context) error {
	sessionID := c.Param("session_id")

	offset, limit, err := pageParams(c)
	if err != nil {
		return badRequest(c, err)
	}

	view, err := s.service.GetSessionWithEvents(c.Request().Context(), sessionID, offset, limit)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// completeSession handles POST /v1/sessions/:session_id/complete.
func (s *Server) completeSession(c echo.Context) error {
	sessionID := c.Param("session_id")

	sess, err := s.service.CompleteSession(c.Request().Context(), sessionID)
	if err != nil {
		return ledgerError(c, err)
	}

	observability.RecordSessionAudit(c.Request().Context(), "session_completed", sessionID, "success", nil)
	return c.JSON(http.StatusOK, sess)
}

// healthz reports liveness plus store reachability.
func (s *Server) healthz(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// ledgerError maps the two core error kinds onto status codes: a missing
// session is the client's problem, an unreachable store is ours.
func ledgerError(c echo.Context, err error) error {
	switch {
	case ledger.IsNotFound(err):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case ledger.IsStoreUnavailable(err):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "store unavailable"})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

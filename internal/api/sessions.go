package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/gitlabassist/internal/assistant"
	"github.com/gitlabassist/pkg/models"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionResponse is returned when a session is created.
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TurnRequest carries one instruction.
type TurnRequest struct {
	Text string `json:"text"`
}

// TurnResponse is the outcome of one instruction.
type TurnResponse struct {
	Action *models.CanonicalAction `json:"action"`
	Result string                  `json:"result"`
	Status string                  `json:"status"`
	Kind   models.ErrorKind        `json:"kind,omitempty"`
}

// HistoryResponse lists what the session remembers.
type HistoryResponse struct {
	Prompts []string      `json:"prompts"`
	Summary string        `json:"summary,omitempty"`
	Turns   []models.Turn `json:"turns"`
}

const statusClarification = "clarification"

func (s *Server) createSession(c echo.Context) error {
	session, err := s.registry.Create(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to create session")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not create session"})
	}
	token, expiresAt, err := s.tokens.Issue(session.ID())
	if err != nil {
		s.registry.Remove(session.ID())
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not issue token"})
	}
	return c.JSON(http.StatusCreated, SessionResponse{SessionID: session.ID(), Token: token, ExpiresAt: expiresAt})
}

// session reopens the session of a valid token, restoring its stored
// conversation after a restart.
func (s *Server) session(c echo.Context) (*assistant.Session, error) {
	return s.registry.Open(c.Request().Context(), c.Param("id"))
}

func (s *Server) postTurn(c echo.Context) error {
	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "text is required"})
	}

	session, err := s.session(c)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not open session"})
	}
	res, err := session.HandleTurn(c.Request().Context(), req.Text)
	if err != nil {
		return c.JSON(http.StatusRequestTimeout, ErrorResponse{Error: err.Error()})
	}

	resp := TurnResponse{Action: res.Action, Result: res.Text}
	switch {
	case res.Clarification:
		resp.Status = statusClarification
	case res.Outcome != nil:
		resp.Status = string(res.Outcome.Status)
		resp.Kind = res.Outcome.Kind
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) getHistory(c echo.Context) error {
	session, err := s.session(c)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not open session"})
	}
	mem := session.Memory()
	resp := HistoryResponse{Prompts: mem.History(), Summary: mem.Summary(), Turns: mem.Turns()}
	if resp.Prompts == nil {
		resp.Prompts = []string{}
	}
	if resp.Turns == nil {
		resp.Turns = []models.Turn{}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) clearHistory(c echo.Context) error {
	session, err := s.session(c)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not open session"})
	}
	if err := session.Clear(c.Request().Context()); err != nil {
		log.Error().Err(err).Str("session", session.ID()).Msg("failed to clear conversation")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not clear history"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Chat HTTP handlers.
//
// This file exposes REST endpoints for the conversational intake surface:
//   - POST   /chat                    (one survivor message, one reply)
//   - GET    /sessions/{id}/status    (resumption probe)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/services"
)

//
// Service contracts (context-aware)
//

// ConversationService defines the chat operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ConversationService interface {
	// HandleMessage processes one survivor message and returns the reply.
	HandleMessage(ctx context.Context, sessionID, message, language string) (services.ChatReply, error)
	// Status reports whether a stored session can be resumed.
	Status(ctx context.Context, sessionID string) (services.SessionStatus, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for chat, report submission, moderation,
// map data, and the resource directory. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	convSvc   ConversationService
	reportSvc ReportService
	dir       ResourceDirectory
}

// New constructs and returns a Handlers instance bound to the given services.
func New(convSvc ConversationService, reportSvc ReportService, dir ResourceDirectory) *Handlers {
	return &Handlers{convSvc: convSvc, reportSvc: reportSvc, dir: dir}
}

// language extracts the preferred reply language from the request body value,
// falling back to the Accept-Language header prefix and finally English. Only
// the two supported tags are honored.
func language(c *gin.Context, bodyLang string) string {
	lang := strings.ToLower(strings.TrimSpace(bodyLang))
	if lang == "" && c != nil && c.Request != nil {
		lang = strings.ToLower(strings.TrimSpace(c.GetHeader("Accept-Language")))
		if i := strings.IndexAny(lang, ",-;"); i > 0 {
			lang = lang[:i]
		}
	}
	switch lang {
	case "en", "sw":
		return lang
	}
	return "en"
}

//
// DTOs
//

// ChatRequest is the JSON payload for one chat turn.
type ChatRequest struct {
	// SessionID resumes an existing session; empty starts a new one.
	SessionID string `json:"session_id" example:"session_9f2c4a1b8d3e6f70"`
	// Message is the survivor's text for this turn.
	Message string `json:"message" binding:"required" example:"I want to report something that happened"`
	// Language selects the reply language ("en" or "sw").
	Language string `json:"language" example:"en"`
}

//
// Handlers
//

// Chat godoc
// @ID          chat
// @Summary     Send one chat message
// @Description Processes one survivor message through the intake flow and returns the reply, quick replies, and progress.
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ChatRequest  true  "Chat turn payload"
//
// @Success     200  {object}  services.ChatReply
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	reply, err := h.convSvc.HandleMessage(c.Request.Context(), strings.TrimSpace(req.SessionID), req.Message, language(c, req.Language))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message must not be empty")
		case errors.Is(err, services.ErrTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message too long")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeChatFailed, "could not process message")
		}
		return
	}
	ok(c, http.StatusOK, reply)
}

// SessionStatus godoc
// @ID          sessionStatus
// @Summary     Probe a session for resumption
// @Description Returns the progress and last checkpoint of a stored session.
// @Tags        Chat
// @Produce     json
//
// @Param       id  path  string  true  "Session ID"  example(session_9f2c4a1b8d3e6f70)
//
// @Success     200  {object}  services.SessionStatus
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Router      /sessions/{id}/status [get]
func (h *Handlers) SessionStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	st, err := h.convSvc.Status(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	}
	ok(c, http.StatusOK, st)
}

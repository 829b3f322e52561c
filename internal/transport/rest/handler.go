// Package rest is the chat gateway: it accepts raw messages and structured
// commands over HTTP, runs them through the parser and the services, and
// answers with the reaction and reply the caller should relay to the chat.
package rest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dormouse-bot/dormouse/internal/domain"
	"github.com/dormouse-bot/dormouse/internal/service/checkin"
	"github.com/dormouse-bot/dormouse/internal/service/history"
	"github.com/dormouse-bot/dormouse/pkg/ctxutil"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type checkinService interface {
	OnGoodnight(ctx context.Context, in checkin.CheckinInput) (checkin.Result, error)
	OnGoodmorning(ctx context.Context, in checkin.CheckinInput) (checkin.Result, error)
	OnRating(ctx context.Context, in checkin.RatingInput) (checkin.Result, error)
}

type historyService interface {
	ResetLast(ctx context.Context, userID string) (history.ResetResult, error)
	Undo(ctx context.Context, userID string) (history.UndoResult, error)
	WipeAll(ctx context.Context, requestedBy string) (history.WipeResult, error)
}

type reportService interface {
	Weekly(ctx context.Context, now time.Time) (*domain.WeeklySummary, error)
	ExportCSV(ctx context.Context, w io.Writer, filter domain.ExportFilter) (int, error)
}

// ---------------------------------------------------------------------------
// Handler
// ---------------------------------------------------------------------------

// Handler serves the gateway endpoints.
type Handler struct {
	checkins checkinService
	history  historyService
	reports  reportService
	log      *slog.Logger
	now      func() time.Time
}

// NewHandler creates a gateway Handler.
func NewHandler(log *slog.Logger, checkins checkinService, hist historyService, reports reportService) *Handler {
	return &Handler{
		checkins: checkins,
		history:  hist,
		reports:  reports,
		log:      log.With("component", "rest"),
		now:      time.Now,
	}
}

// messageResponse is the envelope for every message and command endpoint.
// Reaction and Reply are what the caller relays back to the chat; either may
// be empty.
type messageResponse struct {
	Handled  bool   `json:"handled"`
	Reaction string `json:"reaction,omitempty"`
	Reply    string `json:"reply,omitempty"`
}

// errorResponse is the envelope for request-level failures.
type errorResponse struct {
	Error  string              `json:"error"`
	Fields []fieldErrorPayload `json:"fields,omitempty"`
}

type fieldErrorPayload struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// fail maps service errors onto HTTP responses. Storage errors are logged
// with the request ID and masked as a plain 500; the gateway never leaks
// internals and never crashes the caller's delivery loop.
func (h *Handler) fail(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make([]fieldErrorPayload, 0, len(verr.Errors))
		for _, fe := range verr.Errors {
			fields = append(fields, fieldErrorPayload{Field: fe.Field, Message: fe.Message})
		}
		c.JSON(http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: fields})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, messageResponse{Handled: true, Reply: replyNotAllowed})
	default:
		h.log.ErrorContext(c.Request.Context(), "handler error",
			slog.String("request_id", ctxutil.RequestIDFromCtx(c.Request.Context())),
			slog.String("path", c.FullPath()),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

package rest

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dormouse-bot/dormouse/internal/parse"
	"github.com/dormouse-bot/dormouse/internal/service/history"
)

// The command endpoints are the structured twin of the raw-message webhook:
// explicit fields instead of free text. Each one is reassembled into the
// canonical raw form first so stored check-ins, resets, and undos look the
// same no matter which surface produced them.

type checkinCommandRequest struct {
	UserID   string  `json:"user_id" binding:"required"`
	Username string  `json:"username" binding:"required"`
	Rating   *int    `json:"rating" binding:"omitempty,min=1,max=10"`
	Time     *string `json:"time" binding:"omitempty,timetoken"`
	Note     *string `json:"note"`
}

// rawText rebuilds the canonical message: command word, then rating, then
// time override, then quoted note.
func (r checkinCommandRequest) rawText(word string) string {
	var b strings.Builder
	b.WriteString(word)
	if r.Rating != nil {
		fmt.Fprintf(&b, " !%d", *r.Rating)
	}
	if r.Time != nil && strings.TrimSpace(*r.Time) != "" {
		fmt.Fprintf(&b, " (%s)", strings.TrimSpace(*r.Time))
	}
	if r.Note != nil && strings.TrimSpace(*r.Note) != "" {
		fmt.Fprintf(&b, " %q", strings.TrimSpace(*r.Note))
	}
	return b.String()
}

func (r checkinCommandRequest) intent(kind parse.IntentKind) parse.Intent {
	in := parse.Intent{Kind: kind, Rating: r.Rating, Note: r.Note}
	if r.Time != nil && strings.TrimSpace(*r.Time) != "" {
		tok := strings.TrimSpace(*r.Time)
		in.TimeToken = &tok
	}
	return in
}

// PostGoodnight handles POST /v1/commands/gn.
func (h *Handler) PostGoodnight(c *gin.Context) {
	var req checkinCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if isBadTimeToken(err) {
			observeMessage(parse.KindGoodnight, "BAD_TIME_TOKEN")
			c.JSON(http.StatusOK, messageResponse{Handled: true, Reply: replyBadTimeTokenGN})
			return
		}
		h.badRequest(c, err)
		return
	}
	h.handleGoodnight(c, req.UserID, req.Username, req.rawText("gn"), req.intent(parse.KindGoodnight))
}

// PostGoodmorning handles POST /v1/commands/gm.
func (h *Handler) PostGoodmorning(c *gin.Context) {
	var req checkinCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if isBadTimeToken(err) {
			observeMessage(parse.KindGoodmorning, "BAD_TIME_TOKEN")
			c.JSON(http.StatusOK, messageResponse{Handled: true, Reply: replyBadTimeTokenGM})
			return
		}
		h.badRequest(c, err)
		return
	}
	h.handleGoodmorning(c, req.UserID, req.Username, req.rawText("gm"), req.intent(parse.KindGoodmorning))
}

type rateCommandRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Username string `json:"username" binding:"required"`
	Rating   int    `json:"rating" binding:"required,min=1,max=10"`
}

// PostRate handles POST /v1/commands/rate.
func (h *Handler) PostRate(c *gin.Context) {
	var req rateCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	h.handleRating(c, req.UserID, req.Username, fmt.Sprintf("!%d", req.Rating), req.Rating)
}

type resetCommandRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Username string `json:"username" binding:"required"`
	Scope    string `json:"scope" binding:"required,oneof=last all"`
}

// PostReset handles POST /v1/commands/reset. Scope "last" pushes the newest
// check-in onto the undo stack; scope "all" is the admin-only wipe.
func (h *Handler) PostReset(c *gin.Context) {
	var req resetCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	if req.Scope == "all" {
		if _, err := h.history.WipeAll(c.Request.Context(), req.UserID); err != nil {
			h.fail(c, err)
			return
		}
		observeCommand("reset_all", "DONE")
		c.JSON(http.StatusOK, messageResponse{Handled: true, Reaction: reactReset, Reply: replyWipedAll})
		return
	}

	res, err := h.history.ResetLast(c.Request.Context(), req.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	observeCommand("reset_last", string(res.Outcome))
	if res.Outcome == history.OutcomeNothingToReset {
		c.JSON(http.StatusOK, messageResponse{Handled: true, Reply: replyNothingToReset})
		return
	}
	c.JSON(http.StatusOK, messageResponse{
		Handled:  true,
		Reaction: reactReset,
		Reply:    replyResetDone(res.RawText),
	})
}

type undoCommandRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Username string `json:"username" binding:"required"`
}

// PostUndo handles POST /v1/commands/undo.
func (h *Handler) PostUndo(c *gin.Context) {
	var req undoCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	res, err := h.history.Undo(c.Request.Context(), req.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	observeCommand("undo", string(res.Outcome))
	if res.Outcome == history.OutcomeNothingToUndo {
		c.JSON(http.StatusOK, messageResponse{Handled: true, Reply: replyNothingToUndo})
		return
	}
	c.JSON(http.StatusOK, messageResponse{
		Handled:  true,
		Reaction: reactRating,
		Reply:    replyUndoDone(res.RawText, res.HasMore),
	})
}

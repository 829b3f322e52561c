package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dormouse-bot/dormouse/internal/domain"
	"github.com/dormouse-bot/dormouse/internal/parse"
	"github.com/dormouse-bot/dormouse/internal/service/checkin"
)

// messageRequest is one raw chat message forwarded by the platform adapter.
type messageRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Username string `json:"username" binding:"required"`
	Text     string `json:"text" binding:"required"`
}

// PostMessage handles POST /v1/messages: parse the raw text and dispatch.
// Unrecognized chatter comes back as handled=false so the adapter stays
// silent, matching how the bot ignores everything that is not a check-in.
func (h *Handler) PostMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	intent := parse.Parse(req.Text)
	switch intent.Kind {
	case parse.KindGoodnight:
		h.handleGoodnight(c, req.UserID, req.Username, req.Text, intent)
	case parse.KindGoodmorning:
		h.handleGoodmorning(c, req.UserID, req.Username, req.Text, intent)
	case parse.KindRatingOnly:
		h.handleRating(c, req.UserID, req.Username, req.Text, *intent.Rating)
	default:
		observeMessage(parse.KindUnknown, "IGNORED")
		c.JSON(http.StatusOK, messageResponse{Handled: false})
	}
}

func (h *Handler) handleGoodnight(c *gin.Context, userID, username, raw string, intent parse.Intent) {
	in := checkin.CheckinInput{
		UserID:    userID,
		Username:  username,
		RawText:   raw,
		Rating:    intent.Rating,
		TimeToken: intent.TimeToken,
		Note:      intent.Note,
		Now:       h.now().UTC(),
	}

	res, err := h.checkins.OnGoodnight(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, domain.ErrBadTimeToken) {
			observeMessage(parse.KindGoodnight, "BAD_TIME_TOKEN")
			c.JSON(http.StatusOK, messageResponse{Handled: true, Reply: replyBadTimeTokenGN})
			return
		}
		h.fail(c, err)
		return
	}

	reaction := reactGoodnight
	if res.Prompt == checkin.PromptCloseOpenFirst {
		// A parked goodnight is recorded quietly; only the prompt to close
		// the open session goes out.
		reaction = ""
	}

	observeMessage(parse.KindGoodnight, string(res.Prompt))
	c.JSON(http.StatusOK, messageResponse{
		Handled:  true,
		Reaction: reaction,
		Reply:    replyFor(parse.KindGoodnight, res.Prompt),
	})
}

func (h *Handler) handleGoodmorning(c *gin.Context, userID, username, raw string, intent parse.Intent) {
	in := checkin.CheckinInput{
		UserID:    userID,
		Username:  username,
		RawText:   raw,
		Rating:    intent.Rating,
		TimeToken: intent.TimeToken,
		Note:      intent.Note,
		Now:       h.now().UTC(),
	}

	res, err := h.checkins.OnGoodmorning(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, domain.ErrBadTimeToken) {
			observeMessage(parse.KindGoodmorning, "BAD_TIME_TOKEN")
			c.JSON(http.StatusOK, messageResponse{Handled: true, Reply: replyBadTimeTokenGM})
			return
		}
		h.fail(c, err)
		return
	}

	reply := replyFor(parse.KindGoodmorning, res.Prompt)
	if res.DurationAnomaly {
		if reply != "" {
			reply = replyDurationAnomaly + "\n\n" + reply
		} else {
			reply = replyDurationAnomaly
		}
	}

	reaction := reactGoodmorning
	switch res.Prompt {
	case checkin.PromptConsecutiveGoodmorning, checkin.PromptNoOpenSession:
		// Nothing was recorded, so no sun on the message.
		reaction = ""
	}

	observeMessage(parse.KindGoodmorning, string(res.Prompt))
	c.JSON(http.StatusOK, messageResponse{Handled: true, Reaction: reaction, Reply: reply})
}

func (h *Handler) handleRating(c *gin.Context, userID, username, raw string, rating int) {
	in := checkin.RatingInput{
		UserID:   userID,
		Username: username,
		RawText:  raw,
		Rating:   rating,
		Now:      h.now().UTC(),
	}

	res, err := h.checkins.OnRating(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}

	observeMessage(parse.KindRatingOnly, string(res.Prompt))
	if res.Prompt == checkin.PromptNoRatingTarget {
		c.JSON(http.StatusOK, messageResponse{Handled: true, Reaction: reactUnknownRef})
		return
	}
	c.JSON(http.StatusOK, messageResponse{
		Handled:  true,
		Reaction: reactRating,
		Reply:    replyFor(parse.KindRatingOnly, res.Prompt),
	})
}

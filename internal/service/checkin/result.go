package checkin

import "github.com/dormouse-bot/dormouse/internal/domain"

// Prompt tells the caller which follow-up message to send. It is advisory
// and never alters stored state.
type Prompt string

const (
	PromptNone                   Prompt = "NONE"
	PromptAskEvening             Prompt = "ASK_EVENING"
	PromptAskMorning             Prompt = "ASK_MORNING"
	PromptAskBoth                Prompt = "ASK_BOTH"
	PromptCloseOpenFirst         Prompt = "CLOSE_OPEN_FIRST"
	PromptConsecutiveGoodmorning Prompt = "CONSECUTIVE_GM"
	PromptNoOpenSession          Prompt = "NO_OPEN_SESSION"
	PromptNoRatingTarget         Prompt = "NO_RATING_TARGET"
)

// Result is the outcome of one handled check-in.
type Result struct {
	// Prompt selects the follow-up message class for the caller.
	Prompt Prompt
	// Session is the session touched by the operation, nil when nothing was
	// created or mutated.
	Session *domain.Session
	// DurationAnomaly is set when a closed session kept a negative sleep
	// duration after the repair heuristic declined. Callers should surface
	// it rather than silently accepting the data.
	DurationAnomaly bool
}

// followupPrompt maps a closed session's remaining rating slots to the
// prompt class the caller should send.
func followupPrompt(s domain.Session) Prompt {
	switch s.State {
	case domain.SessionClosedAwaitingBoth:
		return PromptAskBoth
	case domain.SessionClosedAwaitingEvening:
		return PromptAskEvening
	case domain.SessionClosedAwaitingMorning:
		return PromptAskMorning
	default:
		return PromptNone
	}
}

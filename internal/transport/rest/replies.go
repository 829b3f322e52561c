package rest

import (
	"fmt"

	"github.com/dormouse-bot/dormouse/internal/parse"
	"github.com/dormouse-bot/dormouse/internal/service/checkin"
)

// Reactions attached to handled messages. The caller relays them to the chat
// platform as emoji reactions on the original message.
const (
	reactGoodnight   = "🌙"
	reactGoodmorning = "☀️"
	reactRating      = "✅"
	reactUnknownRef  = "❓"
	reactReset       = "♻️"
	reactExport      = "📩"
)

// Follow-up texts. Kept verbatim so long-time users see the exact wording
// they are used to.
const (
	replyAskEveningAfterGN = "Quick check-in: reply with `!1`–`!10` for how energetic you felt today (10 = great)."
	replyAskMorning        = "Quick check-in: reply with `!1`–`!10` for how energetic you feel right now (10 = great)."
	replyRemindEvening     = "Reminder: you still owe an evening energy rating for last night. Reply with `!1`–`!10`."
	replyAskBoth           = "You still owe **two** energy ratings for this sleep: first send `!1`–`!10` for how energetic you felt yesterday, then send another `!1`–`!10` for how you feel right now."
	replyMorningAfterEven  = "Got it for last night. Now send another `!1`–`!10` for how you feel right now this morning."
	replyCloseOpenFirst    = "I saw two `gn` in a row. Please send a `gm (time)` first to complete your previous `gn`, then send your current goodnight message again."
	replyConsecutiveGM     = "I saw two `gm` in a row. Please send a `gn (time)` first to start the clock at when you went to bed, then send your current good morning message again."
	replyNoOpenSession     = "I don't see an open session (no prior `gn`). Send `gn` first."

	replyBadTimeTokenGN = "I couldn't parse that time. Try `(11pm)`, `(9:00 am)`, or `(21:15)`."
	replyBadTimeTokenGM = "I couldn't parse that time. Try `(9am)`, `(9:00 am)`, or `(21:15)`."

	replyNothingToReset = "No data to reset yet."
	replyNothingToUndo  = "No reset operation to undo."
	replyWipedAll       = "♻️ Reset complete: wiped ALL data."
	replyNotAllowed     = "Not allowed."

	replyDurationAnomaly = "⚠️ That sleep came out negative (bed time after wake time). If it looks wrong, `reset last` and re-enter it."
)

// replyFor maps a check-in outcome to the follow-up text the caller should
// send. The same prompt class reads differently depending on which intent
// produced it: a missing evening rating is a fresh ask right after goodnight
// but a reminder by the time the user says good morning.
func replyFor(kind parse.IntentKind, prompt checkin.Prompt) string {
	switch prompt {
	case checkin.PromptAskEvening:
		if kind == parse.KindGoodmorning {
			return replyRemindEvening
		}
		return replyAskEveningAfterGN
	case checkin.PromptAskMorning:
		if kind == parse.KindRatingOnly {
			return replyMorningAfterEven
		}
		return replyAskMorning
	case checkin.PromptAskBoth:
		return replyAskBoth
	case checkin.PromptCloseOpenFirst:
		return replyCloseOpenFirst
	case checkin.PromptConsecutiveGoodmorning:
		return replyConsecutiveGM
	case checkin.PromptNoOpenSession:
		return replyNoOpenSession
	default:
		return ""
	}
}

func replyResetDone(raw string) string {
	if raw == "" {
		raw = "unknown"
	}
	return fmt.Sprintf("♻️ Reset your last entry: `%s`", raw)
}

func replyUndoDone(raw string, hasMore bool) string {
	if raw == "" {
		raw = "unknown"
	}
	msg := fmt.Sprintf("✅ Re-added: `%s`", raw)
	if hasMore {
		msg += " (more undos available)"
	}
	return msg
}

package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dormouse-bot/dormouse/internal/domain"
	"github.com/dormouse-bot/dormouse/internal/service/checkin"
	"github.com/dormouse-bot/dormouse/internal/service/history"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubCheckins struct {
	gotGN     *checkin.CheckinInput
	gotGM     *checkin.CheckinInput
	gotRating *checkin.RatingInput

	result checkin.Result
	err    error
}

func (s *stubCheckins) OnGoodnight(_ context.Context, in checkin.CheckinInput) (checkin.Result, error) {
	s.gotGN = &in
	return s.result, s.err
}

func (s *stubCheckins) OnGoodmorning(_ context.Context, in checkin.CheckinInput) (checkin.Result, error) {
	s.gotGM = &in
	return s.result, s.err
}

func (s *stubCheckins) OnRating(_ context.Context, in checkin.RatingInput) (checkin.Result, error) {
	s.gotRating = &in
	return s.result, s.err
}

type stubHistory struct {
	resetResult history.ResetResult
	undoResult  history.UndoResult
	wipeResult  history.WipeResult
	err         error

	wipedBy string
}

func (s *stubHistory) ResetLast(_ context.Context, _ string) (history.ResetResult, error) {
	return s.resetResult, s.err
}

func (s *stubHistory) Undo(_ context.Context, _ string) (history.UndoResult, error) {
	return s.undoResult, s.err
}

func (s *stubHistory) WipeAll(_ context.Context, requestedBy string) (history.WipeResult, error) {
	s.wipedBy = requestedBy
	return s.wipeResult, s.err
}

type stubReports struct {
	summary *domain.WeeklySummary
	csv     string
	filter  domain.ExportFilter
	err     error
}

func (s *stubReports) Weekly(_ context.Context, _ time.Time) (*domain.WeeklySummary, error) {
	return s.summary, s.err
}

func (s *stubReports) ExportCSV(_ context.Context, w io.Writer, filter domain.ExportFilter) (int, error) {
	s.filter = filter
	if s.err != nil {
		return 0, s.err
	}
	_, err := io.WriteString(w, s.csv)
	return strings.Count(s.csv, "\n"), err
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type harness struct {
	checkins *stubCheckins
	history  *stubHistory
	reports  *stubReports
	handler  *Handler
}

func newHarness() *harness {
	h := &harness{
		checkins: &stubCheckins{},
		history:  &stubHistory{},
		reports:  &stubReports{},
	}
	h.handler = NewHandler(slog.Default(), h.checkins, h.history, h.reports)
	h.handler.now = func() time.Time {
		return time.Date(2024, 3, 6, 7, 30, 0, 0, time.UTC)
	}
	return h
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func (h *harness) serve(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()

	router := NewRouter(slog.Default(), h.handler, NewHealthHandler(okPinger{}, "test"))
	router.ServeHTTP(rec, req)
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) messageResponse {
	t.Helper()
	var resp messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// ---------------------------------------------------------------------------
// POST /v1/messages
// ---------------------------------------------------------------------------

func TestPostMessage_GoodnightParsesAndReplies(t *testing.T) {
	h := newHarness()
	h.checkins.result = checkin.Result{Prompt: checkin.PromptAskEvening}

	rec := h.serve(t, http.MethodPost, "/v1/messages", reqBody{
		"user_id":  "u1",
		"username": "alice",
		"text":     `gn !7 (11pm) "pset grinding"`,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeMessage(t, rec)
	assert.True(t, resp.Handled)
	assert.Equal(t, reactGoodnight, resp.Reaction)
	assert.Equal(t, replyAskEveningAfterGN, resp.Reply)

	require.NotNil(t, h.checkins.gotGN)
	in := *h.checkins.gotGN
	assert.Equal(t, "u1", in.UserID)
	assert.Equal(t, "alice", in.Username)
	assert.Equal(t, `gn !7 (11pm) "pset grinding"`, in.RawText)
	require.NotNil(t, in.Rating)
	assert.Equal(t, 7, *in.Rating)
	require.NotNil(t, in.TimeToken)
	assert.Equal(t, "11pm", *in.TimeToken)
	require.NotNil(t, in.Note)
	assert.Equal(t, "pset grinding", *in.Note)
	assert.False(t, in.Now.IsZero())
}

func TestPostMessage_ParkedGoodnightGetsNoReaction(t *testing.T) {
	h := newHarness()
	h.checkins.result = checkin.Result{Prompt: checkin.PromptCloseOpenFirst}

	rec := h.serve(t, http.MethodPost, "/v1/messages", reqBody{
		"user_id":  "u1",
		"username": "alice",
		"text":     "gn (11pm)",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeMessage(t, rec)
	assert.True(t, resp.Handled)
	assert.Empty(t, resp.Reaction, "a parked goodnight is recorded without a reaction")
	assert.Equal(t, replyCloseOpenFirst, resp.Reply)
}

func TestPostMessage_UnknownTextIgnored(t *testing.T) {
	h := newHarness()

	rec := h.serve(t, http.MethodPost, "/v1/messages", reqBody{
		"user_id":  "u1",
		"username": "alice",
		"text":     "see you all tomorrow",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeMessage(t, rec)
	assert.False(t, resp.Handled)
	assert.Empty(t, resp.Reaction)
	assert.Empty(t, resp.Reply)
	assert.Nil(t, h.checkins.gotGN)
	assert.Nil(t, h.checkins.gotGM)
	assert.Nil(t, h.checkins.gotRating)
}

func TestPostMessage_BadTimeToken_GN(t *testing.T) {
	h := newHarness()
	h.checkins.err = fmt.Errorf("resolve: %w", domain.ErrBadTimeToken)

	rec := h.serve(t, http.MethodPost, "/v1/messages", reqBody{
		"user_id":  "u1",
		"username": "alice",
		"text":     "gn (25:99)",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeMessage(t, rec)
	assert.True(t, resp.Handled)
	assert.Empty(t, resp.Reaction)
	assert.Equal(t, replyBadTimeTokenGN, resp.Reply)
}

func TestPostMessage_BadTimeToken_GM(t *testing.T) {
	h := newHarness()
	h.checkins.err = fmt.Errorf("resolve: %w", domain.ErrBadTimeToken)

	rec := h.serve(t, http.MethodPost, "/v1/messages", reqBody{
		"user_id":  "u1",
		"username": "alice",
		"text":     "gm (99)",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeMessage(t, rec)
	assert.Equal(t, replyBadTimeTokenGM, resp.Reply)
}

func TestPostMessage_GoodmorningAnomalySurfaced(t *testing.T) {
	h := newHarness()
	h.checkins.result = checkin.Result{Prompt: checkin.PromptAskBoth, DurationAnomaly: true}

	rec := h.serve(t, http.MethodPost, "/v1/messages", reqBody{
		"user_id":  "u1",
		"username": "alice",
		"text":     "gm",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeMessage(t, rec)
	assert.Equal(t, reactGoodmorning, resp.Reaction)
	assert.True(t, strings.HasPrefix(resp.Reply, replyDurationAnomaly))
	assert.Contains(t, resp.Reply, replyAskBoth)
}

func TestPostMessage_ConsecutiveGoodmorningGetsNoReaction(t *testing.T) {
	h := newHarness()
	h.checkins.result = checkin.Result{Prompt: checkin.PromptConsecutiveGoodmorning}

	rec := h.serve(t, http.MethodPost, "/v1/messages", reqBody{
		"user_id":  "u1",
		"username": "alice",
		"text":     "gm",
	})

	resp := decodeMessage(t, rec)
	assert.Empty(t, resp.Reaction)
	assert.Equal(t, replyConsecutiveGM, resp.Reply)
}

func TestPostMessage_RatingWithoutTarget(t *testing.T) {
	h := newHarness()
	h.checkins.result = checkin.Result{Prompt: checkin.PromptNoRatingTarget}

	rec := h.serve(t, http.MethodPost, "/v1/messages", reqBody{
		"user_id":  "u1",
		"username": "alice",
		"text":     "!5",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeMessage(t, rec)
	assert.True(t, resp.Handled)
	assert.Equal(t, reactUnknownRef, resp.Reaction)
	assert.Empty(t, resp.Reply)
	require.NotNil(t, h.checkins.gotRating)
	assert.Equal(t, 5, h.checkins.gotRating.Rating)
}

func TestPostMessage_EveningThenMorningReply(t *testing.T) {
	h := newHarness()
	h.checkins.result = checkin.Result{Prompt: checkin.PromptAskMorning}

	rec := h.serve(t, http.MethodPost, "/v1/messages", reqBody{
		"user_id":  "u1",
		"username": "alice",
		"text":     "!8",
	})

	resp := decodeMessage(t, rec)
	assert.Equal(t, reactRating, resp.Reaction)
	assert.Equal(t, replyMorningAfterEven, resp.Reply)
}

func TestPostMessage_MissingFields(t *testing.T) {
	h := newHarness()

	rec := h.serve(t, http.MethodPost, "/v1/messages", reqBody{"text": "gn"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMessage_StorageErrorMasked(t *testing.T) {
	h := newHarness()
	h.checkins.err = errors.New("pool exhausted")

	rec := h.serve(t, http.MethodPost, "/v1/messages", reqBody{
		"user_id":  "u1",
		"username": "alice",
		"text":     "gn",
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal error")
	assert.NotContains(t, rec.Body.String(), "pool exhausted")
}

// ---------------------------------------------------------------------------
// POST /v1/commands
// ---------------------------------------------------------------------------

func TestPostGoodnight_CanonicalRawText(t *testing.T) {
	h := newHarness()
	h.checkins.result = checkin.Result{Prompt: checkin.PromptAskEvening}

	rec := h.serve(t, http.MethodPost, "/v1/commands/gn", reqBody{
		"user_id":  "u1",
		"username": "alice",
		"rating":   7,
		"time":     "11pm",
		"note":     "pset grinding",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, h.checkins.gotGN)
	assert.Equal(t, `gn !7 (11pm) "pset grinding"`, h.checkins.gotGN.RawText)
}

func TestPostGoodmorning_BareCommand(t *testing.T) {
	h := newHarness()
	h.checkins.result = checkin.Result{Prompt: checkin.PromptAskBoth}

	rec := h.serve(t, http.MethodPost, "/v1/commands/gm", reqBody{
		"user_id":  "u1",
		"username": "alice",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, h.checkins.gotGM)
	assert.Equal(t, "gm", h.checkins.gotGM.RawText)
	assert.Nil(t, h.checkins.gotGM.TimeToken)

	resp := decodeMessage(t, rec)
	assert.Equal(t, replyAskBoth, resp.Reply)
}

func TestPostGoodnight_BadTimeTokenKeepsRetryReply(t *testing.T) {
	h := newHarness()

	rec := h.serve(t, http.MethodPost, "/v1/commands/gn", reqBody{
		"user_id":  "u1",
		"username": "alice",
		"time":     "25:99",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeMessage(t, rec)
	assert.Equal(t, replyBadTimeTokenGN, resp.Reply)
	assert.Nil(t, h.checkins.gotGN)
}

func TestPostRate_RangeEnforcedByBinding(t *testing.T) {
	h := newHarness()

	rec := h.serve(t, http.MethodPost, "/v1/commands/rate", reqBody{
		"user_id":  "u1",
		"username": "alice",
		"rating":   11,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, h.checkins.gotRating)
}

func TestPostRate_CanonicalRawText(t *testing.T) {
	h := newHarness()
	h.checkins.result = checkin.Result{Prompt: checkin.PromptNone}

	rec := h.serve(t, http.MethodPost, "/v1/commands/rate", reqBody{
		"user_id":  "u1",
		"username": "alice",
		"rating":   9,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, h.checkins.gotRating)
	assert.Equal(t, "!9", h.checkins.gotRating.RawText)
}

func TestPostReset_Last(t *testing.T) {
	h := newHarness()
	h.history.resetResult = history.ResetResult{Outcome: history.OutcomeDone, RawText: "gn (11pm)"}

	rec := h.serve(t, http.MethodPost, "/v1/commands/reset", reqBody{
		"user_id":  "u1",
		"username": "alice",
		"scope":    "last",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeMessage(t, rec)
	assert.Equal(t, reactReset, resp.Reaction)
	assert.Equal(t, "♻️ Reset your last entry: `gn (11pm)`", resp.Reply)
}

func TestPostReset_NothingToReset(t *testing.T) {
	h := newHarness()
	h.history.resetResult = history.ResetResult{Outcome: history.OutcomeNothingToReset}

	rec := h.serve(t, http.MethodPost, "/v1/commands/reset", reqBody{
		"user_id":  "u1",
		"username": "alice",
		"scope":    "last",
	})

	resp := decodeMessage(t, rec)
	assert.Empty(t, resp.Reaction)
	assert.Equal(t, replyNothingToReset, resp.Reply)
}

func TestPostReset_AllForbidden(t *testing.T) {
	h := newHarness()
	h.history.err = fmt.Errorf("wipe: %w", domain.ErrForbidden)

	rec := h.serve(t, http.MethodPost, "/v1/commands/reset", reqBody{
		"user_id":  "u2",
		"username": "mallory",
		"scope":    "all",
	})

	require.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeMessage(t, rec)
	assert.Equal(t, replyNotAllowed, resp.Reply)
}

func TestPostReset_AllByAdmin(t *testing.T) {
	h := newHarness()

	rec := h.serve(t, http.MethodPost, "/v1/commands/reset", reqBody{
		"user_id":  "admin-1",
		"username": "admin",
		"scope":    "all",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-1", h.history.wipedBy)
	resp := decodeMessage(t, rec)
	assert.Equal(t, replyWipedAll, resp.Reply)
}

func TestPostReset_BadScope(t *testing.T) {
	h := newHarness()

	rec := h.serve(t, http.MethodPost, "/v1/commands/reset", reqBody{
		"user_id":  "u1",
		"username": "alice",
		"scope":    "everything",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostUndo_HasMore(t *testing.T) {
	h := newHarness()
	h.history.undoResult = history.UndoResult{
		Outcome: history.OutcomeDone,
		RawText: "gm (9am)",
		HasMore: true,
	}

	rec := h.serve(t, http.MethodPost, "/v1/commands/undo", reqBody{
		"user_id":  "u1",
		"username": "alice",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeMessage(t, rec)
	assert.Equal(t, reactRating, resp.Reaction)
	assert.Equal(t, "✅ Re-added: `gm (9am)` (more undos available)", resp.Reply)
}

func TestPostUndo_EmptyStack(t *testing.T) {
	h := newHarness()
	h.history.undoResult = history.UndoResult{Outcome: history.OutcomeNothingToUndo}

	rec := h.serve(t, http.MethodPost, "/v1/commands/undo", reqBody{
		"user_id":  "u1",
		"username": "alice",
	})

	resp := decodeMessage(t, rec)
	assert.Equal(t, replyNothingToUndo, resp.Reply)
}

// ---------------------------------------------------------------------------
// Reports
// ---------------------------------------------------------------------------

func TestGetExportCSV(t *testing.T) {
	h := newHarness()
	h.reports.csv = "user_id,username\nu1,alice\n"

	rec := h.serve(t, http.MethodGet, "/v1/export.csv?user_id=u1&from=2024-03-01T00:00:00Z", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "sleep_sessions.csv")
	assert.Equal(t, h.reports.csv, rec.Body.String())
	assert.Equal(t, "u1", h.reports.filter.UserID)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), h.reports.filter.From)
	assert.True(t, h.reports.filter.To.IsZero())
}

func TestGetExportCSV_BadTimestamp(t *testing.T) {
	h := newHarness()

	rec := h.serve(t, http.MethodGet, "/v1/export.csv?from=yesterday", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetWeeklySummary(t *testing.T) {
	h := newHarness()
	h.reports.summary = &domain.WeeklySummary{
		From:           time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
		To:             time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		TotalSessions:  3,
		AverageMinutes: 460,
		Longest:        domain.SleepExtreme{Minutes: 540, Username: "alice"},
		Shortest:       domain.SleepExtreme{Minutes: 360, Username: "bob"},
		AverageRating:  6.0,
		RatedCount:     2,
		SessionsByUser: map[string]int{"alice": 2, "bob": 1},
		ContributorIDs: []string{"u1", "u2"},
	}

	rec := h.serve(t, http.MethodGet, "/v1/summary/weekly", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp weeklySummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 3, resp.Summary.TotalSessions)
	assert.Contains(t, resp.Text, "Weekly Sleep Summary")
}

func TestGetWeeklySummary_Empty(t *testing.T) {
	h := newHarness()

	rec := h.serve(t, http.MethodGet, "/v1/summary/weekly", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp weeklySummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Summary)
	assert.Equal(t, "No completed sleep sessions this week.", resp.Text)
}

// ---------------------------------------------------------------------------
// Plumbing
// ---------------------------------------------------------------------------

func TestRequestIDEchoed(t *testing.T) {
	h := newHarness()

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()

	router := NewRouter(slog.Default(), h.handler, NewHealthHandler(okPinger{}, "test"))
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
}

func TestHealthz(t *testing.T) {
	h := newHarness()

	rec := h.serve(t, http.MethodGet, "/healthz", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"version":"test"`)
}

// reqBody is shorthand for JSON request payloads.
type reqBody = map[string]any

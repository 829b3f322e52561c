package checkin

import (
	"context"
	"sort"
	"time"

	"github.com/dormouse-bot/dormouse/internal/domain"
)

// fakeStore is an in-memory stand-in for the repository interfaces so the
// state machine can be exercised through whole scenarios. Error fields
// inject failures for specific operations.
type fakeStore struct {
	nextCheckinID int64
	nextSessionID int64

	checkins map[int64]domain.Checkin
	sessions map[int64]domain.Session
	pendings map[string]domain.PendingGoodnight
	undoLen  map[string]int

	undoClears int

	createSessionErr error
	updateSessionErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		checkins: make(map[int64]domain.Checkin),
		sessions: make(map[int64]domain.Session),
		pendings: make(map[string]domain.PendingGoodnight),
		undoLen:  make(map[string]int),
	}
}

// ---------------------------------------------------------------------------
// checkinRepo
// ---------------------------------------------------------------------------

func (f *fakeStore) Create(_ context.Context, c domain.Checkin) (domain.Checkin, error) {
	f.nextCheckinID++
	c.ID = f.nextCheckinID
	f.checkins[c.ID] = c
	return c, nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (domain.Checkin, error) {
	c, ok := f.checkins[id]
	if !ok {
		return domain.Checkin{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) GetLatestByUserKindBefore(_ context.Context, userID string, kind domain.CheckinKind, cutoff time.Time) (domain.Checkin, error) {
	var best domain.Checkin
	for _, c := range f.checkins {
		if c.UserID != userID || c.Kind != kind || c.Timestamp.After(cutoff) {
			continue
		}
		if c.Timestamp.After(best.Timestamp) || (c.Timestamp.Equal(best.Timestamp) && c.ID > best.ID) {
			best = c
		}
	}
	if best.ID == 0 {
		return domain.Checkin{}, domain.ErrNotFound
	}
	return best, nil
}

// ---------------------------------------------------------------------------
// sessionRepo
// ---------------------------------------------------------------------------

func (f *fakeStore) CreateSession(_ context.Context, s domain.Session) (domain.Session, error) {
	if f.createSessionErr != nil {
		return domain.Session{}, f.createSessionErr
	}
	f.nextSessionID++
	s.ID = f.nextSessionID
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeStore) UpdateSession(_ context.Context, s domain.Session) error {
	if f.updateSessionErr != nil {
		return f.updateSessionErr
	}
	if _, ok := f.sessions[s.ID]; !ok {
		return domain.ErrNotFound
	}
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) DeleteSession(_ context.Context, id int64) error {
	if _, ok := f.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) ListOpenByUser(_ context.Context, userID string) ([]domain.Session, error) {
	var open []domain.Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.State == domain.SessionOpen {
			open = append(open, s)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].ID < open[j].ID })
	return open, nil
}

func (f *fakeStore) GetLatestByUser(_ context.Context, userID string) (domain.Session, error) {
	var best domain.Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.ID > best.ID {
			best = s
		}
	}
	if best.ID == 0 {
		return domain.Session{}, domain.ErrNotFound
	}
	return best, nil
}

func (f *fakeStore) GetLatestNeedingEvening(_ context.Context, userID string) (domain.Session, error) {
	var best domain.Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.EveningRatingStatus == domain.RatingMissing && s.ID > best.ID {
			best = s
		}
	}
	if best.ID == 0 {
		return domain.Session{}, domain.ErrNotFound
	}
	return best, nil
}

func (f *fakeStore) GetLatestNeedingMorning(_ context.Context, userID string) (domain.Session, error) {
	var best domain.Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.State.Closed() && s.MorningRating == nil && s.ID > best.ID {
			best = s
		}
	}
	if best.ID == 0 {
		return domain.Session{}, domain.ErrNotFound
	}
	return best, nil
}

// ---------------------------------------------------------------------------
// pendingRepo
// ---------------------------------------------------------------------------

func (f *fakeStore) GetByUser(_ context.Context, userID string) (domain.PendingGoodnight, error) {
	p, ok := f.pendings[userID]
	if !ok {
		return domain.PendingGoodnight{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) Upsert(_ context.Context, p domain.PendingGoodnight) error {
	f.pendings[p.UserID] = p
	return nil
}

func (f *fakeStore) DeleteByUser(_ context.Context, userID string) (bool, error) {
	_, ok := f.pendings[userID]
	delete(f.pendings, userID)
	return ok, nil
}

func (f *fakeStore) ListExpired(_ context.Context, cutoff time.Time) ([]domain.PendingGoodnight, error) {
	var expired []domain.PendingGoodnight
	for _, p := range f.pendings {
		if !p.CreatedAt.After(cutoff) {
			expired = append(expired, p)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].CreatedAt.Before(expired[j].CreatedAt) })
	return expired, nil
}

// ---------------------------------------------------------------------------
// undoRepo
// ---------------------------------------------------------------------------

func (f *fakeStore) ClearByUser(_ context.Context, userID string) (int, error) {
	n := f.undoLen[userID]
	f.undoLen[userID] = 0
	f.undoClears++
	return n, nil
}

// ---------------------------------------------------------------------------
// wrappers so one fake serves both session and checkin interfaces
// ---------------------------------------------------------------------------

// sessionStore adapts fakeStore's session methods to the sessionRepo names.
type sessionStore struct{ *fakeStore }

func (s sessionStore) Create(ctx context.Context, sess domain.Session) (domain.Session, error) {
	return s.CreateSession(ctx, sess)
}
func (s sessionStore) Update(ctx context.Context, sess domain.Session) error {
	return s.UpdateSession(ctx, sess)
}
func (s sessionStore) Delete(ctx context.Context, id int64) error {
	return s.DeleteSession(ctx, id)
}

// immediateTx runs the function directly; rollback is covered by the adapter
// integration tests.
type immediateTx struct{}

func (immediateTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

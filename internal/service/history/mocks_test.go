package history

import (
	"context"
	"sort"

	"github.com/dormouse-bot/dormouse/internal/domain"
)

// fakeStore is an in-memory stand-in for the postgres repositories so reset
// and undo can be exercised through whole multi-step scenarios.
type fakeStore struct {
	checkins      map[int64]domain.Checkin
	nextCheckinID int64

	sessions      map[int64]domain.Session
	nextSessionID int64

	undoStack  []domain.UndoEntry
	nextUndoID int64

	pendingCount   int
	summaryCleared bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		checkins:      make(map[int64]domain.Checkin),
		nextCheckinID: 1,
		sessions:      make(map[int64]domain.Session),
		nextSessionID: 1,
		nextUndoID:    1,
	}
}

// ---------------------------------------------------------------------------
// checkinRepo
// ---------------------------------------------------------------------------

func (f *fakeStore) GetLatestCheckinByUser(_ context.Context, userID string) (domain.Checkin, error) {
	var (
		best  domain.Checkin
		found bool
	)
	for _, c := range f.checkins {
		if c.UserID == userID && (!found || c.ID > best.ID) {
			best, found = c, true
		}
	}
	if !found {
		return domain.Checkin{}, domain.ErrNotFound
	}
	return best, nil
}

func (f *fakeStore) CreateCheckin(_ context.Context, c domain.Checkin) (domain.Checkin, error) {
	c.ID = f.nextCheckinID
	f.nextCheckinID++
	f.checkins[c.ID] = c
	return c, nil
}

func (f *fakeStore) CreateCheckinWithID(_ context.Context, c domain.Checkin) error {
	if _, ok := f.checkins[c.ID]; ok {
		return domain.ErrAlreadyExists
	}
	f.checkins[c.ID] = c
	if c.ID >= f.nextCheckinID {
		f.nextCheckinID = c.ID + 1
	}
	return nil
}

func (f *fakeStore) DeleteCheckin(_ context.Context, id int64) error {
	if _, ok := f.checkins[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.checkins, id)
	return nil
}

func (f *fakeStore) DeleteAllCheckins(_ context.Context) (int, error) {
	n := len(f.checkins)
	f.checkins = make(map[int64]domain.Checkin)
	return n, nil
}

// ---------------------------------------------------------------------------
// sessionRepo
// ---------------------------------------------------------------------------

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

func (f *fakeStore) GetLatestSessionByUser(_ context.Context, userID string) (domain.Session, error) {
	var (
		best  domain.Session
		found bool
	)
	for _, s := range f.sessions {
		if s.UserID == userID && (!found || s.ID > best.ID) {
			best, found = s, true
		}
	}
	if !found {
		return domain.Session{}, domain.ErrNotFound
	}
	return best, nil
}

func (f *fakeStore) CreateSession(_ context.Context, s domain.Session) (domain.Session, error) {
	s.ID = f.nextSessionID
	f.nextSessionID++
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeStore) UpdateSession(_ context.Context, s domain.Session) error {
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

func (f *fakeStore) DeleteAllSessions(_ context.Context) (int, error) {
	n := len(f.sessions)
	f.sessions = make(map[int64]domain.Session)
	return n, nil
}

// ---------------------------------------------------------------------------
// pendingRepo / summaryRepo
// ---------------------------------------------------------------------------

func (f *fakeStore) DeleteAllPendings(_ context.Context) (int, error) {
	n := f.pendingCount
	f.pendingCount = 0
	return n, nil
}

func (f *fakeStore) ClearLastSummaryDate(_ context.Context) error {
	f.summaryCleared = true
	return nil
}

// ---------------------------------------------------------------------------
// undoRepo
// ---------------------------------------------------------------------------

func (f *fakeStore) Push(_ context.Context, e domain.UndoEntry) (domain.UndoEntry, error) {
	e.ID = f.nextUndoID
	f.nextUndoID++
	f.undoStack = append(f.undoStack, e)
	return e, nil
}

func (f *fakeStore) Peek(_ context.Context, userID string) (domain.UndoEntry, error) {
	for i := len(f.undoStack) - 1; i >= 0; i-- {
		if f.undoStack[i].UserID == userID {
			return f.undoStack[i], nil
		}
	}
	return domain.UndoEntry{}, domain.ErrNotFound
}

func (f *fakeStore) Count(_ context.Context, userID string) (int, error) {
	n := 0
	for _, e := range f.undoStack {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Delete(_ context.Context, id int64) error {
	for i, e := range f.undoStack {
		if e.ID == id {
			f.undoStack = append(f.undoStack[:i], f.undoStack[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeStore) DeleteAllUndos(_ context.Context) (int, error) {
	n := len(f.undoStack)
	f.undoStack = nil
	return n, nil
}

// ---------------------------------------------------------------------------
// wrappers so one fake serves several repo interfaces
// ---------------------------------------------------------------------------

type checkinStore struct{ *fakeStore }

func (s checkinStore) GetLatestByUser(ctx context.Context, userID string) (domain.Checkin, error) {
	return s.GetLatestCheckinByUser(ctx, userID)
}

func (s checkinStore) Create(ctx context.Context, c domain.Checkin) (domain.Checkin, error) {
	return s.CreateCheckin(ctx, c)
}

func (s checkinStore) CreateWithID(ctx context.Context, c domain.Checkin) error {
	return s.CreateCheckinWithID(ctx, c)
}

func (s checkinStore) Delete(ctx context.Context, id int64) error {
	return s.DeleteCheckin(ctx, id)
}

func (s checkinStore) DeleteAll(ctx context.Context) (int, error) {
	return s.DeleteAllCheckins(ctx)
}

type sessionStore struct{ *fakeStore }

func (s sessionStore) GetLatestByUser(ctx context.Context, userID string) (domain.Session, error) {
	return s.GetLatestSessionByUser(ctx, userID)
}

func (s sessionStore) Create(ctx context.Context, sess domain.Session) (domain.Session, error) {
	return s.CreateSession(ctx, sess)
}

func (s sessionStore) Update(ctx context.Context, sess domain.Session) error {
	return s.UpdateSession(ctx, sess)
}

func (s sessionStore) Delete(ctx context.Context, id int64) error {
	return s.DeleteSession(ctx, id)
}

func (s sessionStore) DeleteAll(ctx context.Context) (int, error) {
	return s.DeleteAllSessions(ctx)
}

type pendingStore struct{ *fakeStore }

func (s pendingStore) DeleteAll(ctx context.Context) (int, error) {
	return s.DeleteAllPendings(ctx)
}

type undoStore struct{ *fakeStore }

func (s undoStore) DeleteAll(ctx context.Context) (int, error) {
	return s.DeleteAllUndos(ctx)
}

type immediateTx struct{}

func (immediateTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

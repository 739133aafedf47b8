package game

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"

	"github.com/lhccong/fish-island-backend-sub001/domain"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// --- Dictionary ---

// seqDict hands out its entries in order, skipping excluded ones.
type seqDict struct {
	mu    sync.Mutex
	words []domain.Word
	pairs []domain.WordPair
}

func (d *seqDict) RandomWord(ctx context.Context, category string, excluded []string) (domain.Word, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range d.words {
		if category != "" && w.Category != category {
			continue
		}
		if !slices.Contains(excluded, w.Text) {
			return w, nil
		}
	}
	return domain.Word{}, domain.ErrNoEligibleWords
}

func (d *seqDict) RandomPair(ctx context.Context, category string, excluded []string) (domain.WordPair, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.pairs {
		if category != "" && p.Category != category {
			continue
		}
		if !slices.Contains(excluded, p.Key()) {
			return p, nil
		}
	}
	return domain.WordPair{}, domain.ErrNoEligibleWords
}

// --- Broadcaster ---

type broadcastCall struct {
	roomID  string
	userIDs []string
	msg     Outbound
}

type sendCall struct {
	userID string
	msg    Outbound
}

type recordingBroadcaster struct {
	mu         sync.Mutex
	broadcasts []broadcastCall
	sends      []sendCall
}

func (b *recordingBroadcaster) Broadcast(roomID string, userIDs []string, msg Outbound) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcasts = append(b.broadcasts, broadcastCall{roomID: roomID, userIDs: append([]string(nil), userIDs...), msg: msg})
}

func (b *recordingBroadcaster) Send(userID string, msg Outbound) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sends = append(b.sends, sendCall{userID: userID, msg: msg})
}

func (b *recordingBroadcaster) sendsTo(userID string) []Outbound {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Outbound
	for _, s := range b.sends {
		if s.userID == userID {
			out = append(out, s.msg)
		}
	}
	return out
}

func (b *recordingBroadcaster) messagesOfType(msgType string) []Outbound {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Outbound
	for _, c := range b.broadcasts {
		if c.msg.Type == msgType {
			out = append(out, c.msg)
		}
	}
	return out
}

// --- RoundScheduler ---

type scheduledDeadline struct {
	roomID string
	at     time.Time
	token  int64
}

// manualScheduler records deadlines and lets tests fire them by hand.
type manualScheduler struct {
	mu        sync.Mutex
	scheduled []scheduledDeadline
	canceled  []string
}

func (s *manualScheduler) Schedule(roomID string, at time.Time, token int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, scheduledDeadline{roomID: roomID, at: at, token: token})
}

func (s *manualScheduler) Cancel(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canceled = append(s.canceled, roomID)
}

func (s *manualScheduler) last() scheduledDeadline {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.scheduled) == 0 {
		return scheduledDeadline{}
	}
	return s.scheduled[len(s.scheduled)-1]
}

// --- PointsLedger ---

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) AwardPoints(ctx context.Context, userID string, points int, reason, roomID string) error {
	args := m.Called(ctx, userID, points, reason, roomID)
	return args.Error(0)
}

// nopLedger is for tests that do not care about awards.
type nopLedger struct{}

func (nopLedger) AwardPoints(ctx context.Context, userID string, points int, reason, roomID string) error {
	return nil
}

// --- test harness ---

type testRig struct {
	coord *Coordinator
	store *MemStore
	cast  *recordingBroadcaster
	sched *manualScheduler
	dict  *seqDict
}

func newTestRig(cfg Settings, dict *seqDict) *testRig {
	store := NewMemStore()
	cast := &recordingBroadcaster{}
	sched := &manualScheduler{}
	words := NewWordSource(dict, store)

	coord := NewCoordinator(store, sched, cast, nopLedger{}, words, cfg, testLogger())

	// Deterministic role partition and display order for tests.
	coord.cover.shuffle = func(n int, swap func(i, j int)) {}

	return &testRig{coord: coord, store: store, cast: cast, sched: sched, dict: dict}
}

func testSettings() Settings {
	cfg := DefaultSettings()
	cfg.RoundDuration = 60 * time.Second
	cfg.EndedGrace = 30 * time.Second
	return cfg
}

func defaultDict() *seqDict {
	return &seqDict{
		words: []domain.Word{
			{Text: "lighthouse", Hint: "building", Category: "places"},
			{Text: "penguin", Hint: "animal", Category: "animals"},
			{Text: "umbrella", Hint: "object", Category: "objects"},
			{Text: "volcano", Hint: "nature", Category: "places"},
		},
		pairs: []domain.WordPair{
			{Civilian: "猫", Undercover: "老虎", Category: "animals"},
			{Civilian: "coffee", Undercover: "tea", Category: "drinks"},
		},
	}
}

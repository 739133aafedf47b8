package game

import (
	"context"
	"time"

	"github.com/lhccong/fish-island-backend-sub001/domain"
)

// Dictionary is the word dictionary collaborator. Its persistent storage and
// admin CRUD belong to the platform; the engine only draws from it. An empty
// category draws from the whole dictionary.
type Dictionary interface {
	RandomWord(ctx context.Context, category string, excluded []string) (domain.Word, error)
	RandomPair(ctx context.Context, category string, excluded []string) (domain.WordPair, error)
}

// WordSource draws words and pairs against the per-day used ledger. Draws are
// read-only: a drawn entry is consumed only when the caller marks it, so a
// transition that never commits leaves the ledger untouched.
type WordSource struct {
	dict  Dictionary
	store RoomStore
	now   func() time.Time
}

func NewWordSource(dict Dictionary, store RoomStore) *WordSource {
	return &WordSource{dict: dict, store: store, now: time.Now}
}

func (ws *WordSource) wordLedger() string {
	return "words:" + ws.now().Format("2006-01-02")
}

func (ws *WordSource) pairLedger() string {
	return "pairs:" + ws.now().Format("2006-01-02")
}

// NextSingle draws a word not yet consumed today. Exhaustion surfaces as
// domain.ErrNoEligibleWords; callers abort room creation or round advance
// rather than reuse an excluded word.
func (ws *WordSource) NextSingle(ctx context.Context, category string) (domain.Word, error) {
	used, err := ws.store.UsedToday(ctx, ws.wordLedger())
	if err != nil {
		return domain.Word{}, err
	}
	return ws.dict.RandomWord(ctx, category, used)
}

// MarkWordUsed consumes a dealt word for the rest of the day.
func (ws *WordSource) MarkWordUsed(ctx context.Context, word string) error {
	return ws.store.MarkUsed(ctx, ws.wordLedger(), word)
}

// NextPair draws a civilian/undercover pair not yet consumed today.
func (ws *WordSource) NextPair(ctx context.Context, category string) (domain.WordPair, error) {
	used, err := ws.store.UsedToday(ctx, ws.pairLedger())
	if err != nil {
		return domain.WordPair{}, err
	}
	return ws.dict.RandomPair(ctx, category, used)
}

// RegisterPair consumes a pair, drawn or externally supplied, so later draws
// exclude it the same day.
func (ws *WordSource) RegisterPair(ctx context.Context, p domain.WordPair) error {
	return ws.store.MarkUsed(ctx, ws.pairLedger(), p.Key())
}

package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhccong/fish-island-backend-sub001/domain"
)

func TestWordSource_SingleAntiRepeat(t *testing.T) {
	t.Parallel()
	dict := defaultDict()
	ws := NewWordSource(dict, NewMemStore())

	seen := map[string]bool{}
	for i := 0; i < len(dict.words); i++ {
		w, err := ws.NextSingle(context.Background(), "")
		require.NoError(t, err)
		assert.False(t, seen[w.Text], "word %q handed out twice the same day", w.Text)
		seen[w.Text] = true
		require.NoError(t, ws.MarkWordUsed(context.Background(), w.Text))
	}

	_, err := ws.NextSingle(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNoEligibleWords)
}

func TestWordSource_DrawDoesNotConsume(t *testing.T) {
	t.Parallel()
	ws := NewWordSource(defaultDict(), NewMemStore())

	first, err := ws.NextSingle(context.Background(), "")
	require.NoError(t, err)
	again, err := ws.NextSingle(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, first.Text, again.Text, "an unmarked draw must leave the pool intact")

	pair, err := ws.NextPair(context.Background(), "")
	require.NoError(t, err)
	pairAgain, err := ws.NextPair(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, pair.Key(), pairAgain.Key())
}

func TestWordSource_CategoryFiltersDraws(t *testing.T) {
	t.Parallel()
	ws := NewWordSource(defaultDict(), NewMemStore())

	w, err := ws.NextSingle(context.Background(), "animals")
	require.NoError(t, err)
	assert.Equal(t, "penguin", w.Text)

	_, err = ws.NextSingle(context.Background(), "vehicles")
	assert.ErrorIs(t, err, domain.ErrNoEligibleWords)

	p, err := ws.NextPair(context.Background(), "drinks")
	require.NoError(t, err)
	assert.Equal(t, "coffee|tea", p.Key())
}

func TestWordSource_PairAntiRepeat(t *testing.T) {
	t.Parallel()
	dict := defaultDict()
	ws := NewWordSource(dict, NewMemStore())

	first, err := ws.NextPair(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "猫", first.Civilian)
	assert.Equal(t, "老虎", first.Undercover)
	require.NoError(t, ws.RegisterPair(context.Background(), first))

	second, err := ws.NextPair(context.Background(), "")
	require.NoError(t, err)
	assert.NotEqual(t, first.Key(), second.Key())
	require.NoError(t, ws.RegisterPair(context.Background(), second))

	_, err = ws.NextPair(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNoEligibleWords)
}

func TestWordSource_RegisterPairExcludesIt(t *testing.T) {
	t.Parallel()
	dict := defaultDict()
	ws := NewWordSource(dict, NewMemStore())

	require.NoError(t, ws.RegisterPair(context.Background(), domain.WordPair{Civilian: "猫", Undercover: "老虎"}))

	p, err := ws.NextPair(context.Background(), "")
	require.NoError(t, err)
	assert.NotEqual(t, "猫|老虎", p.Key())
}

func TestWordSource_LedgersResetAcrossDays(t *testing.T) {
	t.Parallel()
	dict := &seqDict{words: []domain.Word{{Text: "solo", Hint: "h"}}}
	store := NewMemStore()
	ws := NewWordSource(dict, store)

	day := 0
	days := []string{"2026-08-29", "2026-08-30"}
	ws.now = func() time.Time {
		parsed, _ := time.Parse("2006-01-02", days[day])
		return parsed
	}

	w, err := ws.NextSingle(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, ws.MarkWordUsed(context.Background(), w.Text))
	_, err = ws.NextSingle(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNoEligibleWords)

	day = 1
	_, err = ws.NextSingle(context.Background(), "")
	assert.NoError(t, err, "a new day starts a fresh ledger")
}

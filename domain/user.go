package domain

// User is the identity projection the game engine needs. Accounts themselves
// are owned by the platform's user service; we only ever read them.
type User struct {
	Id       string
	Username string
}

// Word is a single dictionary entry for the sketch-and-guess mode. An empty
// Category means uncategorized.
type Word struct {
	Text     string
	Hint     string
	Category string
}

// WordPair is a civilian/undercover pairing for the social-deduction mode.
type WordPair struct {
	Civilian   string
	Undercover string
	Category   string
}

// Key is the ledger form of a pair, stable across a room's lifetime.
func (p WordPair) Key() string {
	return p.Civilian + "|" + p.Undercover
}

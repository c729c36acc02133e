package model

import "time"

// Review is a user's write-up of a catalog game.
// Author is a back-reference to User.ID; Game is the external catalog id.
type Review struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Game      string    `json:"game"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
}

// Favorite is the single per-user list of favourite catalog games.
type Favorite struct {
	UserID    string    `json:"user"`
	Games     []string  `json:"games"`
	CreatedAt time.Time `json:"createdAt"`
}

// Has reports whether game is in the list.
func (f Favorite) Has(game string) bool {
	for _, g := range f.Games {
		if g == game {
			return true
		}
	}
	return false
}

package models

import "time"

type Match struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Location     string    `json:"location"`
	Date         time.Time `json:"date"`
	RefereeID    int       `json:"referee_id"`
	Player1ID    *int      `json:"player1_id,omitempty"`
	Player2ID    *int      `json:"player2_id,omitempty"`
	Player1Score int       `json:"player1_score"`
	Player2Score int       `json:"player2_score"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasPlayer reports whether the player occupies either slot.
func (m *Match) HasPlayer(playerID int) bool {
	return (m.Player1ID != nil && *m.Player1ID == playerID) ||
		(m.Player2ID != nil && *m.Player2ID == playerID)
}

// MatchFilter selects matches. Date bounds are inclusive; nil fields are ignored.
type MatchFilter struct {
	From      *time.Time
	To        *time.Time
	Location  *string
	RefereeID *int
	PlayerID  *int
}

type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportTXT ExportFormat = "txt"
)

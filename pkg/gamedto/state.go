package gamedto

import "time"

// Role identifies a side of the board.
type Role string

const (
	RoleWhite Role = "white"
	RoleBlack Role = "black"
)

func (r Role) Opposite() Role {
	if r == RoleWhite {
		return RoleBlack
	}
	return RoleWhite
}

// GamePlayer is one roster row of a game. AIDifficulty is set only for AI rows.
type GamePlayer struct {
	ID           string `json:"id"`
	UserID       string `json:"userId,omitempty"`
	IsAI         bool   `json:"isAi"`
	Role         Role   `json:"role"`
	AIDifficulty string `json:"aiDifficulty,omitempty"`
}

// GameState is the full state broadcast after every mutation.
type GameState struct {
	ID            string       `json:"id"`
	GameType      string       `json:"gameType"`
	FEN           string       `json:"fen"`
	Turn          Role         `json:"turn"`
	Moves         []string     `json:"moves"`
	LastMove      string       `json:"lastMove,omitempty"`
	Players       []GamePlayer `json:"players"`
	Result        string       `json:"result,omitempty"`
	IsCheckmate   bool         `json:"isCheckmate"`
	DrawOffered   bool         `json:"drawOffered"`
	DrawOfferedBy Role         `json:"drawOfferedBy,omitempty"`
}

// GameSummary is the list-view projection of a persisted game.
type GameSummary struct {
	ID        string       `json:"id"`
	GameType  string       `json:"gameType"`
	Result    string       `json:"result,omitempty"`
	Players   []GamePlayer `json:"players"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type GamePage struct {
	Items      []GameSummary `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"totalPages"`
}

package gamedto

// QueueStatus reports a caller's position in the matchmaking queue.
type QueueStatus struct {
	InQueue              bool   `json:"inQueue"`
	Status               string `json:"status"`
	Position             int    `json:"position"`
	EstimatedWaitSeconds int    `json:"estimatedWaitTimeSeconds"`
	GameType             string `json:"gameType,omitempty"`
	QueueID              string `json:"queueId,omitempty"`
	JoinedAt             string `json:"joinedAt,omitempty"`
	TotalInQueue         int    `json:"totalInQueue"`
	GameID               string `json:"gameId,omitempty"`
}

type LeaveResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RematchStatus values returned by RequestRematch.
const (
	RematchPending  = "pending"
	RematchAccepted = "accepted"
	RematchFailed   = "failed"
	RematchError    = "error"
)

type RematchResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	GameID  string `json:"gameId,omitempty"`
	Message string `json:"message,omitempty"`
}

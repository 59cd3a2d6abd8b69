package model

// Timer is a tracked activity interval. Start, End, Duration, and Progress
// are unix milliseconds. End and Duration are set exactly once, when the
// timer is stopped; a timer is never reopened or deleted. Progress is
// derived at read time for active timers and never persisted.
type Timer struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Description string `json:"description"`
	Start       int64  `json:"start"`
	End         *int64 `json:"end,omitempty"`
	Duration    *int64 `json:"duration,omitempty"`
	IsActive    bool   `json:"is_active"`
	Progress    *int64 `json:"progress,omitempty"`
}

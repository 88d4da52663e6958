package engine

import (
	"time"

	"gameday-live-service/internal/domain"
)

// sessionClock holds the wall-clock facts for one event session: the fixed
// kickoff instant plus the operator-advanced quarter and status. Quarter and
// status transitions are never computed from kickoff alone because real games
// run long.
type sessionClock struct {
	kickoff time.Time
	quarter domain.Quarter
	status  domain.GameStatus
}

// gameStatus derives pre_game from kickoff until an operator transition has
// been recorded; after that the operator-set status wins.
func (c sessionClock) gameStatus(now time.Time) domain.GameStatus {
	if c.status != "" {
		return c.status
	}
	if now.Before(c.kickoff) {
		return domain.GamePre
	}
	return domain.GameInProgress
}

func (c sessionClock) timeToKickoff(now time.Time) time.Duration {
	if remaining := c.kickoff.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

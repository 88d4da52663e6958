package domain

import (
	"sort"
	"time"
)

// Quarter identifies one of the fixed segments of the game.
type Quarter string

const (
	QuarterQ1 Quarter = "Q1"
	QuarterQ2 Quarter = "Q2"
	QuarterQ3 Quarter = "Q3"
	QuarterQ4 Quarter = "Q4"
	QuarterOT Quarter = "OT"
)

// Quarters returns every quarter in game order.
func Quarters() []Quarter {
	return []Quarter{QuarterQ1, QuarterQ2, QuarterQ3, QuarterQ4, QuarterOT}
}

// GameStatus is where the event stands relative to kickoff.
type GameStatus string

const (
	GamePre        GameStatus = "pre_game"
	GameInProgress GameStatus = "in_progress"
	GameHalftime   GameStatus = "halftime"
	GamePost       GameStatus = "post_game"
)

// QuestionStatus tracks a question through its one-way runtime lifecycle.
type QuestionStatus string

const (
	StatusPending  QuestionStatus = "pending"
	StatusActive   QuestionStatus = "active"
	StatusLocked   QuestionStatus = "locked"
	StatusResolved QuestionStatus = "resolved"
)

// Option represents a selectable answer for a question.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Question is an immutable catalog entry. The engine never mutates it.
type Question struct {
	ID           string   `json:"id"`
	Quarter      Quarter  `json:"quarter"`
	Ordinal      int      `json:"ordinal"`
	Prompt       string   `json:"prompt"`
	Options      []Option `json:"options"`
	Points       int      `json:"points"`       // defaults to 10 if zero
	TimeLimitSec int      `json:"timeLimitSec"` // defaults to 60 if zero
}

// TimeLimit returns the answer window as a duration, applying the default.
func (q Question) TimeLimit() time.Duration {
	if q.TimeLimitSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(q.TimeLimitSec) * time.Second
}

// PointValue returns the question's score weight, applying the default.
func (q Question) PointValue() int {
	if q.Points <= 0 {
		return 10
	}
	return q.Points
}

// HasOption reports whether id is one of the question's option identifiers.
func (q Question) HasOption(id string) bool {
	for _, opt := range q.Options {
		if opt.ID == id {
			return true
		}
	}
	return false
}

// Event is the authored question catalog for one game.
type Event struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Kickoff   time.Time  `json:"kickoff"`
	Questions []Question `json:"questions"`
}

// QuestionsForQuarter returns the quarter's questions ordered by ordinal.
// The slice is freshly allocated; the catalog itself stays untouched.
func (e Event) QuestionsForQuarter(quarter Quarter) []Question {
	var out []Question
	for _, q := range e.Questions {
		if q.Quarter == quarter {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}

// QuestionByID looks up a catalog question.
func (e Event) QuestionByID(id string) (Question, bool) {
	for _, q := range e.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// RuntimeState is the lifecycle record the engine keeps per question.
// DroppedAt and ExpiresAt are set exactly when the question leaves pending;
// CorrectOptionID and ResolvedAt only once it resolves.
type RuntimeState struct {
	Status          QuestionStatus `json:"status"`
	DroppedAt       time.Time      `json:"droppedAt,omitempty"`
	ExpiresAt       time.Time      `json:"expiresAt,omitempty"`
	ResolvedAt      time.Time      `json:"resolvedAt,omitempty"`
	CorrectOptionID string         `json:"correctOptionId,omitempty"`
}

// Answer is the user's single response to a question. Correct stays nil
// until the question resolves.
type Answer struct {
	QuestionID string    `json:"questionId"`
	OptionID   string    `json:"optionId"`
	AnsweredAt time.Time `json:"answeredAt"`
	Correct    *bool     `json:"correct,omitempty"`
}

// SessionState is the durable per-user engine state. Any question absent
// from Runtime is pending.
type SessionState struct {
	Answers []Answer                `json:"answers"`
	Runtime map[string]RuntimeState `json:"questionRuntimeState"`
}

// QuarterScore is the derived scoreboard for one quarter.
type QuarterScore struct {
	Quarter        Quarter `json:"quarter"`
	AnsweredCount  int     `json:"answeredCount"`
	CorrectCount   int     `json:"correctCount"`
	TotalQuestions int     `json:"totalQuestions"`
	Points         int     `json:"points"`
}

// QuestionView is the render-ready projection of one question for a user.
type QuestionView struct {
	Question        Question       `json:"question"`
	Status          QuestionStatus `json:"status"`
	TimeRemainingMs int64          `json:"timeRemainingMs"`
	Answer          *Answer        `json:"answer,omitempty"`
	CorrectOptionID string         `json:"correctOptionId,omitempty"`
}

// Snapshot is the full per-user view pushed over the fan surface.
type Snapshot struct {
	EventID        string         `json:"eventId"`
	UserID         string         `json:"userId"`
	GameStatus     GameStatus     `json:"gameStatus"`
	CurrentQuarter Quarter        `json:"currentQuarter"`
	KickoffInMs    int64          `json:"kickoffInMs"`
	Questions      []QuestionView `json:"questions"`
	QuarterScores  []QuarterScore `json:"quarterScores"`
	TotalPoints    int            `json:"totalPoints"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

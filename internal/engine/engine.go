package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"gameday-live-service/internal/domain"
)

// StateStore is the persistence port for a user's durable engine state.
// Save must be atomic per call: a session state is either fully written or
// the previous one remains readable.
type StateStore interface {
	Load(ctx context.Context, eventID, userID string) (domain.SessionState, bool, error)
	Save(ctx context.Context, eventID, userID string, state domain.SessionState) error
}

// Engine runs the live question lifecycle for one user in one event: question
// drops, answer admission, locking, resolution, and derived scoring. It owns
// no timers; every time-sensitive call takes now explicitly and the host is
// responsible for sweeping expired windows via LockExpired.
type Engine struct {
	event  domain.Event
	userID string
	store  StateStore
	clock  sessionClock

	mu      sync.RWMutex
	runtime map[string]domain.RuntimeState
	answers map[string]domain.Answer
}

// New builds an engine for the user, restoring any persisted session state.
// Questions absent from the persisted runtime map start as pending.
func New(ctx context.Context, event domain.Event, userID string, store StateStore) (*Engine, error) {
	e := &Engine{
		event:   event,
		userID:  userID,
		store:   store,
		clock:   sessionClock{kickoff: event.Kickoff, quarter: domain.QuarterQ1},
		runtime: make(map[string]domain.RuntimeState),
		answers: make(map[string]domain.Answer),
	}
	state, ok, err := store.Load(ctx, event.ID, userID)
	if err != nil {
		return nil, err
	}
	if ok {
		for id, rs := range state.Runtime {
			e.runtime[id] = rs
		}
		for _, ans := range state.Answers {
			e.answers[ans.QuestionID] = ans
		}
	}
	return e, nil
}

// Drop opens the question's answer window. Repeat calls on a question that
// already left pending are no-ops.
func (e *Engine) Drop(ctx context.Context, questionID string, now time.Time) error {
	q, ok := e.event.QuestionByID(questionID)
	if !ok {
		return domain.ErrQuestionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rs := e.runtimeLocked(questionID)
	if rs.Status != domain.StatusPending {
		return nil
	}
	prev, hadPrev := e.runtime[questionID]
	e.runtime[questionID] = domain.RuntimeState{
		Status:    domain.StatusActive,
		DroppedAt: now,
		ExpiresAt: now.Add(q.TimeLimit()),
	}
	if err := e.persistLocked(ctx); err != nil {
		e.revertRuntimeLocked(questionID, prev, hadPrev)
		return err
	}
	return nil
}

// Lock closes the answer window without revealing the correct option.
// Invoked by the host's expiry sweep or early by an operator. No-op unless
// the question is currently active.
func (e *Engine) Lock(ctx context.Context, questionID string, now time.Time) error {
	if _, ok := e.event.QuestionByID(questionID); !ok {
		return domain.ErrQuestionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rs := e.runtimeLocked(questionID)
	if rs.Status != domain.StatusActive {
		return nil
	}
	prev, hadPrev := e.runtime[questionID]
	rs.Status = domain.StatusLocked
	e.runtime[questionID] = rs
	if err := e.persistLocked(ctx); err != nil {
		e.revertRuntimeLocked(questionID, prev, hadPrev)
		return err
	}
	return nil
}

// Resolve reveals the correct option and back-fills correctness onto any
// recorded answer. Resolving a still-active question locks it implicitly.
// Re-resolving with the same option is a no-op; a different option is a
// ResolutionConflict and leaves the original resolution intact.
func (e *Engine) Resolve(ctx context.Context, questionID, correctOptionID string, now time.Time) error {
	q, ok := e.event.QuestionByID(questionID)
	if !ok {
		return domain.ErrQuestionNotFound
	}
	if !q.HasOption(correctOptionID) {
		return domain.ErrOptionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rs := e.runtimeLocked(questionID)
	switch rs.Status {
	case domain.StatusResolved:
		if rs.CorrectOptionID == correctOptionID {
			return nil
		}
		return domain.ErrResolutionConflict
	case domain.StatusPending:
		return domain.ErrInvalidTransition
	}

	prevRS, hadRS := e.runtime[questionID]
	rs.Status = domain.StatusResolved
	rs.CorrectOptionID = correctOptionID
	rs.ResolvedAt = now
	e.runtime[questionID] = rs

	prevAns, hadAns := e.answers[questionID]
	if hadAns {
		correct := prevAns.OptionID == correctOptionID
		updated := prevAns
		updated.Correct = &correct
		e.answers[questionID] = updated
	}

	if err := e.persistLocked(ctx); err != nil {
		e.revertRuntimeLocked(questionID, prevRS, hadRS)
		if hadAns {
			e.answers[questionID] = prevAns
		}
		return err
	}
	return nil
}

// SubmitAnswer records the user's one answer for a question. Admission rules,
// checked in order: the question is active, no answer exists yet, the window
// has not expired (re-checked against now even if no lock has run), and the
// option belongs to the question. Any refusal leaves no side effect.
func (e *Engine) SubmitAnswer(ctx context.Context, questionID, optionID string, now time.Time) error {
	q, ok := e.event.QuestionByID(questionID)
	if !ok {
		return domain.ErrQuestionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rs := e.runtimeLocked(questionID)
	if rs.Status != domain.StatusActive {
		return domain.ErrQuestionNotOpen
	}
	if _, answered := e.answers[questionID]; answered {
		return domain.ErrAlreadyAnswered
	}
	if now.After(rs.ExpiresAt) {
		return domain.ErrWindowExpired
	}
	if !q.HasOption(optionID) {
		return domain.ErrOptionNotFound
	}

	e.answers[questionID] = domain.Answer{
		QuestionID: questionID,
		OptionID:   optionID,
		AnsweredAt: now,
	}
	if err := e.persistLocked(ctx); err != nil {
		delete(e.answers, questionID)
		return err
	}
	return nil
}

// LockExpired sweeps every active question whose window has passed into
// locked. It reports whether anything changed. The host calls this on its
// own tick; the engine never schedules it.
func (e *Engine) LockExpired(ctx context.Context, now time.Time) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var changed []string
	prev := make(map[string]domain.RuntimeState)
	for id, rs := range e.runtime {
		if rs.Status == domain.StatusActive && !now.Before(rs.ExpiresAt) {
			prev[id] = rs
			rs.Status = domain.StatusLocked
			e.runtime[id] = rs
			changed = append(changed, id)
		}
	}
	if len(changed) == 0 {
		return false, nil
	}
	if err := e.persistLocked(ctx); err != nil {
		for id, rs := range prev {
			e.runtime[id] = rs
		}
		return false, err
	}
	return true, nil
}

// Reset wipes all answers and runtime state back to pending.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	prevRuntime, prevAnswers := e.runtime, e.answers
	e.runtime = make(map[string]domain.RuntimeState)
	e.answers = make(map[string]domain.Answer)
	if err := e.persistLocked(ctx); err != nil {
		e.runtime, e.answers = prevRuntime, prevAnswers
		return err
	}
	return nil
}

// Status returns the question's current lifecycle status.
func (e *Engine) Status(questionID string) domain.QuestionStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.runtimeLocked(questionID).Status
}

// TimeRemaining reports how long the answer window stays open. Pending
// questions have no countdown; locked and resolved questions report zero.
func (e *Engine) TimeRemaining(questionID string, now time.Time) time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rs := e.runtimeLocked(questionID)
	if rs.Status != domain.StatusActive {
		return 0
	}
	if remaining := rs.ExpiresAt.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

// AnswerFor returns the user's recorded answer, if any.
func (e *Engine) AnswerFor(questionID string) (domain.Answer, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ans, ok := e.answers[questionID]
	return ans, ok
}

// HasAnswered reports whether the user answered the question.
func (e *Engine) HasAnswered(questionID string) bool {
	_, ok := e.AnswerFor(questionID)
	return ok
}

// QuarterScore derives the quarter's scoreboard from the ledger and catalog.
// Unresolved answers count as answered but not yet correct.
func (e *Engine) QuarterScore(quarter domain.Quarter) domain.QuarterScore {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.quarterScoreLocked(quarter)
}

func (e *Engine) quarterScoreLocked(quarter domain.Quarter) domain.QuarterScore {
	score := domain.QuarterScore{Quarter: quarter}
	for _, q := range e.event.QuestionsForQuarter(quarter) {
		score.TotalQuestions++
		ans, ok := e.answers[q.ID]
		if !ok {
			continue
		}
		score.AnsweredCount++
		if ans.Correct != nil && *ans.Correct {
			score.CorrectCount++
			score.Points += q.PointValue()
		}
	}
	return score
}

// TotalScore sums quarter points across the catalog in quarter order.
func (e *Engine) TotalScore() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	total := 0
	for _, quarter := range domain.Quarters() {
		total += e.quarterScoreLocked(quarter).Points
	}
	return total
}

// SetCurrentQuarter records an operator quarter advance. Quarter changes are
// operator-driven because real game segments have variable length.
func (e *Engine) SetCurrentQuarter(quarter domain.Quarter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.quarter = quarter
	e.clock.status = domain.GameInProgress
}

// CurrentQuarter returns the operator-set quarter.
func (e *Engine) CurrentQuarter() domain.Quarter {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.clock.quarter
}

// SetGameStatus records an operator status transition (halftime, post_game).
func (e *Engine) SetGameStatus(status domain.GameStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.status = status
}

// GameStatus reports where the event stands relative to kickoff and any
// operator transitions.
func (e *Engine) GameStatus(now time.Time) domain.GameStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.clock.gameStatus(now)
}

// TimeToKickoff returns how long until kickoff, zero once it has passed.
func (e *Engine) TimeToKickoff(now time.Time) time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.clock.timeToKickoff(now)
}

// Snapshot projects the full per-user view for rendering: every question with
// its status, countdown and answer, plus derived scores. Safe on every tick.
func (e *Engine) Snapshot(now time.Time) domain.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := domain.Snapshot{
		EventID:        e.event.ID,
		UserID:         e.userID,
		GameStatus:     e.clock.gameStatus(now),
		CurrentQuarter: e.clock.quarter,
		KickoffInMs:    e.clock.timeToKickoff(now).Milliseconds(),
		UpdatedAt:      now,
	}
	for _, quarter := range domain.Quarters() {
		questions := e.event.QuestionsForQuarter(quarter)
		if len(questions) == 0 {
			continue
		}
		for _, q := range questions {
			rs := e.runtimeLocked(q.ID)
			view := domain.QuestionView{
				Question:        q,
				Status:          rs.Status,
				CorrectOptionID: rs.CorrectOptionID,
			}
			if rs.Status == domain.StatusActive {
				if remaining := rs.ExpiresAt.Sub(now); remaining > 0 {
					view.TimeRemainingMs = remaining.Milliseconds()
				}
			}
			if ans, ok := e.answers[q.ID]; ok {
				view.Answer = &ans
			}
			snap.Questions = append(snap.Questions, view)
		}
		score := e.quarterScoreLocked(quarter)
		snap.QuarterScores = append(snap.QuarterScores, score)
		snap.TotalPoints += score.Points
	}
	return snap
}

// Resolution returns the recorded correct option for a question once it has
// resolved. Restored sessions carry prior resolutions here.
func (e *Engine) Resolution(questionID string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rs := e.runtimeLocked(questionID)
	if rs.Status == domain.StatusResolved {
		return rs.CorrectOptionID, true
	}
	return "", false
}

func (e *Engine) runtimeLocked(questionID string) domain.RuntimeState {
	if rs, ok := e.runtime[questionID]; ok {
		return rs
	}
	return domain.RuntimeState{Status: domain.StatusPending}
}

func (e *Engine) revertRuntimeLocked(questionID string, prev domain.RuntimeState, had bool) {
	if had {
		e.runtime[questionID] = prev
		return
	}
	delete(e.runtime, questionID)
}

// persistLocked saves the durable state before a mutation is considered
// committed. Callers revert their in-memory change when it fails.
func (e *Engine) persistLocked(ctx context.Context) error {
	state := domain.SessionState{
		Runtime: make(map[string]domain.RuntimeState, len(e.runtime)),
		Answers: make([]domain.Answer, 0, len(e.answers)),
	}
	for id, rs := range e.runtime {
		state.Runtime[id] = rs
	}
	for _, ans := range e.answers {
		state.Answers = append(state.Answers, ans)
	}
	sort.Slice(state.Answers, func(i, j int) bool {
		if !state.Answers[i].AnsweredAt.Equal(state.Answers[j].AnsweredAt) {
			return state.Answers[i].AnsweredAt.Before(state.Answers[j].AnsweredAt)
		}
		return state.Answers[i].QuestionID < state.Answers[j].QuestionID
	})
	return e.store.Save(ctx, e.event.ID, e.userID, state)
}

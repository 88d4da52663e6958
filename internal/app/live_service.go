package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"gameday-live-service/internal/domain"
	"gameday-live-service/internal/engine"
)

// SessionRepository abstracts how live event sessions are tracked in-process.
type SessionRepository interface {
	GetOrCreate(event domain.Event) *LiveSession
	Get(eventID string) (*LiveSession, bool)
	All() []*LiveSession
	DeleteIfEmpty(eventID string)
}

// CatalogRepository loads event content (from cache/backing store).
type CatalogRepository interface {
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
}

// LiveService hosts the live question engines: fans join events, submit
// answers and subscribe to snapshots; operators drive the question lifecycle.
type LiveService struct {
	sessions SessionRepository
	catalog  CatalogRepository
	now      func() time.Time
}

func NewLiveService(sessions SessionRepository, catalog CatalogRepository) *LiveService {
	return &LiveService{sessions: sessions, catalog: catalog, now: time.Now}
}

// NewLiveServiceWithClock is test-only for deterministic timestamps.
func NewLiveServiceWithClock(sessions SessionRepository, catalog CatalogRepository, now func() time.Time) *LiveService {
	return &LiveService{sessions: sessions, catalog: catalog, now: now}
}

// Join restores or creates the user's engine for the event and returns the
// initial snapshot. Users cannot join unknown events.
func (s *LiveService) Join(ctx context.Context, eventID, userID string) (domain.Snapshot, error) {
	event, err := s.catalog.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	session := s.sessions.GetOrCreate(event)
	return session.join(ctx, userID, s.now())
}

// SubmitAnswer runs the admission checks for the user's answer and returns
// the refreshed snapshot. Refusals surface as the engine's typed errors.
func (s *LiveService) SubmitAnswer(ctx context.Context, eventID, userID, questionID, optionID string) (domain.Snapshot, error) {
	session, ok := s.sessions.Get(eventID)
	if !ok {
		return domain.Snapshot{}, domain.ErrSessionNotFound
	}
	return session.submitAnswer(ctx, userID, questionID, optionID, s.now())
}

// Subscribe returns a channel receiving the user's snapshot after every
// lifecycle change. The caller must invoke the cancel function to avoid leaks.
func (s *LiveService) Subscribe(_ context.Context, eventID, userID string) (<-chan domain.Snapshot, func(), error) {
	session, ok := s.sessions.Get(eventID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	return session.subscribe(userID, s.now())
}

// Leave detaches the user and drops the session once it has no engines left.
func (s *LiveService) Leave(_ context.Context, eventID, userID string) {
	session, ok := s.sessions.Get(eventID)
	if !ok {
		return
	}
	session.leave(userID)
	if session.isEmpty() {
		s.sessions.DeleteIfEmpty(eventID)
	}
}

// Reset wipes the user's answers and runtime state for the event.
func (s *LiveService) Reset(ctx context.Context, eventID, userID string) error {
	session, ok := s.sessions.Get(eventID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.reset(ctx, userID, s.now())
}

// Drop opens the question's answer window for everyone in the event.
func (s *LiveService) Drop(ctx context.Context, eventID, questionID string) error {
	return s.operatorCommand(ctx, eventID, operatorCommand{kind: commandDrop, questionID: questionID})
}

// Lock closes the question's answer window early for everyone in the event.
func (s *LiveService) Lock(ctx context.Context, eventID, questionID string) error {
	return s.operatorCommand(ctx, eventID, operatorCommand{kind: commandLock, questionID: questionID})
}

// Resolve reveals the correct option and scores recorded answers.
func (s *LiveService) Resolve(ctx context.Context, eventID, questionID, correctOptionID string) error {
	return s.operatorCommand(ctx, eventID, operatorCommand{kind: commandResolve, questionID: questionID, optionID: correctOptionID})
}

// SetQuarter advances the event to the operator-announced quarter.
func (s *LiveService) SetQuarter(ctx context.Context, eventID string, quarter domain.Quarter) error {
	return s.operatorCommand(ctx, eventID, operatorCommand{kind: commandQuarter, quarter: quarter})
}

// SetStatus records an operator game-status transition (halftime, post_game).
func (s *LiveService) SetStatus(ctx context.Context, eventID string, status domain.GameStatus) error {
	return s.operatorCommand(ctx, eventID, operatorCommand{kind: commandStatus, status: status})
}

// operatorCommand ensures a session exists (commands may precede the first
// fan) and applies the command to every engine in it.
func (s *LiveService) operatorCommand(ctx context.Context, eventID string, cmd operatorCommand) error {
	event, err := s.catalog.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	session := s.sessions.GetOrCreate(event)
	cmd.at = s.now()
	return session.apply(ctx, cmd)
}

// SweepExpired locks every answer window that has passed, across all live
// sessions. The server calls this on a tick; engines own no timers.
func (s *LiveService) SweepExpired(ctx context.Context) {
	now := s.now()
	for _, session := range s.sessions.All() {
		session.sweepExpired(ctx, now)
	}
}

type commandKind int

const (
	commandDrop commandKind = iota
	commandLock
	commandResolve
	commandQuarter
	commandStatus
)

// operatorCommand is one authoritative lifecycle action. Sessions keep the
// ordered log and replay it onto late-joining engines with the original
// timestamps, so every user's runtime state converges.
type operatorCommand struct {
	kind       commandKind
	questionID string
	optionID   string
	quarter    domain.Quarter
	status     domain.GameStatus
	at         time.Time
}

// LiveSession is the in-process host for one event: one engine per connected
// user plus the operator command log and snapshot subscribers.
type LiveSession struct {
	event  domain.Event
	states engine.StateStore

	mu          sync.Mutex
	engines     map[string]*engine.Engine
	commands    []operatorCommand
	subscribers map[chan domain.Snapshot]string
}

// NewLiveSession is exported for infrastructure layers that need to seed sessions.
func NewLiveSession(event domain.Event, states engine.StateStore) *LiveSession {
	return &LiveSession{
		event:       event,
		states:      states,
		engines:     make(map[string]*engine.Engine),
		subscribers: make(map[chan domain.Snapshot]string),
	}
}

func (s *LiveSession) join(ctx context.Context, userID string, now time.Time) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eng, ok := s.engines[userID]
	if !ok {
		var err error
		eng, err = engine.New(ctx, s.event, userID, s.states)
		if err != nil {
			return domain.Snapshot{}, err
		}
		s.replayLocked(ctx, eng)
		s.engines[userID] = eng
	}
	return eng.Snapshot(now), nil
}

// replayLocked reapplies the operator log to a fresh engine. Persisted state
// makes most replays no-ops; errors besides conflicts are routine here.
func (s *LiveSession) replayLocked(ctx context.Context, eng *engine.Engine) {
	for _, cmd := range s.commands {
		if err := applyToEngine(ctx, eng, cmd); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
			log.Printf("replay %s on event %s: %v", cmd.questionID, s.event.ID, err)
		}
	}
}

func (s *LiveSession) submitAnswer(ctx context.Context, userID, questionID, optionID string, now time.Time) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eng, ok := s.engines[userID]
	if !ok {
		return domain.Snapshot{}, domain.ErrSessionNotFound
	}
	if err := eng.SubmitAnswer(ctx, questionID, optionID, now); err != nil {
		return domain.Snapshot{}, err
	}
	snap := eng.Snapshot(now)
	s.broadcastUserLocked(userID, now)
	return snap, nil
}

func (s *LiveSession) reset(ctx context.Context, userID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	eng, ok := s.engines[userID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if err := eng.Reset(ctx); err != nil {
		return err
	}
	s.replayLocked(ctx, eng)
	s.broadcastUserLocked(userID, now)
	return nil
}

// apply validates the command against the catalog and the prior log, records
// it, and fans it out to every engine. Validation lives here too, not only in
// the engines, because commands may arrive before any fan has joined.
// Resolution conflicts abort loudly; authoritative content must never be
// silently overwritten.
func (s *LiveSession) apply(ctx context.Context, cmd operatorCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	duplicate := false
	switch cmd.kind {
	case commandDrop, commandLock, commandResolve:
		q, ok := s.event.QuestionByID(cmd.questionID)
		if !ok {
			return domain.ErrQuestionNotFound
		}
		if cmd.kind == commandLock && !s.droppedLocked(cmd.questionID) {
			// Locking a question that never dropped is a no-op, as in the
			// engines themselves.
			return nil
		}
		if cmd.kind == commandResolve {
			if !q.HasOption(cmd.optionID) {
				return domain.ErrOptionNotFound
			}
			if prior, resolved := s.resolutionLocked(cmd.questionID); resolved {
				if prior != cmd.optionID {
					log.Printf("RESOLUTION CONFLICT on event %s question %s: have %s, got %s",
						s.event.ID, cmd.questionID, prior, cmd.optionID)
					return domain.ErrResolutionConflict
				}
				// Re-resolving with the same option still fans out, so any
				// engine that missed the first pass catches up.
				duplicate = true
			} else if !s.droppedLocked(cmd.questionID) {
				return domain.ErrInvalidTransition
			}
		}
	}

	// Rule violations were rejected above; what remains per engine is
	// persistence failure. Apply to everyone so a single bad store does not
	// leave the fans split, and surface the first error to the operator.
	var firstErr error
	applied := 0
	for userID, eng := range s.engines {
		if err := applyToEngine(ctx, eng, cmd); err != nil {
			log.Printf("apply command for user %s on event %s: %v", userID, s.event.ID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		applied++
	}
	if firstErr != nil && applied == 0 && len(s.engines) > 0 {
		return firstErr
	}
	if !duplicate {
		s.commands = append(s.commands, cmd)
	}
	s.broadcastLocked(cmd.at)
	return firstErr
}

// droppedLocked reports whether a question has been opened, either by a drop
// in this session's log or by runtime state an engine restored from the store.
func (s *LiveSession) droppedLocked(questionID string) bool {
	for _, prior := range s.commands {
		if prior.kind == commandDrop && prior.questionID == questionID {
			return true
		}
	}
	for _, eng := range s.engines {
		if eng.Status(questionID) != domain.StatusPending {
			return true
		}
	}
	return false
}

// resolutionLocked returns the option a question already resolved to, checking
// both the command log and the engines' restored state.
func (s *LiveSession) resolutionLocked(questionID string) (string, bool) {
	for _, prior := range s.commands {
		if prior.kind == commandResolve && prior.questionID == questionID {
			return prior.optionID, true
		}
	}
	for _, eng := range s.engines {
		if optionID, ok := eng.Resolution(questionID); ok {
			return optionID, true
		}
	}
	return "", false
}

func applyToEngine(ctx context.Context, eng *engine.Engine, cmd operatorCommand) error {
	switch cmd.kind {
	case commandDrop:
		return eng.Drop(ctx, cmd.questionID, cmd.at)
	case commandLock:
		return eng.Lock(ctx, cmd.questionID, cmd.at)
	case commandResolve:
		return eng.Resolve(ctx, cmd.questionID, cmd.optionID, cmd.at)
	case commandQuarter:
		eng.SetCurrentQuarter(cmd.quarter)
	case commandStatus:
		eng.SetGameStatus(cmd.status)
	}
	return nil
}

func (s *LiveSession) sweepExpired(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for userID, eng := range s.engines {
		swept, err := eng.LockExpired(ctx, now)
		if err != nil {
			log.Printf("lock sweep for user %s on event %s: %v", userID, s.event.ID, err)
			continue
		}
		changed = changed || swept
	}
	if changed {
		s.broadcastLocked(now)
	}
}

func (s *LiveSession) leave(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.engines, userID)
}

func (s *LiveSession) isEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.engines) == 0
}

// IsEmpty reports whether the session has no engines left.
func (s *LiveSession) IsEmpty() bool {
	return s.isEmpty()
}

func (s *LiveSession) subscribe(userID string, now time.Time) (<-chan domain.Snapshot, func(), error) {
	s.mu.Lock()
	eng, ok := s.engines[userID]
	if !ok {
		s.mu.Unlock()
		return nil, nil, domain.ErrSessionNotFound
	}

	ch := make(chan domain.Snapshot, 8)
	s.subscribers[ch] = userID
	initial := eng.Snapshot(now)
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *LiveSession) broadcastLocked(now time.Time) {
	for ch, userID := range s.subscribers {
		eng, ok := s.engines[userID]
		if !ok {
			continue
		}
		sendSnapshot(ch, eng.Snapshot(now))
	}
}

func (s *LiveSession) broadcastUserLocked(userID string, now time.Time) {
	eng, ok := s.engines[userID]
	if !ok {
		return
	}
	for ch, subscriber := range s.subscribers {
		if subscriber == userID {
			sendSnapshot(ch, eng.Snapshot(now))
		}
	}
}

// sendSnapshot drops the stalest queued snapshot when a subscriber falls
// behind so a slow client never blocks the session.
func sendSnapshot(ch chan domain.Snapshot, snap domain.Snapshot) {
	select {
	case ch <- snap:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

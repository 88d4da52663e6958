package domain

import "errors"

var (
	// ErrEventNotFound indicates the event catalog could not be loaded.
	ErrEventNotFound = errors.New("event not found")
	// ErrSessionNotFound is returned when a live session has not been initialized.
	ErrSessionNotFound = errors.New("live session not found")
	// ErrQuestionNotFound indicates a referenced question ID is not in the catalog.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a referenced option ID is invalid for the question.
	ErrOptionNotFound = errors.New("option not found")

	// ErrQuestionNotOpen is returned when an answer arrives while the question
	// is not in its active window.
	ErrQuestionNotOpen = errors.New("question is not open for answers")
	// ErrAlreadyAnswered enforces one answer per question per user.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrWindowExpired is returned when an answer arrives after the window
	// closed, even if the question has not been locked yet.
	ErrWindowExpired = errors.New("answer window expired")
	// ErrInvalidTransition marks a lifecycle call that does not apply to the
	// question's current status. Callers log and continue.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrResolutionConflict means a question was re-resolved with a different
	// correct option. This is operator error against authoritative content and
	// must be surfaced loudly, never silently overwritten.
	ErrResolutionConflict = errors.New("resolution conflict: question already resolved with a different option")
)

package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"gameday-live-service/internal/domain"
	"gameday-live-service/internal/engine"
	"gameday-live-service/internal/infra/memory"
)

var kickoff = time.Date(2026, time.September, 13, 20, 20, 0, 0, time.UTC)

func sampleEvent() domain.Event {
	return domain.Event{
		ID:      "gameday-1",
		Title:   "Sunday Night Showdown",
		Kickoff: kickoff,
		Questions: []domain.Question{
			{
				ID: "q1-1", Quarter: domain.QuarterQ1, Ordinal: 1,
				Prompt:  "Will the opening drive end in a score?",
				Options: []domain.Option{{ID: "yes", Label: "Yes"}, {ID: "no", Label: "No"}},
				Points:  10, TimeLimitSec: 60,
			},
			{
				ID: "q1-2", Quarter: domain.QuarterQ1, Ordinal: 2,
				Prompt:  "First play of the game?",
				Options: []domain.Option{{ID: "run", Label: "Run"}, {ID: "pass", Label: "Pass"}},
				Points:  10, TimeLimitSec: 30,
			},
			{
				ID: "q1-3", Quarter: domain.QuarterQ1, Ordinal: 3,
				Prompt:  "Longest gain this quarter?",
				Options: []domain.Option{{ID: "o10", Label: "Under 10 yards"}, {ID: "o20", Label: "10+ yards"}},
				Points:  10, TimeLimitSec: 60,
			},
			{
				ID: "q2-1", Quarter: domain.QuarterQ2, Ordinal: 1,
				Prompt:  "Over or under 10 combined points this quarter?",
				Options: []domain.Option{{ID: "over", Label: "Over"}, {ID: "under", Label: "Under"}},
				Points:  20, TimeLimitSec: 60,
			},
		},
	}
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.New(context.Background(), sampleEvent(), "u1", memory.NewStateStore())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng
}

func at(offset time.Duration) time.Time {
	return kickoff.Add(offset)
}

func TestDropActivatesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if got := eng.Status("q1-1"); got != domain.StatusPending {
		t.Fatalf("expected pending before drop, got %s", got)
	}
	if err := eng.Drop(ctx, "q1-1", at(0)); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if got := eng.Status("q1-1"); got != domain.StatusActive {
		t.Fatalf("expected active after drop, got %s", got)
	}
	if got := eng.TimeRemaining("q1-1", at(10*time.Second)); got != 50*time.Second {
		t.Fatalf("expected 50s remaining, got %s", got)
	}

	// A second drop must not restart the window.
	if err := eng.Drop(ctx, "q1-1", at(40*time.Second)); err != nil {
		t.Fatalf("repeat drop: %v", err)
	}
	if got := eng.TimeRemaining("q1-1", at(50*time.Second)); got != 10*time.Second {
		t.Fatalf("expected original window, got %s remaining", got)
	}

	if err := eng.Drop(ctx, "nope", at(0)); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
}

func TestLifecycleOnlyMovesForward(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if err := eng.Drop(ctx, "q1-1", at(0)); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := eng.Lock(ctx, "q1-1", at(time.Minute)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := eng.Resolve(ctx, "q1-1", "yes", at(2*time.Minute)); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Resolved is terminal; drop and lock are no-ops that change nothing.
	if err := eng.Drop(ctx, "q1-1", at(3*time.Minute)); err != nil {
		t.Fatalf("drop after resolve: %v", err)
	}
	if err := eng.Lock(ctx, "q1-1", at(3*time.Minute)); err != nil {
		t.Fatalf("lock after resolve: %v", err)
	}
	if got := eng.Status("q1-1"); got != domain.StatusResolved {
		t.Fatalf("expected resolved to be terminal, got %s", got)
	}
}

func TestSubmitAndResolveBackfillsCorrectness(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if err := eng.Drop(ctx, "q1-1", at(0)); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := eng.SubmitAnswer(ctx, "q1-1", "yes", at(10*time.Second)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ans, ok := eng.AnswerFor("q1-1")
	if !ok {
		t.Fatalf("expected answer recorded")
	}
	if ans.Correct != nil {
		t.Fatalf("correctness must stay unset until resolution, got %v", *ans.Correct)
	}

	if err := eng.Resolve(ctx, "q1-1", "yes", at(70*time.Second)); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ans, _ = eng.AnswerFor("q1-1")
	if ans.Correct == nil || !*ans.Correct {
		t.Fatalf("expected answer marked correct, got %+v", ans)
	}
	if score := eng.QuarterScore(domain.QuarterQ1); score.Points < 10 {
		t.Fatalf("expected at least 10 points in Q1, got %d", score.Points)
	}
}

func TestSubmitRefusedAfterWindowWithoutLock(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if err := eng.Drop(ctx, "q1-2", at(0)); err != nil {
		t.Fatalf("drop: %v", err)
	}
	// 31s into a 30s window; no lock has run yet.
	err := eng.SubmitAnswer(ctx, "q1-2", "run", at(31*time.Second))
	if !errors.Is(err, domain.ErrWindowExpired) {
		t.Fatalf("expected window expired, got %v", err)
	}
	if eng.HasAnswered("q1-2") {
		t.Fatalf("refused submit must leave no answer")
	}
}

func TestOneAnswerPerQuestion(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if err := eng.Drop(ctx, "q1-3", at(0)); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := eng.SubmitAnswer(ctx, "q1-3", "o10", at(5*time.Second)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	err := eng.SubmitAnswer(ctx, "q1-3", "o20", at(6*time.Second))
	if !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected already answered, got %v", err)
	}
	ans, _ := eng.AnswerFor("q1-3")
	if ans.OptionID != "o10" {
		t.Fatalf("ledger must retain the first answer, got %s", ans.OptionID)
	}
}

func TestSubmitAdmissionRules(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	// Pending question: not open.
	if err := eng.SubmitAnswer(ctx, "q1-1", "yes", at(0)); !errors.Is(err, domain.ErrQuestionNotOpen) {
		t.Fatalf("expected not open, got %v", err)
	}

	if err := eng.Drop(ctx, "q1-1", at(0)); err != nil {
		t.Fatalf("drop: %v", err)
	}
	// Unknown option.
	if err := eng.SubmitAnswer(ctx, "q1-1", "maybe", at(5*time.Second)); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected option not found, got %v", err)
	}
	// Unknown question.
	if err := eng.SubmitAnswer(ctx, "nope", "yes", at(5*time.Second)); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}

	// Locked question: not open, and no answers after resolution either.
	if err := eng.Lock(ctx, "q1-1", at(20*time.Second)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := eng.SubmitAnswer(ctx, "q1-1", "yes", at(25*time.Second)); !errors.Is(err, domain.ErrQuestionNotOpen) {
		t.Fatalf("expected not open after lock, got %v", err)
	}
	if err := eng.Resolve(ctx, "q1-1", "yes", at(30*time.Second)); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := eng.SubmitAnswer(ctx, "q1-1", "yes", at(31*time.Second)); !errors.Is(err, domain.ErrQuestionNotOpen) {
		t.Fatalf("expected not open after resolve, got %v", err)
	}
}

func TestResolutionConflict(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if err := eng.Drop(ctx, "q1-1", at(0)); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := eng.Resolve(ctx, "q1-1", "yes", at(time.Minute)); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// Same option again is idempotent.
	if err := eng.Resolve(ctx, "q1-1", "yes", at(2*time.Minute)); err != nil {
		t.Fatalf("repeat resolve: %v", err)
	}
	// A different option is the one fatal condition.
	err := eng.Resolve(ctx, "q1-1", "no", at(3*time.Minute))
	if !errors.Is(err, domain.ErrResolutionConflict) {
		t.Fatalf("expected resolution conflict, got %v", err)
	}
	snap := eng.Snapshot(at(3 * time.Minute))
	for _, view := range snap.Questions {
		if view.Question.ID == "q1-1" && view.CorrectOptionID != "yes" {
			t.Fatalf("original resolution must stand, got %s", view.CorrectOptionID)
		}
	}
}

func TestResolveImplicitlyLocksActive(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if err := eng.Drop(ctx, "q1-1", at(0)); err != nil {
		t.Fatalf("drop: %v", err)
	}
	// Resolve straight from active, no explicit lock.
	if err := eng.Resolve(ctx, "q1-1", "no", at(10*time.Second)); err != nil {
		t.Fatalf("resolve from active: %v", err)
	}
	if got := eng.Status("q1-1"); got != domain.StatusResolved {
		t.Fatalf("expected resolved, got %s", got)
	}
	if got := eng.TimeRemaining("q1-1", at(11*time.Second)); got != 0 {
		t.Fatalf("resolved question must report zero countdown, got %s", got)
	}

	// Resolving a pending question is an invalid transition.
	if err := eng.Resolve(ctx, "q1-2", "run", at(10*time.Second)); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestLockExpiredSweep(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if err := eng.Drop(ctx, "q1-1", at(0)); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := eng.Drop(ctx, "q1-2", at(0)); err != nil {
		t.Fatalf("drop: %v", err)
	}

	changed, err := eng.LockExpired(ctx, at(31*time.Second))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !changed {
		t.Fatalf("expected sweep to lock the 30s question")
	}
	if got := eng.Status("q1-2"); got != domain.StatusLocked {
		t.Fatalf("expected q1-2 locked, got %s", got)
	}
	if got := eng.Status("q1-1"); got != domain.StatusActive {
		t.Fatalf("expected q1-1 still active, got %s", got)
	}

	changed, err = eng.LockExpired(ctx, at(32*time.Second))
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if changed {
		t.Fatalf("expected second sweep to be a no-op")
	}
}

func TestScoringDerivation(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if err := eng.Drop(ctx, "q1-1", at(0)); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := eng.Drop(ctx, "q1-2", at(0)); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := eng.Drop(ctx, "q2-1", at(0)); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := eng.SubmitAnswer(ctx, "q1-1", "yes", at(5*time.Second)); err != nil {
		t.Fatalf("submit q1-1: %v", err)
	}
	if err := eng.SubmitAnswer(ctx, "q1-2", "run", at(5*time.Second)); err != nil {
		t.Fatalf("submit q1-2: %v", err)
	}
	if err := eng.SubmitAnswer(ctx, "q2-1", "over", at(5*time.Second)); err != nil {
		t.Fatalf("submit q2-1: %v", err)
	}

	// Only q1-1 resolved so far; q1-2 resolved the other way.
	if err := eng.Resolve(ctx, "q1-1", "yes", at(2*time.Minute)); err != nil {
		t.Fatalf("resolve q1-1: %v", err)
	}
	if err := eng.Resolve(ctx, "q1-2", "pass", at(2*time.Minute)); err != nil {
		t.Fatalf("resolve q1-2: %v", err)
	}

	q1 := eng.QuarterScore(domain.QuarterQ1)
	if q1.TotalQuestions != 3 || q1.AnsweredCount != 2 || q1.CorrectCount != 1 || q1.Points != 10 {
		t.Fatalf("unexpected Q1 score: %+v", q1)
	}

	// Unresolved answers count as answered but never as correct.
	q2 := eng.QuarterScore(domain.QuarterQ2)
	if q2.AnsweredCount != 1 || q2.CorrectCount != 0 || q2.Points != 0 {
		t.Fatalf("unexpected Q2 score: %+v", q2)
	}

	sum := 0
	for _, quarter := range domain.Quarters() {
		sum += eng.QuarterScore(quarter).Points
	}
	if total := eng.TotalScore(); total != sum {
		t.Fatalf("total %d must equal quarter sum %d", total, sum)
	}

	// Resolve q2-1 against the unpicked option: still zero points.
	if err := eng.Resolve(ctx, "q2-1", "under", at(3*time.Minute)); err != nil {
		t.Fatalf("resolve q2-1: %v", err)
	}
	q2 = eng.QuarterScore(domain.QuarterQ2)
	if q2.TotalQuestions != 1 || q2.Points != 0 {
		t.Fatalf("expected zero points with totalQuestions intact, got %+v", q2)
	}
}

func TestStateSurvivesReload(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStateStore()
	event := sampleEvent()

	eng, err := engine.New(ctx, event, "u1", store)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := eng.Drop(ctx, "q1-1", at(0)); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := eng.SubmitAnswer(ctx, "q1-1", "yes", at(10*time.Second)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Simulate a device reload: a fresh engine over the same store.
	reloaded, err := engine.New(ctx, event, "u1", store)
	if err != nil {
		t.Fatalf("reload engine: %v", err)
	}
	if got := reloaded.Status("q1-1"); got != domain.StatusActive {
		t.Fatalf("expected active after reload, got %s", got)
	}
	if !reloaded.HasAnswered("q1-1") {
		t.Fatalf("expected answer to survive reload")
	}
	if err := reloaded.SubmitAnswer(ctx, "q1-1", "no", at(20*time.Second)); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("one-answer invariant must hold across reloads, got %v", err)
	}
	// Untouched questions stay pending.
	if got := reloaded.Status("q1-2"); got != domain.StatusPending {
		t.Fatalf("expected pending after reload, got %s", got)
	}
}

func TestSessionClock(t *testing.T) {
	eng := newTestEngine(t)

	if got := eng.GameStatus(at(-time.Hour)); got != domain.GamePre {
		t.Fatalf("expected pre_game before kickoff, got %s", got)
	}
	if got := eng.TimeToKickoff(at(-90 * time.Second)); got != 90*time.Second {
		t.Fatalf("expected 90s to kickoff, got %s", got)
	}
	if got := eng.TimeToKickoff(at(time.Second)); got != 0 {
		t.Fatalf("expected zero after kickoff, got %s", got)
	}

	eng.SetCurrentQuarter(domain.QuarterQ2)
	if got := eng.CurrentQuarter(); got != domain.QuarterQ2 {
		t.Fatalf("expected Q2, got %s", got)
	}
	if got := eng.GameStatus(at(time.Hour)); got != domain.GameInProgress {
		t.Fatalf("expected in_progress, got %s", got)
	}

	eng.SetGameStatus(domain.GameHalftime)
	if got := eng.GameStatus(at(2 * time.Hour)); got != domain.GameHalftime {
		t.Fatalf("expected halftime, got %s", got)
	}
	eng.SetGameStatus(domain.GamePost)
	if got := eng.GameStatus(at(4 * time.Hour)); got != domain.GamePost {
		t.Fatalf("expected post_game, got %s", got)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if err := eng.Drop(ctx, "q1-1", at(0)); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := eng.SubmitAnswer(ctx, "q1-1", "yes", at(5*time.Second)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := eng.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if eng.HasAnswered("q1-1") {
		t.Fatalf("expected ledger cleared")
	}
	if got := eng.Status("q1-1"); got != domain.StatusPending {
		t.Fatalf("expected pending after reset, got %s", got)
	}
}

func TestQuestionCatalogLookups(t *testing.T) {
	event := sampleEvent()

	q1 := event.QuestionsForQuarter(domain.QuarterQ1)
	if len(q1) != 3 {
		t.Fatalf("expected 3 Q1 questions, got %d", len(q1))
	}
	for i := 1; i < len(q1); i++ {
		if q1[i].Ordinal < q1[i-1].Ordinal {
			t.Fatalf("expected ordinal order, got %v before %v", q1[i-1].Ordinal, q1[i].Ordinal)
		}
	}
	if got := event.QuestionsForQuarter(domain.QuarterOT); got != nil {
		t.Fatalf("expected no OT questions, got %v", got)
	}

	if _, ok := event.QuestionByID("q2-1"); !ok {
		t.Fatalf("expected q2-1 present")
	}
	if _, ok := event.QuestionByID("nope"); ok {
		t.Fatalf("expected lookup miss for unknown id")
	}
}

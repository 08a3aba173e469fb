package battle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// stubGenerator is a test double for the Generator interface. It records the
// prompts it was asked to render and returns a fixed result.
type stubGenerator struct {
	mu      sync.Mutex
	url     string
	err     error
	prompts []string
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.url, g.err
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *stubGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

// blockingGenerator parks inside Generate until released, so tests can reset
// the controller while a request is still in flight.
type blockingGenerator struct {
	started chan struct{}
	release chan struct{}
	url     string
}

func (g *blockingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
		return g.url, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// newTestController wires a controller to a snapshot channel so tests can wait
// for asynchronous transitions deterministically.
func newTestController(cfg Config, gen Generator) (*Controller, chan State) {
	c := NewController(cfg, gen)
	snaps := make(chan State, 256)
	c.OnChange(func(s State) { snaps <- s })
	return c, snaps
}

func waitForPhase(t *testing.T, snaps <-chan State, phase Phase) State {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-snaps:
			if s.Phase == phase {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for phase %q", phase)
		}
	}
}

func TestStartFromWaiting(t *testing.T) {
	c, _ := newTestController(Config{TimeLimit: 60}, &stubGenerator{})

	if err := c.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	s := c.Snapshot()
	if s.Phase != PhasePlayer1Turn {
		t.Errorf("expected phase %q, got %q", PhasePlayer1Turn, s.Phase)
	}
	if !s.Active {
		t.Error("expected battle to be active after start")
	}
	if s.TimeLeft != 60 {
		t.Errorf("expected time left 60, got %d", s.TimeLeft)
	}
}

func TestStartTwiceRejected(t *testing.T) {
	c, _ := newTestController(Config{TimeLimit: 30}, &stubGenerator{})

	if err := c.Start(); err != nil {
		t.Fatalf("first Start returned error: %v", err)
	}
	if err := c.Start(); err != ErrAlreadyStarted {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestSubmitEmptyPromptRejected(t *testing.T) {
	gen := &stubGenerator{url: "img123"}
	c, _ := newTestController(Config{TimeLimit: 60}, gen)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name   string
		prompt string
	}{
		{"empty", ""},
		{"whitespace only", "   \t "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := c.SetPrompt(1, tc.prompt); err != nil {
				t.Fatalf("SetPrompt: %v", err)
			}
			if err := c.Submit(1); !errors.Is(err, ErrEmptyPrompt) {
				t.Fatalf("expected ErrEmptyPrompt, got %v", err)
			}
			s := c.Snapshot()
			if s.Phase != PhasePlayer1Turn {
				t.Errorf("phase should not change on validation failure, got %q", s.Phase)
			}
			if s.Error == "" {
				t.Error("expected a validation error message in the snapshot")
			}
		})
	}

	if gen.callCount() != 0 {
		t.Errorf("generator should not be called for empty prompts, got %d calls", gen.callCount())
	}
}

func TestPlayerOneSuccessAdvancesToPlayerTwo(t *testing.T) {
	gen := &stubGenerator{url: "img123"}
	c, snaps := newTestController(Config{TimeLimit: 60}, gen)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := c.SetPrompt(1, "a red cube"); err != nil {
		t.Fatal(err)
	}
	if err := c.Submit(1); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	s := waitForPhase(t, snaps, PhasePlayer2Turn)
	if s.Player1.ImageURL != "img123" {
		t.Errorf("expected player1 image url %q, got %q", "img123", s.Player1.ImageURL)
	}
	if !s.Player1.Submitted {
		t.Error("expected player1 to be marked submitted")
	}
	if s.CurrentPlayer != 2 {
		t.Errorf("expected current player 2, got %d", s.CurrentPlayer)
	}
	if s.TimeLeft != 60 {
		t.Errorf("expected time left reset to 60, got %d", s.TimeLeft)
	}
	if gen.lastPrompt() != "a red cube" {
		t.Errorf("generator received prompt %q", gen.lastPrompt())
	}
}

func TestPlayerTwoSuccessCompletes(t *testing.T) {
	gen := &stubGenerator{url: "img456"}
	c, snaps := newTestController(Config{TimeLimit: 60}, gen)

	var completed State
	done := make(chan struct{})
	c.OnComplete(func(s State) {
		completed = s
		close(done)
	})

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	c.SetPrompt(1, "first prompt")
	c.Submit(1)
	waitForPhase(t, snaps, PhasePlayer2Turn)

	c.SetPrompt(2, "second prompt")
	if err := c.Submit(2); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	s := waitForPhase(t, snaps, PhaseComplete)
	if !s.Player2.Submitted || s.Player2.ImageURL != "img456" {
		t.Errorf("player2 slot not updated: %+v", s.Player2)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("OnComplete was never invoked")
	}
	if completed.Phase != PhaseComplete {
		t.Errorf("OnComplete saw phase %q", completed.Phase)
	}

	// complete is terminal
	if err := c.Submit(2); err != ErrBattleComplete {
		t.Errorf("expected ErrBattleComplete after completion, got %v", err)
	}
}

func TestGenerationFailureRevertsTurn(t *testing.T) {
	gen := &stubGenerator{err: errors.New("503 Service Unavailable")}
	c, snaps := newTestController(Config{TimeLimit: 60}, gen)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	c.SetPrompt(1, "a red cube")
	if err := c.Submit(1); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	s := waitForPhase(t, snaps, PhasePlayer1Turn)
	if s.Player1.Submitted {
		t.Error("player1 must not be marked submitted after a failed generation")
	}
	if s.Error == "" || !strings.Contains(s.Error, "503") {
		t.Errorf("expected error message containing 503, got %q", s.Error)
	}

	// The turn is retried, not advanced: a second submit should work.
	gen.mu.Lock()
	gen.err = nil
	gen.url = "img123"
	gen.mu.Unlock()
	if err := c.Submit(1); err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	waitForPhase(t, snaps, PhasePlayer2Turn)
}

func TestGenerationFailureCallback(t *testing.T) {
	gen := &stubGenerator{err: errors.New("503 Service Unavailable")}
	c, snaps := newTestController(Config{TimeLimit: 60}, gen)

	type failure struct {
		player int
		prompt string
		err    error
	}
	failures := make(chan failure, 1)
	c.OnGenerationFailed(func(player int, prompt string, genErr error) {
		failures <- failure{player: player, prompt: prompt, err: genErr}
	})

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	c.SetPrompt(1, "a red cube")
	if err := c.Submit(1); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForPhase(t, snaps, PhasePlayer1Turn)

	select {
	case f := <-failures:
		if f.player != 1 || f.prompt != "a red cube" {
			t.Errorf("callback got player=%d prompt=%q", f.player, f.prompt)
		}
		if f.err == nil || !strings.Contains(f.err.Error(), "503") {
			t.Errorf("callback error = %v", f.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnGenerationFailed was never invoked")
	}
}

func TestCountdownTimeoutSubmitsCurrentPrompt(t *testing.T) {
	gen := &stubGenerator{url: "img123"}
	c, snaps := newTestController(Config{TimeLimit: 60}, gen)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 59; i++ {
		c.Tick()
	}
	if s := c.Snapshot(); s.TimeLeft != 1 {
		t.Fatalf("expected 1 second left after 59 ticks, got %d", s.TimeLeft)
	}

	// The final tick fires an implicit submission with whatever prompt is
	// present, an empty one included under the permissive default.
	c.Tick()
	s := waitForPhase(t, snaps, PhasePlayer2Turn)
	if gen.lastPrompt() != "" {
		t.Errorf("expected implicit submission of an empty prompt, got %q", gen.lastPrompt())
	}
	if s.CurrentPlayer != 2 {
		t.Errorf("expected current player 2, got %d", s.CurrentPlayer)
	}
}

func TestStrictTimeoutRejectsEmptyPrompt(t *testing.T) {
	gen := &stubGenerator{url: "img123"}
	c, _ := newTestController(Config{TimeLimit: 2, Timeout: TimeoutStrict}, gen)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}

	c.Tick()
	c.Tick()

	s := c.Snapshot()
	if s.Phase != PhasePlayer1Turn {
		t.Errorf("strict timeout must not advance the phase, got %q", s.Phase)
	}
	if s.TimeLeft != 0 {
		t.Errorf("expected clock pinned at 0, got %d", s.TimeLeft)
	}
	if s.Error == "" {
		t.Error("expected a validation error after strict timeout")
	}
	if gen.callCount() != 0 {
		t.Errorf("generator must not be called on strict timeout, got %d calls", gen.callCount())
	}
}

func TestTickIgnoredOutsideTurnPhases(t *testing.T) {
	c, _ := newTestController(Config{TimeLimit: 60}, &stubGenerator{})

	// Not started yet.
	c.Tick()
	if s := c.Snapshot(); s.TimeLeft != 60 || s.Phase != PhaseWaiting {
		t.Errorf("tick before start mutated state: %+v", s)
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	gen := &stubGenerator{url: "img123"}
	c, snaps := newTestController(Config{TimeLimit: 60}, gen)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	c.SetPrompt(1, "a red cube")
	c.Submit(1)
	waitForPhase(t, snaps, PhasePlayer2Turn)
	c.Tick()

	c.Reset()

	got := c.Snapshot()
	want := State{CurrentPlayer: 1, TimeLeft: 60, Phase: PhaseWaiting}
	if got != want {
		t.Errorf("reset state mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestStaleGenerationDiscardedAfterReset(t *testing.T) {
	gen := &blockingGenerator{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
		url:     "img-stale",
	}
	c, _ := newTestController(Config{TimeLimit: 60}, gen)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	c.SetPrompt(1, "a red cube")
	if err := c.Submit(1); err != nil {
		t.Fatal(err)
	}
	<-gen.started

	c.Reset()
	close(gen.release)

	// Give the in-flight goroutine a chance to (incorrectly) apply its result.
	time.Sleep(50 * time.Millisecond)

	s := c.Snapshot()
	if s.Phase != PhaseWaiting {
		t.Errorf("stale generation mutated phase to %q", s.Phase)
	}
	if s.Player1.ImageURL != "" || s.Player1.Submitted {
		t.Errorf("stale generation mutated player1 slot: %+v", s.Player1)
	}
}

func TestSetPromptWrongTurnRejected(t *testing.T) {
	c, _ := newTestController(Config{TimeLimit: 60}, &stubGenerator{})
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}

	if err := c.SetPrompt(2, "too early"); err != ErrWrongTurn {
		t.Errorf("expected ErrWrongTurn for player 2 during player1-turn, got %v", err)
	}
	if err := c.Submit(2); err != ErrWrongTurn {
		t.Errorf("expected ErrWrongTurn on submit, got %v", err)
	}
}

// battle/controller.go
package battle

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/pyala/promptbattle/logger"
)

// Generator 图片生成客户端接口，由generation包实现
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TimeoutPolicy controls what happens when a turn times out with an empty
// prompt. Permissive submits the empty prompt anyway; strict treats it like a
// manual submission and rejects it, leaving the turn stalled at zero seconds.
type TimeoutPolicy string

const (
	TimeoutPermissive TimeoutPolicy = "permissive"
	TimeoutStrict     TimeoutPolicy = "strict"
)

// Config 每局对战的规则配置
type Config struct {
	TimeLimit int // seconds per turn
	Timeout   TimeoutPolicy
}

// PlayerState 单个玩家在本局中的可见状态
type PlayerState struct {
	Prompt    string `json:"prompt"`
	ImageURL  string `json:"image_url,omitempty"`
	Submitted bool   `json:"is_submitted"`
}

// State is an immutable snapshot of one battle. Views render it; only the
// controller mutates the underlying state.
type State struct {
	CurrentPlayer int         `json:"current_player"`
	TimeLeft      int         `json:"time_left"`
	Active        bool        `json:"is_active"`
	Phase         Phase       `json:"phase"`
	Player1       PlayerState `json:"player1"`
	Player2       PlayerState `json:"player2"`
	Error         string      `json:"error,omitempty"`
}

var (
	ErrAlreadyStarted = errors.New("battle already started")
	ErrWrongTurn      = errors.New("not this player's turn")
	ErrEmptyPrompt    = errors.New("prompt must not be empty")
	ErrBattleComplete = errors.New("battle already complete")
)

// Controller owns the per-battle state and drives all phase transitions from
// three triggers: explicit start, the per-second countdown tick, and prompt
// submission (manual or forced by timeout). One instance per active battle.
type Controller struct {
	mu  sync.Mutex
	cfg Config
	gen Generator

	state State

	// genSeq is bumped on every submission and reset. A generation response
	// whose sequence no longer matches is stale and must not touch state.
	genSeq uint64
	cancel context.CancelFunc

	onChange   func(State)
	onTurnDone func(player int, prompt, imageURL string)
	onGenFail  func(player int, prompt string, genErr error)
	onComplete func(State)
}

// NewController 创建一个处于waiting阶段的对战控制器
func NewController(cfg Config, gen Generator) *Controller {
	if cfg.TimeLimit <= 0 {
		cfg.TimeLimit = 60
	}
	if cfg.Timeout == "" {
		cfg.Timeout = TimeoutPermissive
	}
	c := &Controller{cfg: cfg, gen: gen}
	c.state = c.initialState()
	return c
}

func (c *Controller) initialState() State {
	return State{
		CurrentPlayer: 1,
		TimeLeft:      c.cfg.TimeLimit,
		Phase:         PhaseWaiting,
	}
}

// OnChange registers the snapshot listener. Called after every state change,
// outside the controller lock.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// OnTurnDone registers a callback fired after each successful generation with
// the submitting player, their prompt, and the stored image reference.
func (c *Controller) OnTurnDone(fn func(player int, prompt, imageURL string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTurnDone = fn
}

// OnGenerationFailed registers a callback fired when a generation call errors
// and the turn is handed back to the player.
func (c *Controller) OnGenerationFailed(fn func(player int, prompt string, genErr error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onGenFail = fn
}

// OnComplete registers a callback fired once when the battle reaches complete.
func (c *Controller) OnComplete(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onComplete = fn
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start moves waiting -> player1-turn and arms the countdown.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.state.Phase != PhaseWaiting {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state.Active = true
	c.state.CurrentPlayer = 1
	c.state.TimeLeft = c.cfg.TimeLimit
	if err := c.setPhase(PhasePlayer1Turn); err != nil {
		c.mu.Unlock()
		return err
	}
	snap := c.state
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// Reset cancels any in-flight generation and restores the initial state.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.genSeq++ // invalidate any generation response still in flight
	c.state = c.initialState()
	snap := c.state
	c.mu.Unlock()
	c.notify(snap)
}

// SetPrompt updates the prompt text for the player whose turn is active.
func (c *Controller) SetPrompt(player int, text string) error {
	c.mu.Lock()
	if c.state.Phase != TurnPhase(player) {
		c.mu.Unlock()
		return ErrWrongTurn
	}
	c.slot(player).Prompt = text
	snap := c.state
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// Submit is the manual submission trigger. It validates the trimmed prompt
// before transitioning; the validation error is surfaced in the snapshot and
// the phase does not change.
func (c *Controller) Submit(player int) error {
	c.mu.Lock()
	if c.state.Phase == PhaseComplete {
		c.mu.Unlock()
		return ErrBattleComplete
	}
	if !c.state.Active || c.state.Phase != TurnPhase(player) {
		c.mu.Unlock()
		return ErrWrongTurn
	}
	if strings.TrimSpace(c.slot(player).Prompt) == "" {
		c.state.Error = "please enter a prompt before submitting"
		snap := c.state
		c.mu.Unlock()
		c.notify(snap)
		return ErrEmptyPrompt
	}
	snap := c.beginGeneration(player)
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// Tick is invoked once per second by the room's countdown. It only acts while
// the battle is active and in a turn phase; ticks during generating are no-ops.
// When the clock runs out the tick doubles as a submission for the current
// player, subject to the configured timeout policy.
func (c *Controller) Tick() {
	c.mu.Lock()
	if !c.state.Active || !c.state.Phase.IsTurn() {
		c.mu.Unlock()
		return
	}
	if c.state.TimeLeft > 1 {
		c.state.TimeLeft--
		snap := c.state
		c.mu.Unlock()
		c.notify(snap)
		return
	}
	player := c.state.CurrentPlayer
	if c.cfg.Timeout == TimeoutStrict && strings.TrimSpace(c.slot(player).Prompt) == "" {
		c.state.TimeLeft = 0
		c.state.Error = "time expired with no prompt entered"
		snap := c.state
		c.mu.Unlock()
		c.notify(snap)
		return
	}
	snap := c.beginGeneration(player)
	c.mu.Unlock()
	c.notify(snap)
}

// beginGeneration transitions to generating and launches the asynchronous
// call. Caller must hold the lock.
func (c *Controller) beginGeneration(player int) State {
	c.state.Error = ""
	if err := c.setPhase(PhaseGenerating); err != nil {
		logger.Log.Errorf("refusing generation from phase %s: %v", c.state.Phase, err)
		return c.state
	}
	c.genSeq++
	seq := c.genSeq
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	prompt := c.slot(player).Prompt
	go c.generate(ctx, seq, player, prompt)
	return c.state
}

func (c *Controller) generate(ctx context.Context, seq uint64, player int, prompt string) {
	imageURL, err := c.gen.Generate(ctx, prompt)

	c.mu.Lock()
	if seq != c.genSeq || c.state.Phase != PhaseGenerating {
		// A reset or newer submission superseded this request.
		c.mu.Unlock()
		return
	}
	c.cancel = nil

	if err != nil {
		logger.Log.Warnf("image generation failed for player %d: %v", player, err)
		c.state.Error = "failed to generate image: " + err.Error()
		if terr := c.setPhase(TurnPhase(player)); terr != nil {
			logger.Log.Errorf("failed to revert turn for player %d: %v", player, terr)
		}
		genFail := c.onGenFail
		snap := c.state
		c.mu.Unlock()
		if genFail != nil {
			genFail(player, prompt, err)
		}
		c.notify(snap)
		return
	}

	slot := c.slot(player)
	slot.ImageURL = imageURL
	slot.Submitted = true
	c.state.Error = ""

	var complete func(State)
	if player == 1 {
		_ = c.setPhase(PhasePlayer2Turn)
		c.state.CurrentPlayer = 2
		c.state.TimeLeft = c.cfg.TimeLimit
	} else {
		_ = c.setPhase(PhaseComplete)
		complete = c.onComplete
	}
	turnDone := c.onTurnDone
	snap := c.state
	c.mu.Unlock()

	if turnDone != nil {
		turnDone(player, prompt, imageURL)
	}
	if complete != nil {
		complete(snap)
	}
	c.notify(snap)
}

// setPhase enforces the transition table. Caller must hold the lock.
func (c *Controller) setPhase(to Phase) error {
	if !canTransition(c.state.Phase, to) {
		return ErrTransitionNotAllowed
	}
	c.state.Phase = to
	return nil
}

func (c *Controller) slot(player int) *PlayerState {
	if player == 2 {
		return &c.state.Player2
	}
	return &c.state.Player1
}

func (c *Controller) notify(snap State) {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// room/room.go
package room

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pyala/promptbattle/battle"
	"github.com/pyala/promptbattle/logger"
	"github.com/pyala/promptbattle/models"
	"github.com/pyala/promptbattle/network"
	"github.com/pyala/promptbattle/session"
	"github.com/pyala/promptbattle/timer"
)

// Status 表示房间的业务状态
type Status int

const (
	StatusWaiting Status = iota
	StatusBattling
	StatusSettled
)

// battleSeats 对战固定两个座位
const battleSeats = 2

// Room hosts one battle: two seated players, the turn controller, and the
// countdown registered with the shared timer manager. All battle mutations go
// through the controller; the room only reacts to its snapshots.
type Room struct {
	Code      string
	SessionID string
	Theme     string
	CreatedAt time.Time

	controller  *battle.Controller
	broadcaster Broadcaster
	recorder    Recorder
	timers      *timer.Manager
	tickID      int64

	status      Status
	statusMutex sync.RWMutex

	seats     map[int]*session.Session
	promptIDs map[int]string // seat position -> archived prompt row id
	seatMutex sync.RWMutex
}

// NewRoom 创建一个新房间并接好控制器回调
func NewRoom(sess *models.BattleSession, cfg battle.Config, gen battle.Generator, b Broadcaster, rec Recorder, timers *timer.Manager) *Room {
	r := &Room{
		Code:        sess.SessionCode,
		SessionID:   sess.ID,
		Theme:       sess.BattleTheme,
		CreatedAt:   time.Now(),
		controller:  battle.NewController(cfg, gen),
		broadcaster: b,
		recorder:    rec,
		timers:      timers,
		status:      StatusWaiting,
		seats:       make(map[int]*session.Session),
		promptIDs:   make(map[int]string),
	}

	r.controller.OnChange(r.onStateChange)
	r.controller.OnTurnDone(r.onTurnDone)
	r.controller.OnGenerationFailed(r.onGenerationFailed)
	r.controller.OnComplete(r.onComplete)

	// 每秒驱动一次倒计时
	r.tickID = timers.Schedule(time.Second, time.Second, r.controller.Tick)

	return r
}

// Controller exposes the battle operations to the transport layer.
func (r *Room) Controller() *battle.Controller {
	return r.controller
}

// AddPlayer seats a session in the lowest free seat. Returns the seat
// position, or false when both seats are taken.
func (r *Room) AddPlayer(s *session.Session) (int, bool) {
	r.seatMutex.Lock()
	defer r.seatMutex.Unlock()

	for pos := 1; pos <= battleSeats; pos++ {
		if _, taken := r.seats[pos]; !taken {
			r.seats[pos] = s
			s.Seat(r.Code, pos)
			return pos, true
		}
	}
	return 0, false
}

// RemovePlayer frees the seat held by the given session.
func (r *Room) RemovePlayer(sessionID string) {
	r.seatMutex.Lock()
	defer r.seatMutex.Unlock()

	for pos, s := range r.seats {
		if s.GetID() == sessionID {
			s.Unseat()
			delete(r.seats, pos)
			return
		}
	}
}

// SeatOf returns the seat position held by a session, 0 if unseated.
func (r *Room) SeatOf(sessionID string) int {
	r.seatMutex.RLock()
	defer r.seatMutex.RUnlock()

	for pos, s := range r.seats {
		if s.GetID() == sessionID {
			return pos
		}
	}
	return 0
}

// GetSessions returns a snapshot of all seated sessions.
func (r *Room) GetSessions() []*session.Session {
	r.seatMutex.RLock()
	defer r.seatMutex.RUnlock()

	sessions := make([]*session.Session, 0, len(r.seats))
	for _, s := range r.seats {
		sessions = append(sessions, s)
	}
	return sessions
}

// PlayerCount returns the number of seated players.
func (r *Room) PlayerCount() int {
	r.seatMutex.RLock()
	defer r.seatMutex.RUnlock()
	return len(r.seats)
}

func (r *Room) SetStatus(status Status) {
	r.statusMutex.Lock()
	defer r.statusMutex.Unlock()
	r.status = status
}

func (r *Room) GetStatus() Status {
	r.statusMutex.RLock()
	defer r.statusMutex.RUnlock()
	return r.status
}

// Close detaches the room from the timer manager.
func (r *Room) Close() {
	r.timers.Cancel(r.tickID)
}

// onStateChange pushes every snapshot to both players and keeps the business
// status in step with the battle phase.
func (r *Room) onStateChange(s battle.State) {
	switch {
	case s.Phase == battle.PhaseWaiting:
		r.SetStatus(StatusWaiting)
	case s.Phase == battle.PhaseComplete:
		r.SetStatus(StatusSettled)
	default:
		r.SetStatus(StatusBattling)
	}

	data, err := json.Marshal(s)
	if err != nil {
		logger.Log.Errorf("failed to marshal battle state for room %s: %v", r.Code, err)
		return
	}
	if err := r.broadcaster.BroadcastToRoom(r.Code, network.MsgTypeBattleState, data); err != nil {
		logger.Log.Warnf("broadcast to room %s failed: %v", r.Code, err)
	}
}

func (r *Room) seatUserID(player int) string {
	r.seatMutex.RLock()
	defer r.seatMutex.RUnlock()
	if s, ok := r.seats[player]; ok {
		return s.UserID
	}
	return ""
}

// onTurnDone archives the submitted prompt and its generated image. The image
// row is written pending first and flipped once the turn is settled, the same
// lifecycle a deferred generation pipeline would use.
func (r *Room) onTurnDone(player int, prompt, imageURL string) {
	rec, err := r.recorder.RecordPrompt(r.SessionID, r.seatUserID(player), prompt, player)
	if err != nil {
		logger.Log.Errorf("failed to record prompt for room %s: %v", r.Code, err)
		return
	}

	r.seatMutex.Lock()
	r.promptIDs[player] = rec.ID
	r.seatMutex.Unlock()

	img, err := r.recorder.RecordImage(rec.ID, imageURL, models.ImageStatusPending)
	if err != nil {
		logger.Log.Errorf("failed to record image for room %s: %v", r.Code, err)
		return
	}
	if err := r.recorder.UpdateImageStatus(img.ID, models.ImageStatusCompleted); err != nil {
		logger.Log.Errorf("failed to mark image %s completed: %v", img.ID, err)
	}
}

// onGenerationFailed archives the failed attempt so the session history shows
// it; the turn itself is already handed back to the player.
func (r *Room) onGenerationFailed(player int, prompt string, genErr error) {
	rec, err := r.recorder.RecordPrompt(r.SessionID, r.seatUserID(player), prompt, player)
	if err != nil {
		logger.Log.Errorf("failed to record prompt for room %s: %v", r.Code, err)
		return
	}
	if _, err := r.recorder.RecordImage(rec.ID, "", models.ImageStatusFailed); err != nil {
		logger.Log.Errorf("failed to record failed image for room %s: %v", r.Code, err)
	}
	logger.Log.Warnf("generation failed in room %s for player %d: %v", r.Code, player, genErr)
}

// onComplete deactivates the persisted session. The countdown task stays
// registered so a reset battle can run its clock again; ticks outside turn
// phases are no-ops.
func (r *Room) onComplete(battle.State) {
	if err := r.recorder.CloseSession(r.Code); err != nil {
		logger.Log.Errorf("failed to close session %s: %v", r.Code, err)
	}
	logger.Log.Infof("battle %s complete", r.Code)
}

// PromptOwner returns the seat whose successful prompt row has the given id,
// 0 when unknown.
func (r *Room) PromptOwner(promptID string) int {
	r.seatMutex.RLock()
	defer r.seatMutex.RUnlock()
	for pos, id := range r.promptIDs {
		if id == promptID {
			return pos
		}
	}
	return 0
}

// Record summarizes the settled battle for the players: who sat where, who
// won the vote, and what each side produced.
func (r *Room) Record(result *models.BattleResult) *models.BattleRecord {
	winnerPos := r.PromptOwner(result.WinnerPromptID)
	snap := r.controller.Snapshot()

	r.seatMutex.RLock()
	players := make([]models.RecordPlayer, 0, len(r.seats))
	for pos, s := range r.seats {
		outcome := "lose"
		if winnerPos == 0 {
			outcome = "draw"
		} else if pos == winnerPos {
			outcome = "win"
		}
		name := s.Name
		if name == "" {
			name = s.UserID
		}
		players = append(players, models.RecordPlayer{
			UserID:   s.UserID,
			Name:     name,
			Position: pos,
			Outcome:  outcome,
		})
	}
	r.seatMutex.RUnlock()

	return &models.BattleRecord{
		SessionCode: r.Code,
		Theme:       r.Theme,
		Players:     players,
		Result: map[string]interface{}{
			"player1_prompt": snap.Player1.Prompt,
			"player1_image":  snap.Player1.ImageURL,
			"player2_prompt": snap.Player2.Prompt,
			"player2_image":  snap.Player2.ImageURL,
			"winner_votes":   result.WinnerVotes,
			"total_votes":    result.TotalVotes,
		},
		Duration:  int(time.Since(r.CreatedAt).Seconds()),
		CreatedAt: time.Now(),
	}
}

// Manager 管理所有房间
type Manager struct {
	rooms map[string]*Room
	mutex sync.RWMutex
}

func NewRoomManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
	}
}

// CreateRoom 创建一个新房间并以房间码登记
func (m *Manager) CreateRoom(sess *models.BattleSession, cfg battle.Config, gen battle.Generator, b Broadcaster, rec Recorder, timers *timer.Manager) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room := NewRoom(sess, cfg, gen, b, rec, timers)
	m.rooms[room.Code] = room
	return room
}

// RemoveRoom 移除并关闭一个房间
func (m *Manager) RemoveRoom(code string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[code]; exists {
		room.Close()
		delete(m.rooms, code)
	}
}

// GetRoom 按房间码获取房间
func (m *Manager) GetRoom(code string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[code]
	return room, exists
}

// Count returns the number of live rooms.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// FindAvailableRoom 查找一个还有空位的等待中房间
func (m *Manager) FindAvailableRoom() *Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, room := range m.rooms {
		if room.PlayerCount() < battleSeats && room.GetStatus() == StatusWaiting {
			return room
		}
	}
	return nil
}

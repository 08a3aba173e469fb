// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/pyala/promptbattle/network"
)

// Session 一条websocket连接的服务端状态
type Session struct {
	ID         string
	Conn       network.Connection
	UserID     string // set at battle entry; guests get a generated id
	BattleCode string // join code of the battle this session sits in
	Position   int    // 1 or 2 once seated, 0 otherwise
	Name       string
	CreatedAt  time.Time
	LastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
	}
}

func (s *Session) Send(msgID uint16, data []byte) error {
	s.Touch()
	return s.Conn.Send(msgID, data)
}

func (s *Session) Touch() {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
}

// Seat records which battle and seat this session occupies.
func (s *Session) Seat(code string, position int) {
	s.mutex.Lock()
	s.BattleCode = code
	s.Position = position
	s.mutex.Unlock()
}

// Unseat clears the battle assignment.
func (s *Session) Unseat() {
	s.mutex.Lock()
	s.BattleCode = ""
	s.Position = 0
	s.mutex.Unlock()
}

func (s *Session) Battle() (code string, position int) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.BattleCode, s.Position
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// All returns a snapshot of every live session.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *Manager) GetByUserID(userID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.UserID == userID {
			result = append(result, session)
		}
	}
	return result
}

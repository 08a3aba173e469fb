package session

import (
	"net"
	"testing"
	"time"

	"github.com/pyala/promptbattle/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(msgID uint16, data []byte) error { return nil }
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sessionID := "test_session_1"
	sess := NewSession(sessionID, &MockConnection{})

	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	retrieved, exists := manager.Get(sessionID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrieved != sess {
		t.Fatal("Get should return the same session instance")
	}

	manager.Remove(sessionID)
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}

	if _, exists = manager.Get(sessionID); exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_GetByUserID(t *testing.T) {
	manager := NewManager()

	sess1 := NewSession("session1", &MockConnection{})
	sess1.UserID = "user-a"

	sess2 := NewSession("session2", &MockConnection{})
	sess2.UserID = "user-b"

	sess3 := NewSession("session3", &MockConnection{})
	sess3.UserID = "user-a"

	manager.Add(sess1)
	manager.Add(sess2)
	manager.Add(sess3)

	if got := manager.GetByUserID("user-a"); len(got) != 2 {
		t.Errorf("Expected 2 sessions for user-a, got %d", len(got))
	}
	if got := manager.GetByUserID("user-b"); len(got) != 1 {
		t.Errorf("Expected 1 session for user-b, got %d", len(got))
	}
	if got := manager.GetByUserID("user-c"); len(got) != 0 {
		t.Errorf("Expected 0 sessions for user-c, got %d", len(got))
	}
}

func TestSession_Seat(t *testing.T) {
	sess := NewSession("test_session", &MockConnection{})

	sess.Seat("AB23CD", 1)
	code, pos := sess.Battle()
	if code != "AB23CD" || pos != 1 {
		t.Errorf("Expected seat AB23CD/1, got %s/%d", code, pos)
	}

	sess.Unseat()
	code, pos = sess.Battle()
	if code != "" || pos != 0 {
		t.Errorf("Expected cleared seat, got %s/%d", code, pos)
	}
}

// broadcast/broadcast.go
package broadcast

import (
	"fmt"

	"github.com/pyala/promptbattle/logger"
	"github.com/pyala/promptbattle/room"
	"github.com/pyala/promptbattle/session"
)

// Broadcaster 消息广播接口
type Broadcaster interface {
	BroadcastToRoom(code string, msgID uint16, data []byte) error
	BroadcastToAll(msgID uint16, data []byte)
	BroadcastToUsers(userIDs []string, msgID uint16, data []byte)
}

// RoomBroadcaster fans packets out to the sessions seated in a room, to
// every connected session, or to a set of users by id.
type RoomBroadcaster struct {
	rooms    *room.Manager
	sessions *session.Manager
}

func NewRoomBroadcaster(rooms *room.Manager, sessions *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		rooms:    rooms,
		sessions: sessions,
	}
}

// BroadcastToRoom 向房间内所有玩家发送消息
func (b *RoomBroadcaster) BroadcastToRoom(code string, msgID uint16, data []byte) error {
	r, exists := b.rooms.GetRoom(code)
	if !exists {
		return fmt.Errorf("room %s not found", code)
	}

	for _, s := range r.GetSessions() {
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Warnf("send to session %s failed: %v", s.GetID(), err)
		}
	}
	return nil
}

// BroadcastToAll 向所有在线会话发送消息
func (b *RoomBroadcaster) BroadcastToAll(msgID uint16, data []byte) {
	for _, s := range b.sessions.All() {
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Warnf("send to session %s failed: %v", s.GetID(), err)
		}
	}
}

// BroadcastToUsers 向指定用户发送消息
func (b *RoomBroadcaster) BroadcastToUsers(userIDs []string, msgID uint16, data []byte) {
	for _, userID := range userIDs {
		for _, s := range b.sessions.GetByUserID(userID) {
			if err := s.Send(msgID, data); err != nil {
				logger.Log.Warnf("send to user %s failed: %v", userID, err)
			}
		}
	}
}

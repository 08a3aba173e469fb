// room/interfaces.go
package room

import "github.com/pyala/promptbattle/models"

// Broadcaster 定义房间广播接口，避免与 broadcast 包循环依赖
type Broadcaster interface {
	BroadcastToRoom(code string, msgID uint16, data []byte) error
}

// Recorder persists battle artifacts as the match progresses.
type Recorder interface {
	RecordPrompt(sessionID, userID, text string, position int) (*models.BattlePrompt, error)
	RecordImage(promptID, imageURL, status string) (*models.GeneratedImage, error)
	UpdateImageStatus(imageID, status string) error
	CloseSession(code string) error
}

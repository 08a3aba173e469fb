// persistence/interface.go
package persistence

import (
	"errors"

	"github.com/pyala/promptbattle/models"
)

// Database 数据库接口
type Database interface {
	GetUserByUsername(username string) (*models.User, error)

	CreateBattleSession(s *models.BattleSession) error
	GetBattleSessionByCode(code string) (*models.BattleSession, error)
	// JoinBattleSession atomically increments current_players for an active,
	// not-yet-full session and returns the updated row. ErrSessionUnavailable
	// when the code exists but the session is inactive or full.
	JoinBattleSession(code string) (*models.BattleSession, error)
	CloseBattleSession(code string) error

	SaveBattlePrompt(p *models.BattlePrompt) error
	SaveGeneratedImage(img *models.GeneratedImage) error
	UpdateImageStatus(imageID, status string) error
	SaveBattleResult(r *models.BattleResult) error

	GetSessionStats(code string) (*models.SessionStats, error)

	Close() error
}

// 错误定义
var (
	ErrRecordNotFound     = errors.New("record not found")
	ErrSessionUnavailable = errors.New("session inactive or full")
)

// models/models.go
package models

import (
	"time"
)

// Image generation status values stored on GeneratedImage.
const (
	ImageStatusPending   = "pending"
	ImageStatusCompleted = "completed"
	ImageStatusFailed    = "failed"
)

// User 注册用户
type User struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey"`
	Username      string    `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash  string    `json:"-" gorm:"not null"`
	ProfilePicURL string    `json:"profile_pic_url"`
	DisplayName   string    `json:"display_name"`
	Bio           string    `json:"bio"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BattleSession 对战会话，通过6位房间码加入
type BattleSession struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey"`
	HostUserID     string    `json:"host_user_id" gorm:"type:uuid;index;not null"`
	SessionCode    string    `json:"session_code" gorm:"uniqueIndex;size:6;not null"`
	IsActive       bool      `json:"is_active" gorm:"default:true"`
	MaxPlayers     int       `json:"max_players" gorm:"default:2"`
	CurrentPlayers int       `json:"current_players" gorm:"default:0"`
	BattleTheme    string    `json:"battle_theme"`
	TimeLimit      int       `json:"time_limit" gorm:"default:60"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BattlePrompt 玩家在某个回合提交的prompt
type BattlePrompt struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey"`
	SessionID      string    `json:"session_id" gorm:"type:uuid;index;not null"`
	UserID         string    `json:"user_id" gorm:"type:uuid;not null"`
	PromptText     string    `json:"prompt_text" gorm:"not null"`
	PlayerPosition int       `json:"player_position" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
}

// GeneratedImage prompt对应的生成图片
type GeneratedImage struct {
	ID               string    `json:"id" gorm:"type:uuid;primaryKey"`
	PromptID         string    `json:"prompt_id" gorm:"type:uuid;index;not null"`
	ImageURL         string    `json:"image_url"`
	ThumbnailURL     string    `json:"thumbnail_url"`
	GenerationStatus string    `json:"generation_status" gorm:"default:pending"`
	CreatedAt        time.Time `json:"created_at"`
}

// BattleResult 对战结果（投票结算）
type BattleResult struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey"`
	SessionID      string    `json:"session_id" gorm:"type:uuid;uniqueIndex;not null"`
	WinnerPromptID string    `json:"winner_prompt_id" gorm:"type:uuid;not null"`
	WinnerVotes    int       `json:"winner_votes" gorm:"default:0"`
	TotalVotes     int       `json:"total_votes" gorm:"default:0"`
	CreatedAt      time.Time `json:"created_at"`
}

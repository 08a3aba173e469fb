// models/stats.go
package models

import (
	"time"
)

// SessionStats 会话统计信息
type SessionStats struct {
	SessionCode  string `json:"session_code"`
	TotalPrompts int    `json:"total_prompts"`
	TotalImages  int    `json:"total_images"`
	Participants int    `json:"participants"`
	IsActive     bool   `json:"is_active"`
}

// FormattedBattleResult 用于展示的对战结果
type FormattedBattleResult struct {
	SessionCode    string    `json:"session_code"`
	WinningPrompt  string    `json:"winning_prompt"`
	WinnerUsername string    `json:"winner_username"`
	WinnerVotes    int       `json:"winner_votes"`
	TotalVotes     int       `json:"total_votes"`
	WinPercentage  string    `json:"win_percentage"`
	CreatedAt      time.Time `json:"created_at"`
}

// BattleRecord 对战归档记录（会话结束后写入）
type BattleRecord struct {
	SessionCode string                 `json:"session_code"`
	Theme       string                 `json:"theme"`
	Players     []RecordPlayer         `json:"players"`
	Result      map[string]interface{} `json:"result"`
	Duration    int                    `json:"duration"`
	CreatedAt   time.Time              `json:"created_at"`
}

// RecordPlayer 归档记录中的玩家信息
type RecordPlayer struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	Outcome  string `json:"outcome"` // win/lose/draw
}

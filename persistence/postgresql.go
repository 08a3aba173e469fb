// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/pyala/promptbattle/models"
)

// Postgres 基于database/sql的PostgreSQL实现，表结构需要预先建好
type Postgres struct {
	db *sql.DB
}

func NewPostgres(host string, port int, user, password, dbname string) (*Postgres, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &Postgres{db: db}, nil
}

func (p *Postgres) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	err := p.db.QueryRow(`
        SELECT id, username, password_hash,
               COALESCE(profile_pic_url, ''), COALESCE(display_name, ''), COALESCE(bio, ''),
               created_at, updated_at
        FROM users WHERE username = $1`, username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash,
		&user.ProfilePicURL, &user.DisplayName, &user.Bio,
		&user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (p *Postgres) CreateBattleSession(s *models.BattleSession) error {
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	_, err := p.db.Exec(`
        INSERT INTO battle_sessions
            (id, host_user_id, session_code, is_active, max_players, current_players,
             battle_theme, time_limit, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.HostUserID, s.SessionCode, s.IsActive, s.MaxPlayers, s.CurrentPlayers,
		s.BattleTheme, s.TimeLimit, s.CreatedAt, s.UpdatedAt)
	return err
}

func (p *Postgres) GetBattleSessionByCode(code string) (*models.BattleSession, error) {
	return p.scanSession(p.db.QueryRow(`
        SELECT id, host_user_id, session_code, is_active, max_players, current_players,
               COALESCE(battle_theme, ''), time_limit, created_at, updated_at
        FROM battle_sessions WHERE session_code = $1`, code))
}

func (p *Postgres) JoinBattleSession(code string) (*models.BattleSession, error) {
	tx, err := p.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
        UPDATE battle_sessions
        SET current_players = current_players + 1, updated_at = NOW()
        WHERE session_code = $1 AND is_active = true AND current_players < max_players`,
		code)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM battle_sessions WHERE session_code = $1)`,
			code).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrRecordNotFound
		}
		return nil, ErrSessionUnavailable
	}

	sess, err := p.scanSession(tx.QueryRow(`
        SELECT id, host_user_id, session_code, is_active, max_players, current_players,
               COALESCE(battle_theme, ''), time_limit, created_at, updated_at
        FROM battle_sessions WHERE session_code = $1`, code))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sess, nil
}

func (p *Postgres) CloseBattleSession(code string) error {
	res, err := p.db.Exec(`
        UPDATE battle_sessions SET is_active = false, updated_at = NOW()
        WHERE session_code = $1`, code)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *Postgres) SaveBattlePrompt(prompt *models.BattlePrompt) error {
	prompt.CreatedAt = time.Now()
	_, err := p.db.Exec(`
        INSERT INTO battle_prompts (id, session_id, user_id, prompt_text, player_position, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		prompt.ID, prompt.SessionID, prompt.UserID, prompt.PromptText,
		prompt.PlayerPosition, prompt.CreatedAt)
	return err
}

func (p *Postgres) SaveGeneratedImage(img *models.GeneratedImage) error {
	img.CreatedAt = time.Now()
	_, err := p.db.Exec(`
        INSERT INTO generated_images (id, prompt_id, image_url, thumbnail_url, generation_status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		img.ID, img.PromptID, img.ImageURL, img.ThumbnailURL,
		img.GenerationStatus, img.CreatedAt)
	return err
}

func (p *Postgres) UpdateImageStatus(imageID, status string) error {
	res, err := p.db.Exec(`
        UPDATE generated_images SET generation_status = $2 WHERE id = $1`,
		imageID, status)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *Postgres) SaveBattleResult(r *models.BattleResult) error {
	r.CreatedAt = time.Now()
	_, err := p.db.Exec(`
        INSERT INTO battle_results (id, session_id, winner_prompt_id, winner_votes, total_votes, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.SessionID, r.WinnerPromptID, r.WinnerVotes, r.TotalVotes, r.CreatedAt)
	return err
}

func (p *Postgres) GetSessionStats(code string) (*models.SessionStats, error) {
	stats := &models.SessionStats{SessionCode: code}
	err := p.db.QueryRow(`
        SELECT bs.current_players, bs.is_active,
               COUNT(DISTINCT bp.id), COUNT(gi.id)
        FROM battle_sessions bs
        LEFT JOIN battle_prompts bp ON bp.session_id = bs.id
        LEFT JOIN generated_images gi ON gi.prompt_id = bp.id
        WHERE bs.session_code = $1
        GROUP BY bs.current_players, bs.is_active`, code,
	).Scan(&stats.Participants, &stats.IsActive, &stats.TotalPrompts, &stats.TotalImages)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) scanSession(row *sql.Row) (*models.BattleSession, error) {
	var s models.BattleSession
	err := row.Scan(&s.ID, &s.HostUserID, &s.SessionCode, &s.IsActive,
		&s.MaxPlayers, &s.CurrentPlayers, &s.BattleTheme, &s.TimeLimit,
		&s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

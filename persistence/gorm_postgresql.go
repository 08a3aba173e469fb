// persistence/gorm_postgresql.go
package persistence

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pyala/promptbattle/models"
)

// GormPostgres 使用GORM的PostgreSQL实现
type GormPostgres struct {
	db *gorm.DB
}

// NewGormPostgres 创建GORM PostgreSQL数据库连接
func NewGormPostgres(host string, port int, user, password, dbname string) (*GormPostgres, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gl := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	var db *gorm.DB
	// The database may still be coming up when the server starts.
	err := retry.Do(
		func() error {
			var openErr error
			db, openErr = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gl})
			return openErr
		},
		retry.Attempts(5),
		retry.Delay(time.Second),
	)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&models.User{},
		&models.BattleSession{},
		&models.BattlePrompt{},
		&models.GeneratedImage{},
		&models.BattleResult{},
	); err != nil {
		return nil, err
	}

	return &GormPostgres{db: db}, nil
}

func (p *GormPostgres) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := p.db.Where("username = ?", username).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (p *GormPostgres) CreateBattleSession(s *models.BattleSession) error {
	return p.db.Create(s).Error
}

func (p *GormPostgres) GetBattleSessionByCode(code string) (*models.BattleSession, error) {
	var sess models.BattleSession
	if err := p.db.Where("session_code = ?", code).First(&sess).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (p *GormPostgres) JoinBattleSession(code string) (*models.BattleSession, error) {
	var sess models.BattleSession
	err := p.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.BattleSession{}).
			Where("session_code = ? AND is_active = true AND current_players < max_players", code).
			Update("current_players", gorm.Expr("current_players + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Distinguish an unknown code from a full/inactive session.
			var count int64
			if err := tx.Model(&models.BattleSession{}).
				Where("session_code = ?", code).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrRecordNotFound
			}
			return ErrSessionUnavailable
		}
		return tx.Where("session_code = ?", code).First(&sess).Error
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (p *GormPostgres) CloseBattleSession(code string) error {
	res := p.db.Model(&models.BattleSession{}).
		Where("session_code = ?", code).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *GormPostgres) SaveBattlePrompt(prompt *models.BattlePrompt) error {
	return p.db.Create(prompt).Error
}

func (p *GormPostgres) SaveGeneratedImage(img *models.GeneratedImage) error {
	return p.db.Create(img).Error
}

func (p *GormPostgres) UpdateImageStatus(imageID, status string) error {
	res := p.db.Model(&models.GeneratedImage{}).
		Where("id = ?", imageID).
		Update("generation_status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *GormPostgres) SaveBattleResult(r *models.BattleResult) error {
	return p.db.Create(r).Error
}

func (p *GormPostgres) GetSessionStats(code string) (*models.SessionStats, error) {
	sess, err := p.GetBattleSessionByCode(code)
	if err != nil {
		return nil, err
	}

	stats := &models.SessionStats{
		SessionCode:  code,
		Participants: sess.CurrentPlayers,
		IsActive:     sess.IsActive,
	}

	err = p.db.Raw(`
        SELECT
            COUNT(DISTINCT bp.id) AS total_prompts,
            COUNT(gi.id)          AS total_images
        FROM battle_prompts bp
        LEFT JOIN generated_images gi ON gi.prompt_id = bp.id
        WHERE bp.session_id = ?`, sess.ID,
	).Row().Scan(&stats.TotalPrompts, &stats.TotalImages)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (p *GormPostgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

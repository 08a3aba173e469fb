package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/pyala/promptbattle/models"
	"github.com/pyala/promptbattle/persistence"
)

// codeAlphabet omits visually ambiguous characters (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 6

// ErrCodeSpaceExhausted is returned when code generation keeps colliding.
var ErrCodeSpaceExhausted = errors.New("could not allocate a unique session code")

// GenerateCode returns a random join code drawn from the ambiguity-free alphabet.
func GenerateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// BattleService owns the persisted lifecycle of battle sessions: creation with
// a unique join code, capacity-checked joins, per-turn prompt/image records,
// and result settlement.
type BattleService struct {
	db persistence.Database
}

func NewBattleService(db persistence.Database) *BattleService {
	return &BattleService{db: db}
}

// CreateSession allocates a join code and persists a new active session with
// the host already seated.
func (s *BattleService) CreateSession(hostUserID string, maxPlayers, timeLimit int, theme string) (*models.BattleSession, error) {
	if maxPlayers <= 0 {
		maxPlayers = 2
	}
	if timeLimit <= 0 {
		timeLimit = 60
	}

	var code string
	for attempt := 0; attempt < 10; attempt++ {
		c, err := GenerateCode()
		if err != nil {
			return nil, err
		}
		_, err = s.db.GetBattleSessionByCode(c)
		if errors.Is(err, persistence.ErrRecordNotFound) {
			code = c
			break
		}
		if err != nil {
			return nil, err
		}
		// collision, try again
	}
	if code == "" {
		return nil, ErrCodeSpaceExhausted
	}

	sess := &models.BattleSession{
		ID:             uuid.NewString(),
		HostUserID:     hostUserID,
		SessionCode:    code,
		IsActive:       true,
		MaxPlayers:     maxPlayers,
		CurrentPlayers: 1,
		BattleTheme:    theme,
		TimeLimit:      timeLimit,
	}
	if err := s.db.CreateBattleSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// JoinSession seats another player in an active session with spare capacity.
func (s *BattleService) JoinSession(code string) (*models.BattleSession, error) {
	return s.db.JoinBattleSession(code)
}

// GetSession looks a session up by its join code.
func (s *BattleService) GetSession(code string) (*models.BattleSession, error) {
	return s.db.GetBattleSessionByCode(code)
}

// RecordPrompt persists one submitted prompt for a turn.
func (s *BattleService) RecordPrompt(sessionID, userID, text string, position int) (*models.BattlePrompt, error) {
	prompt := &models.BattlePrompt{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		UserID:         userID,
		PromptText:     text,
		PlayerPosition: position,
	}
	if err := s.db.SaveBattlePrompt(prompt); err != nil {
		return nil, err
	}
	return prompt, nil
}

// RecordImage persists the generated artifact for a prompt.
func (s *BattleService) RecordImage(promptID, imageURL, status string) (*models.GeneratedImage, error) {
	img := &models.GeneratedImage{
		ID:               uuid.NewString(),
		PromptID:         promptID,
		ImageURL:         imageURL,
		GenerationStatus: status,
	}
	if err := s.db.SaveGeneratedImage(img); err != nil {
		return nil, err
	}
	return img, nil
}

// UpdateImageStatus flips a stored image row between pending/completed/failed.
func (s *BattleService) UpdateImageStatus(imageID, status string) error {
	return s.db.UpdateImageStatus(imageID, status)
}

// FormatResult shapes a settled result for display.
func FormatResult(sessionCode, winningPrompt, winnerName string, r *models.BattleResult) *models.FormattedBattleResult {
	pct := "0.0%"
	if r.TotalVotes > 0 {
		pct = fmt.Sprintf("%.1f%%", float64(r.WinnerVotes)/float64(r.TotalVotes)*100)
	}
	return &models.FormattedBattleResult{
		SessionCode:    sessionCode,
		WinningPrompt:  winningPrompt,
		WinnerUsername: winnerName,
		WinnerVotes:    r.WinnerVotes,
		TotalVotes:     r.TotalVotes,
		WinPercentage:  pct,
		CreatedAt:      r.CreatedAt,
	}
}

// RecordResult settles a completed battle with its vote tally.
func (s *BattleService) RecordResult(sessionID, winnerPromptID string, winnerVotes, totalVotes int) (*models.BattleResult, error) {
	if totalVotes < winnerVotes {
		return nil, fmt.Errorf("winner votes %d exceed total votes %d", winnerVotes, totalVotes)
	}
	result := &models.BattleResult{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		WinnerPromptID: winnerPromptID,
		WinnerVotes:    winnerVotes,
		TotalVotes:     totalVotes,
	}
	if err := s.db.SaveBattleResult(result); err != nil {
		return nil, err
	}
	return result, nil
}

// CloseSession deactivates a session so its code can no longer be joined.
func (s *BattleService) CloseSession(code string) error {
	return s.db.CloseBattleSession(code)
}

// SessionStats returns prompt/image/participant counts for a session.
func (s *BattleService) SessionStats(code string) (*models.SessionStats, error) {
	return s.db.GetSessionStats(code)
}

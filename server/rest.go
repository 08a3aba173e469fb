// server/rest.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pyala/promptbattle/auth"
	"github.com/pyala/promptbattle/logger"
	"github.com/pyala/promptbattle/network"
	"github.com/pyala/promptbattle/persistence"
	"github.com/pyala/promptbattle/room"
	"github.com/pyala/promptbattle/services"
)

// Router builds the HTTP surface: REST endpoints, the websocket upgrade and
// the generated image files.
func (s *GameServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Post("/signin", s.handleSignin)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{code}", s.handleGetSession)
		r.Post("/sessions/{code}/join", s.handleJoinSession)
		r.Post("/sessions/{code}/result", s.handleRecordResult)
		r.Get("/sessions/{code}/stats", s.handleSessionStats)
	})

	if s.cfg.ImageDir != "" {
		fs := http.StripPrefix("/images/", http.FileServer(http.Dir(s.cfg.ImageDir)))
		r.Get("/images/*", fs.ServeHTTP)
	}

	return r
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warnf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *GameServer) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, err := s.authService.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidUsername) || errors.Is(err, auth.ErrPasswordTooShort) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"user_id":      user.ID,
		"username":     user.Username,
		"display_name": user.DisplayName,
	})
}

func (s *GameServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HostUserID string `json:"host_user_id"`
		Theme      string `json:"theme"`
		TimeLimit  int    `json:"time_limit"`
		MaxPlayers int    `json:"max_players"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	record, err := s.battleService.CreateSession(req.HostUserID, req.MaxPlayers, req.TimeLimit, req.Theme)
	if err != nil {
		logger.Log.Errorf("failed to create battle session: %v", err)
		respondError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	cfg := s.cfg.Battle
	cfg.TimeLimit = record.TimeLimit
	s.roomManager.CreateRoom(record, cfg, s.generator, s.broadcaster, s.battleService, s.timers)
	s.mon.SetActiveBattles(s.roomManager.Count())

	respondJSON(w, http.StatusCreated, record)
}

func (s *GameServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	record, err := s.battleService.GetSession(code)
	if err != nil {
		if errors.Is(err, persistence.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		logger.Log.Errorf("failed to load session %s: %v", code, err)
		respondError(w, http.StatusInternalServerError, "could not load session")
		return
	}

	resp := map[string]interface{}{"session": record}
	if room, exists := s.roomManager.GetRoom(code); exists {
		resp["state"] = room.Controller().Snapshot()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *GameServer) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	record, err := s.battleService.JoinSession(code)
	if err != nil {
		switch {
		case errors.Is(err, persistence.ErrRecordNotFound):
			respondError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, persistence.ErrSessionUnavailable):
			respondError(w, http.StatusConflict, "session is not open")
		default:
			logger.Log.Errorf("failed to join session %s: %v", code, err)
			respondError(w, http.StatusInternalServerError, "could not join session")
		}
		return
	}

	respondJSON(w, http.StatusOK, record)
}

func (s *GameServer) handleRecordResult(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req struct {
		WinnerPromptID string `json:"winner_prompt_id"`
		WinnerVotes    int    `json:"winner_votes"`
		TotalVotes     int    `json:"total_votes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	record, err := s.battleService.GetSession(code)
	if err != nil {
		if errors.Is(err, persistence.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		logger.Log.Errorf("failed to load session %s: %v", code, err)
		respondError(w, http.StatusInternalServerError, "could not load session")
		return
	}

	result, err := s.battleService.RecordResult(record.ID, req.WinnerPromptID, req.WinnerVotes, req.TotalVotes)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// 房间还在的话，补全胜者信息并把归档记录推给双方
	if room, exists := s.roomManager.GetRoom(code); exists {
		winningPrompt, winnerName := winnerDetails(room, result.WinnerPromptID)
		if data, err := json.Marshal(room.Record(result)); err == nil {
			s.broadcaster.BroadcastToRoom(code, network.MsgTypeBattleRecord, data)
		}
		respondJSON(w, http.StatusCreated, services.FormatResult(code, winningPrompt, winnerName, result))
		return
	}

	respondJSON(w, http.StatusCreated, services.FormatResult(code, "", "", result))
}

func winnerDetails(r *room.Room, winnerPromptID string) (prompt, name string) {
	pos := r.PromptOwner(winnerPromptID)
	if pos == 0 {
		return "", ""
	}
	snap := r.Controller().Snapshot()
	if pos == 1 {
		prompt = snap.Player1.Prompt
	} else {
		prompt = snap.Player2.Prompt
	}
	for _, s := range r.GetSessions() {
		if _, seat := s.Battle(); seat == pos {
			name = s.Name
			if name == "" {
				name = s.UserID
			}
		}
	}
	return prompt, name
}

func (s *GameServer) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	stats, err := s.battleService.SessionStats(code)
	if err != nil {
		if errors.Is(err, persistence.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		logger.Log.Errorf("failed to load stats for %s: %v", code, err)
		respondError(w, http.StatusInternalServerError, "could not load stats")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

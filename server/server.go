// server/server.go
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/rpc"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pyala/promptbattle/auth"
	"github.com/pyala/promptbattle/battle"
	"github.com/pyala/promptbattle/broadcast"
	"github.com/pyala/promptbattle/logger"
	"github.com/pyala/promptbattle/monitor"
	"github.com/pyala/promptbattle/network"
	"github.com/pyala/promptbattle/persistence"
	"github.com/pyala/promptbattle/room"
	battlerpc "github.com/pyala/promptbattle/rpc"
	"github.com/pyala/promptbattle/services"
	"github.com/pyala/promptbattle/session"
	"github.com/pyala/promptbattle/timer"
)

// Config carries the listen addresses and battle defaults.
type Config struct {
	Addr     string
	RPCAddr  string
	ImageDir string
	Battle   battle.Config
}

type GameServer struct {
	cfg            Config
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	battleService  *services.BattleService
	authService    *auth.Service
	generator      battle.Generator
	timers         *timer.Manager
	broadcaster    broadcast.Broadcaster
	rpcServer      *battlerpc.Server
	mon            *monitor.Monitor
	mutex          sync.Mutex
	shutdownChan   chan struct{}
}

// instrumentedGenerator reports latency and failures for every generation call.
type instrumentedGenerator struct {
	next battle.Generator
	mon  *monitor.Monitor
}

func (g instrumentedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	url, err := g.next.Generate(ctx, prompt)
	g.mon.ObserveGenerationLatency(time.Since(start))
	if err != nil {
		g.mon.IncGenerationFailures()
	}
	return url, err
}

func NewGameServer(cfg Config, db persistence.Database, gen battle.Generator, timers *timer.Manager, mon *monitor.Monitor) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		roomManager:    room.NewRoomManager(),
		sessionManager: session.NewManager(),
		battleService:  services.NewBattleService(db),
		authService:    auth.NewService(db),
		generator:      instrumentedGenerator{next: gen, mon: mon},
		timers:         timers,
		mon:            mon,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化广播器
	s.broadcaster = broadcast.NewRoomBroadcaster(s.roomManager, s.sessionManager)

	// 初始化RPC服务器
	rpcServer, err := battlerpc.NewServer(cfg.RPCAddr)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	// 注册RPC服务
	statsService := battlerpc.NewBattleStatsService(s.battleService)
	rpc.Register(statsService)

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	logger.Log.Infof("Battle server listening on %s", s.cfg.Addr)
	return http.ListenAndServe(s.cfg.Addr, s.Router())
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.mon.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.mon.DecOnlinePlayers()
		s.leaveBattle(sess)
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Touch()
	case network.MsgTypeCreateBattle:
		s.handleCreateBattle(sess, packet)
	case network.MsgTypeJoinBattle:
		s.handleJoinBattle(sess, packet)
	case network.MsgTypeLeaveBattle:
		s.leaveBattle(sess)
	case network.MsgTypeStartBattle:
		s.handleStartBattle(sess)
	case network.MsgTypeSetPrompt:
		s.handleSetPrompt(sess, packet)
	case network.MsgTypeSubmitPrompt:
		s.handleSubmitPrompt(sess)
	case network.MsgTypeResetBattle:
		s.handleResetBattle(sess)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func (s *GameServer) sendError(sess *session.Session, msg string) {
	data, _ := json.Marshal(map[string]string{"error": msg})
	if err := sess.Send(network.MsgTypeError, data); err != nil {
		logger.Log.Warnf("failed to send error to session %s: %v", sess.GetID(), err)
	}
}

// bindUser attaches a signed-in user id to the session. Connections that
// never authenticate get a one-off guest id so archived rows always carry a
// valid uuid.
func (s *GameServer) bindUser(sess *session.Session, userID string) {
	if userID != "" {
		sess.UserID = userID
		return
	}
	if sess.UserID == "" {
		sess.UserID = uuid.NewString()
	}
}

func (s *GameServer) handleCreateBattle(sess *session.Session, packet *network.Packet) {
	var req struct {
		UserID    string `json:"user_id"`
		Theme     string `json:"theme"`
		TimeLimit int    `json:"time_limit"`
	}
	if len(packet.Data) > 0 {
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			s.sendError(sess, "malformed request")
			return
		}
	}
	s.bindUser(sess, req.UserID)

	record, err := s.battleService.CreateSession(sess.UserID, 0, req.TimeLimit, req.Theme)
	if err != nil {
		logger.Log.Errorf("failed to create battle session: %v", err)
		s.sendError(sess, "could not create battle")
		return
	}

	cfg := s.cfg.Battle
	cfg.TimeLimit = record.TimeLimit

	r := s.roomManager.CreateRoom(record, cfg, s.generator, s.broadcaster, s.battleService, s.timers)
	pos, _ := r.AddPlayer(sess)
	s.mon.SetActiveBattles(s.roomManager.Count())

	logger.Log.Infof("Session %s created battle %s", sess.GetID(), record.SessionCode)

	data, _ := json.Marshal(map[string]interface{}{
		"code":     record.SessionCode,
		"position": pos,
	})
	sess.Send(network.MsgTypeCreateBattle, data)
}

func (s *GameServer) handleJoinBattle(sess *session.Session, packet *network.Packet) {
	var req struct {
		Code   string `json:"code"`
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "malformed request")
		return
	}
	s.bindUser(sess, req.UserID)

	r, exists := s.roomManager.GetRoom(req.Code)
	if !exists {
		s.sendError(sess, "battle not found")
		return
	}

	if _, err := s.battleService.JoinSession(req.Code); err != nil {
		logger.Log.Warnf("session %s rejected from battle %s: %v", sess.GetID(), req.Code, err)
		s.sendError(sess, "battle is not open")
		return
	}

	pos, ok := r.AddPlayer(sess)
	if !ok {
		s.sendError(sess, "battle is full")
		return
	}

	logger.Log.Infof("Session %s joined battle %s as player %d", sess.GetID(), req.Code, pos)

	data, _ := json.Marshal(map[string]interface{}{
		"code":     req.Code,
		"position": pos,
	})
	sess.Send(network.MsgTypeJoinBattle, data)

	// 给新玩家推一次当前状态
	if snapshot, err := json.Marshal(r.Controller().Snapshot()); err == nil {
		sess.Send(network.MsgTypeBattleState, snapshot)
	}
}

// leaveBattle unseats the session and tears down the room once it empties.
func (s *GameServer) leaveBattle(sess *session.Session) {
	code, _ := sess.Battle()
	if code == "" {
		return
	}

	r, exists := s.roomManager.GetRoom(code)
	if !exists {
		sess.Unseat()
		return
	}

	r.RemovePlayer(sess.GetID())
	if r.PlayerCount() == 0 {
		s.roomManager.RemoveRoom(code)
		if err := s.battleService.CloseSession(code); err != nil {
			logger.Log.Warnf("failed to close abandoned session %s: %v", code, err)
		}
	}
	s.mon.SetActiveBattles(s.roomManager.Count())
}

// seatedRoom resolves the caller's room and seat for battle actions.
func (s *GameServer) seatedRoom(sess *session.Session) (*room.Room, int, bool) {
	code, pos := sess.Battle()
	if code == "" || pos == 0 {
		s.sendError(sess, "not in a battle")
		return nil, 0, false
	}
	r, exists := s.roomManager.GetRoom(code)
	if !exists {
		logger.Log.Errorf("Room %s not found for session %s", code, sess.GetID())
		s.sendError(sess, "battle not found")
		return nil, 0, false
	}
	return r, pos, true
}

func (s *GameServer) handleStartBattle(sess *session.Session) {
	r, _, ok := s.seatedRoom(sess)
	if !ok {
		return
	}
	if err := r.Controller().Start(); err != nil {
		s.sendError(sess, err.Error())
	}
}

func (s *GameServer) handleSetPrompt(sess *session.Session, packet *network.Packet) {
	r, pos, ok := s.seatedRoom(sess)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "malformed request")
		return
	}

	if err := r.Controller().SetPrompt(pos, req.Text); err != nil {
		s.sendError(sess, err.Error())
	}
}

func (s *GameServer) handleSubmitPrompt(sess *session.Session) {
	r, pos, ok := s.seatedRoom(sess)
	if !ok {
		return
	}
	if err := r.Controller().Submit(pos); err != nil {
		s.sendError(sess, err.Error())
		return
	}
	s.mon.IncPromptsSubmitted()
}

func (s *GameServer) handleResetBattle(sess *session.Session) {
	r, _, ok := s.seatedRoom(sess)
	if !ok {
		return
	}
	r.Controller().Reset()
}

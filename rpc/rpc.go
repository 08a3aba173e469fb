// rpc/rpc.go
package rpc

import (
	"net"
	"net/rpc"

	"github.com/pyala/promptbattle/logger"
	"github.com/pyala/promptbattle/models"
	"github.com/pyala/promptbattle/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. Services are registered by the caller
// before Start is invoked.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// BattleStatsService exposes battle session statistics over net/rpc for
// internal tooling.
type BattleStatsService struct {
	battles *services.BattleService
}

func NewBattleStatsService(bs *services.BattleService) *BattleStatsService {
	return &BattleStatsService{battles: bs}
}

type GetSessionStatsArgs struct {
	Code string
}

type GetSessionStatsReply struct {
	Stats *models.SessionStats
}

// GetSessionStats follows the net/rpc method signature: exported method,
// pointer reply argument, error return.
func (bs *BattleStatsService) GetSessionStats(args *GetSessionStatsArgs, reply *GetSessionStatsReply) error {
	stats, err := bs.battles.SessionStats(args.Code)
	if err != nil {
		return err
	}
	reply.Stats = stats
	return nil
}

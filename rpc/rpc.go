package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/gameclient/logger"
	"github.com/wfunc/gameclient/models"
	"github.com/wfunc/gameclient/services"
	"github.com/wfunc/gameclient/session"
)

// Server manages the RPC listener. The presentation layer runs out of
// process and reads session state through it; every exposed method is
// read-only over the published view.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
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
	logger.Log.Infof("Query RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("Query RPC listener closed.")
				return
			}
			logger.Log.Errorf("Query RPC accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Register exposes a service's exported methods over the listener.
func (s *Server) Register(service any) error {
	return rpc.Register(service)
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping query RPC server.")
		s.listener.Close()
	}
}

// QueryService exposes the session's observable state over net/rpc.
type QueryService struct {
	controller *session.Controller
	history    *services.HistoryService
}

// NewQueryService creates a new QueryService.
func NewQueryService(controller *session.Controller, history *services.HistoryService) *QueryService {
	return &QueryService{controller: controller, history: history}
}

type ViewArgs struct{}

type ViewReply struct {
	View models.SessionView
}

// GetSessionView returns the latest published session view.
func (qs *QueryService) GetSessionView(args *ViewArgs, reply *ViewReply) error {
	reply.View = qs.controller.View()
	return nil
}

type ArchiveArgs struct {
	RoomID string
}

type ArchiveReply struct {
	Players []string
	Rounds  int
	Encoded bool
}

// GetRoomArchive resolves a finished room's archived snapshot. Rounds
// reports the 1-based count of decoded rounds.
func (qs *QueryService) GetRoomArchive(args *ArchiveArgs, reply *ArchiveReply) error {
	snap, err := qs.controller.DecodedArchive(args.RoomID)
	if err != nil {
		return err
	}
	for _, p := range snap.Players {
		reply.Players = append(reply.Players, p.Token)
	}
	reply.Rounds = len(snap.Rounds)
	reply.Encoded = true
	return nil
}

type HistoryArgs struct {
	Kind models.GameKind
}

type HistoryReply struct {
	RoomIDs []string
}

// GetLocalHistory lists locally archived games for one game kind.
func (qs *QueryService) GetLocalHistory(args *HistoryArgs, reply *HistoryReply) error {
	games, err := qs.history.LocalArchives(args.Kind)
	if err != nil {
		return err
	}
	for _, g := range games {
		reply.RoomIDs = append(reply.RoomIDs, g.RoomID)
	}
	return nil
}

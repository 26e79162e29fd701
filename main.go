package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/gameclient/broadcast"
	"github.com/wfunc/gameclient/config"
	"github.com/wfunc/gameclient/identity"
	"github.com/wfunc/gameclient/logger"
	"github.com/wfunc/gameclient/monitor"
	"github.com/wfunc/gameclient/network"
	"github.com/wfunc/gameclient/persistence"
	"github.com/wfunc/gameclient/rpc"
	"github.com/wfunc/gameclient/services"
	"github.com/wfunc/gameclient/session"
	"github.com/wfunc/gameclient/timer"
)

func main() {
	logger.Init()
	defer logger.Log.Sync()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load config: %v", err)
	}

	store := newStore(cfg)
	defer store.Close()

	identStore := identity.NewStore(store)
	ident, err := identStore.Bootstrap()
	if err != nil {
		logger.Log.Fatalf("Failed to bootstrap identity: %v", err)
	}
	logger.Log.Infof("Playing as %s (%s)", ident.DisplayName, ident.Token)

	mon := monitor.NewMonitor("gameclient")
	mon.StartServer(cfg.Metrics.Address)

	views := broadcast.NewViewBroadcaster()
	controller := session.NewController(identStore, views, mon, store, cfg.Server.APIURL)

	historySvc := services.NewHistoryService(cfg.Server.APIURL, store)
	go func() {
		catalog, err := historySvc.FetchAvatarCatalog()
		if err != nil {
			logger.Log.Warnf("Avatar catalog unavailable: %v", err)
			return
		}
		logger.Log.Infof("Avatar catalog loaded: %d entries", len(catalog))
	}()

	rpcServer, err := rpc.NewServer(cfg.RPC.Address)
	if err != nil {
		logger.Log.Fatalf("Failed to start query RPC server: %v", err)
	}
	if err := rpcServer.Register(rpc.NewQueryService(controller, historySvc)); err != nil {
		logger.Log.Fatalf("Failed to register query service: %v", err)
	}
	go rpcServer.Start()

	heartbeat := time.Duration(cfg.Client.HeartbeatSeconds) * time.Second
	timers := timer.NewTimerManager()
	timers.AddTimer(heartbeat, heartbeat, func() {
		if err := controller.Send(network.MsgTypeHeartbeat, nil); err != nil {
			logger.Log.Debugf("Heartbeat skipped: %v", err)
		}
	})

	done := make(chan struct{})
	go runConnection(cfg, controller, mon, done)

	// 启动时带房间链接则在连上后尝试加入
	if cfg.Server.DeepLink != "" {
		controller.Do(session.OpenDeepLink{URL: cfg.Server.DeepLink})
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down...")
	close(done)
	controller.Shutdown()
	timers.Stop()
	rpcServer.Stop()
}

// runConnection dials the game server and keeps redialing with a fixed
// backoff until shutdown. Each successful dial re-runs the identity
// handshake; shadow state is rebuilt from the pushes that follow.
func runConnection(cfg *config.Config, controller *session.Controller, mon *monitor.Monitor, done <-chan struct{}) {
	backoff := time.Duration(cfg.Client.ReconnectSeconds) * time.Second
	heartbeat := time.Duration(cfg.Client.HeartbeatSeconds) * time.Second
	first := true

	for {
		select {
		case <-done:
			return
		default:
		}

		conn, err := network.Dial(cfg.Server.WSURL)
		if err != nil {
			logger.Log.Warnf("Dial %s failed: %v", cfg.Server.WSURL, err)
			select {
			case <-done:
				return
			case <-time.After(backoff):
			}
			continue
		}

		if !first {
			mon.IncReconnects()
		}
		first = false

		conn.SetHeartbeat(heartbeat)
		if err := controller.Run(conn); err != nil {
			logger.Log.Warnf("Session ended: %v", err)
		}
		conn.Close()

		select {
		case <-done:
			return
		case <-time.After(backoff):
		}
	}
}

func newStore(cfg *config.Config) persistence.Store {
	if !cfg.Database.Enabled {
		return persistence.NewFileStore(cfg.Client.IdentityFile)
	}

	pg := cfg.Database.Postgres
	switch cfg.Database.Driver {
	case "gorm":
		store, err := persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		return store
	default:
		store, err := persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		return store
	}
}

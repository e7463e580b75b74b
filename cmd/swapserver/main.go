package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillswap/swap-app/internal/chat"
	"github.com/skillswap/swap-app/internal/config"
	"github.com/skillswap/swap-app/internal/gateway"
	"github.com/skillswap/swap-app/internal/matching"
	"github.com/skillswap/swap-app/internal/messaging"
	"github.com/skillswap/swap-app/internal/profile"
	"github.com/skillswap/swap-app/internal/ratelimit"
	"github.com/skillswap/swap-app/internal/session"
	"github.com/skillswap/swap-app/internal/store"
	"github.com/skillswap/swap-app/internal/store/memory"
	"github.com/skillswap/swap-app/internal/store/postgres"
	"github.com/skillswap/swap-app/internal/store/redisstore"
	"github.com/skillswap/swap-app/internal/ws"
)

func main() {
	envFile := flag.String("env", "", "path to a .env file (default ./.env if present)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-env file]\n\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintln(flag.CommandLine.Output())
		fmt.Fprintln(flag.CommandLine.Output(), config.Usage())
	}
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	st, rdb, err := openStore(ctx, cfg.Store)
	cancel()
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	// --- Notifications ---
	hub := gateway.NewHub()
	var (
		natsClient *messaging.NATSClient
		publisher  messaging.Publisher = hub
	)
	if cfg.NATS.URL != "" {
		natsConfig := messaging.DefaultNATSConfig()
		natsConfig.URL = cfg.NATS.URL
		natsConfig.Name = "skillswap-" + cfg.Server.Name
		natsClient, err = messaging.NewNATSClient(natsConfig)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		publisher = natsClient
	}
	notifier := messaging.NewNotifier(publisher)

	// --- Sessions and rate limiting ---
	var sessions *session.Store
	var limiter ratelimit.Allower
	if rdb != nil {
		sessions = session.NewStore(rdb, cfg.Server.Name)
		if cfg.RateLimit.Enabled {
			limiter = ratelimit.NewLimiter(rdb)
		}
	} else if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewLocalLimiter()
	}

	engine := matching.NewEngine(st, notifier, matching.Options{
		StickyPass: cfg.Matching.StickyPass,
		DeckLimit:  cfg.Matching.DeckLimit,
	})
	channel := chat.NewChannel(st, notifier)
	profiles := profile.NewService(st)

	opts := gateway.Options{
		Limiter:        limiter,
		Sessions:       sessions,
		RequestTimeout: cfg.Server.RequestTimeout,
	}
	if natsClient != nil {
		opts.Subscriber = natsClient
	}
	gw := gateway.New(engine, channel, profiles, hub, opts)

	dispatcher := ws.NewMessageDispatcher()
	gw.Register(dispatcher)

	server := ws.NewServer(ws.ServerConfig{
		ListenAddr:     cfg.Server.ListenAddr,
		WorkerPoolSize: cfg.Server.WorkerPoolSize,
		MaxConnections: cfg.Server.MaxConnections,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		Heartbeat: ws.HeartbeatConfig{
			Interval: cfg.Server.HeartbeatInterval,
			Timeout:  cfg.Server.HeartbeatTimeout,
		},
	}, sessions, dispatcher.Dispatch)
	if limiter != nil {
		server.SetConnectLimiter(limiter)
	}
	server.SetOnDisconnect(gw.Disconnect)
	hub.SetSender(server)

	log.Printf("SkillSwap server starting")
	log.Printf("  listen_addr:     %s", cfg.Server.ListenAddr)
	log.Printf("  server_name:     %s", cfg.Server.Name)
	log.Printf("  store_backend:   %s", cfg.Store.Backend)
	log.Printf("  nats:            %t", natsClient != nil)
	log.Printf("  rate_limit:      %t", limiter != nil)
	log.Printf("  sticky_pass:     %t", cfg.Matching.StickyPass)
	log.Printf("  deck_limit:      %d", cfg.Matching.DeckLimit)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		if natsClient != nil {
			natsClient.Close()
		}
		if err := st.Close(); err != nil {
			log.Printf("store close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// openStore connects the configured backend. The Redis client is returned
// for the redis backend so sessions and rate limits can share it.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, *redis.Client, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		st, err := redisstore.Dial(ctx, cfg.RedisAddr, cfg.RedisNamespace)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Client(), nil
	case config.BackendPostgres:
		st, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil
	default:
		log.Println("[store] using in-memory store; data is lost on restart")
		return memory.New(), nil, nil
	}
}

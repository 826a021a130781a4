// Package main runs the authoritative combat server: websocket acceptor,
// fixed-step simulation loop, and batched analytics persistence.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/hexfray/hexfray/internal/config"
	"github.com/hexfray/hexfray/internal/game/attr"
	"github.com/hexfray/hexfray/internal/game/hex"
	"github.com/hexfray/hexfray/internal/gameserver"
	"github.com/hexfray/hexfray/internal/observability"
	"github.com/hexfray/hexfray/internal/server"
	"github.com/hexfray/hexfray/internal/storage/sqlite"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	hostiles := flag.Int("hostiles", 3, "number of hostile NPCs to spawn at startup")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting hexfray server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Duration("tick", cfg.Simulation.TickInterval),
	)

	dbStart := time.Now()
	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("opening database", zap.Error(err))
	}
	defer store.Close()
	logger.Info("database opened",
		zap.String("path", cfg.Database.Path),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	analytics := sqlite.NewAnalytics(store, logger, cfg.Database.FlushInterval, cfg.Database.BatchSize)

	srv := gameserver.NewServer(cfg, logger, analytics)

	for i := 0; i < *hostiles; i++ {
		loc := spawnRing(i)
		if _, err := srv.SpawnHostile("raider", 5, loc, hostileAttrs()); err != nil {
			logger.Fatal("spawning hostile", zap.Error(err))
		}
	}

	lc := server.NewLifecycle(logger)
	lc.Add("gameserver", srv)
	lc.Add("analytics", &server.FuncService{
		StartFn: func() error { return nil },
		StopFn:  analytics.Stop,
	})

	logger.Info("startup complete", zap.Duration("elapsed", time.Since(start)))

	if err := lc.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// spawnRing places the i-th hostile on an expanding ring around the
// arena origin so players do not spawn inside a pile of raiders.
func spawnRing(i int) hex.Hex {
	dirs := (hex.Hex{}).Neighbors()
	radius := i/6 + 2
	d := dirs[i%6]
	return hex.Hex{Q: d.Q * radius, R: d.R * radius, Z: d.Z * radius}
}

// hostileAttrs is the standard raider spread: enough Presence to attack
// on a quick cadence, enough Focus for a two-slot queue.
func hostileAttrs() attr.Attributes {
	return attr.Attributes{
		Might:    20,
		Grace:    8,
		Vitality: 20,
		Focus:    36,
		Instinct: 0,
		Presence: 36,
	}
}

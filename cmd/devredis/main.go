// Package main runs a standalone miniredis instance for local
// development, so cmd/worker and cmd/producer can point REDIS_ADDR at
// it without a real Redis install.
//
// Unlike a plain miniredis.Run(), the bind address and an optional
// auth password are read from the environment (see pkg/config), so a
// developer can run several isolated instances side by side, and
// lifecycle events go through the project's structured logger instead
// of the standard library's log package.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/alicebob/miniredis/v2"
	"github.com/guido-cesarano/taskqueue/pkg/config"
	"github.com/guido-cesarano/taskqueue/pkg/logger"
)

func main() {
	cfg := config.LoadDevRedis()
	log := logger.Named("devredis")

	s := miniredis.NewMiniRedis()
	if cfg.RequirePass != "" {
		s.RequireAuth(cfg.RequirePass)
	}
	if err := s.StartAddr(cfg.Addr); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Addr).Msg("failed to start miniredis")
	}
	defer s.Close()

	log.Info().Str("addr", s.Addr()).Bool("auth", cfg.RequirePass != "").Msg("miniredis dev server started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down miniredis dev server")
}

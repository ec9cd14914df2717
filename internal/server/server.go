package server

import (
	"fmt"
	"net/http"
	"time"

	"gem2prom/internal/config"
	"gem2prom/internal/metrics"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
)

type Server struct {
	port        uint
	httpLog     bool
	rootContext *actor.RootContext
	ingestActor *actor.PID
	store       *metrics.Store
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, ingestActor *actor.PID, store *metrics.Store) *http.Server {
	NewServer := &Server{
		port:        cfg.MetricsPort,
		rootContext: rootContext,
		ingestActor: ingestActor,
		store:       store,
		httpLog:     cfg.HttpLog,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}

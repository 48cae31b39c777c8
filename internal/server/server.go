package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/growatt2mqtt/internal/config"
	"github.com/berfenger/growatt2mqtt/internal/core/service"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

type Server struct {
	port           uint
	httpLog        bool
	rootContext    *actor.RootContext
	masterActor    *actor.PID
	readings       *service.ReadingCache
	metricsHandler http.Handler
	logger         *zap.Logger
}

// NewServer exposes the health check, the inverter API and, when metricsHandler is not nil,
// the prometheus scrape endpoint.
func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID, readings *service.ReadingCache,
	metricsHandler http.Handler, logger *zap.Logger) *http.Server {
	NewServer := &Server{
		port:           cfg.Port,
		rootContext:    rootContext,
		masterActor:    masterActor,
		httpLog:        cfg.HttpLog,
		readings:       readings,
		metricsHandler: metricsHandler,
		logger:         logger.With(zap.String("component", "http")),
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

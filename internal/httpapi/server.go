package httpapi

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/mux"

	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/ingest"
	"github.com/example/ride-dispatch/internal/logging"
	"github.com/example/ride-dispatch/internal/notify"
	"github.com/example/ride-dispatch/internal/payments"
	"github.com/example/ride-dispatch/internal/registry"
	"github.com/example/ride-dispatch/internal/ridestore"
	"github.com/example/ride-dispatch/internal/routes"
	"github.com/example/ride-dispatch/internal/track"
)

// Server wires the dispatch core behind an HTTP surface. The thin web
// client is an external collaborator; every core operation it needs is a
// route here.
type Server struct {
	logger   *slog.Logger
	registry registry.Registry
	rides    ridestore.Store
	engine   *dispatch.Engine
	pipeline *track.Pipeline
	sim      *track.Simulator
	router   routes.Provider
	payments *payments.Client
	producer *ingest.Producer
	watchers *track.WatcherHub
	drivers  *notify.WSRegistry
	mux      *mux.Router

	// fare holds awaiting capture, keyed by ride id
	holdMu sync.Mutex
	holds  map[string]string
}

// Deps are the injected collaborators. Registry and Rides are required;
// the rest are optional and nil-safe.
type Deps struct {
	Registry registry.Registry
	Rides    ridestore.Store
	Routes   routes.Provider
	Payments *payments.Client
	Producer *ingest.Producer
	Notifier dispatch.Notifier
}

func New(cfg config.ServerConfig, logger *slog.Logger, deps Deps) *Server {
	watchers := track.NewWatcherHub(logger)
	driverWS := notify.NewWSRegistry()

	notifier := deps.Notifier
	if notifier == nil {
		if cfg.FCMEndpoint != "" {
			notifier = &notify.Fallback{WS: driverWS, Push: notify.NewFCMNotifier(cfg.FCMEndpoint, cfg.FCMKey)}
		} else {
			notifier = driverWS
		}
	}

	pipeline := &track.Pipeline{
		Rides:    deps.Rides,
		Registry: deps.Registry,
		Watchers: watchers,
		Logger:   logger,
	}
	if deps.Producer != nil {
		pipeline.Publisher = deps.Producer
	}

	s := &Server{
		logger:   logger,
		registry: deps.Registry,
		rides:    deps.Rides,
		engine: &dispatch.Engine{
			Registry:    deps.Registry,
			Rides:       deps.Rides,
			Notifier:    notifier,
			MaxAttempts: cfg.DispatchMaxAttempts,
			Logger:      logger,
		},
		pipeline: pipeline,
		sim:      track.NewSimulator(pipeline, deps.Rides, deps.Registry, cfg.SimStepInterval, logger),
		router:   deps.Routes,
		payments: deps.Payments,
		producer: deps.Producer,
		watchers: watchers,
		drivers:  driverWS,
		mux:      mux.NewRouter(),
		holds:    make(map[string]string),
	}
	s.sim.OnComplete = func(rideID, driverID string) {
		s.settleHold(context.Background(), rideID, true)
	}
	s.registerMiddleware()
	s.routes()
	return s
}

// settleHold resolves the ride's fare hold on a terminal status: capture
// on completion, cancel otherwise. The hold entry is consumed either way.
func (s *Server) settleHold(ctx context.Context, rideID string, completed bool) {
	intentID := s.holdFor(rideID)
	if s.payments == nil || intentID == "" {
		return
	}
	var err error
	if completed {
		err = s.payments.Capture(ctx, intentID)
	} else {
		err = s.payments.Cancel(ctx, intentID)
	}
	if err != nil {
		s.logger.Warn("fare settlement failed", "ride_id", rideID, "error", err)
	}
}

// NewFromConfig builds the production wiring: Redis registry and
// Postgres ride store when configured, in-memory fallbacks otherwise.
func NewFromConfig(cfg config.ServerConfig) *Server {
	logger := logging.New(cfg.LogLevel)

	var reg registry.Registry
	if cfg.RedisAddr != "" {
		reg = registry.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		reg = registry.NewMemory()
	}

	var rides ridestore.Store
	if cfg.PGDSN != "" {
		if pg, err := ridestore.NewPostgres(cfg.PGDSN); err == nil {
			rides = pg
		} else {
			logger.Error("postgres unavailable, using memory store", "error", err)
		}
	}
	if rides == nil {
		rides = ridestore.NewMemory()
	}

	var prod *ingest.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = ingest.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	var router routes.Provider
	if cfg.OSRMEndpoint != "" {
		router = routes.NewCache(routes.NewOSRMClient(cfg.OSRMEndpoint), cfg.RouteCacheTTL)
	}

	return New(cfg, logger, Deps{
		Registry: reg,
		Rides:    rides,
		Routes:   router,
		Payments: payments.NewClient(),
		Producer: prod,
	})
}

func (s *Server) holdFor(rideID string) string {
	s.holdMu.Lock()
	defer s.holdMu.Unlock()
	id := s.holds[rideID]
	delete(s.holds, rideID)
	return id
}

func (s *Server) setHold(rideID, intentID string) {
	if intentID == "" {
		return
	}
	s.holdMu.Lock()
	defer s.holdMu.Unlock()
	s.holds[rideID] = intentID
}

package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wtracker/wtracker/internal/catalog"
	"github.com/wtracker/wtracker/internal/companion"
	"github.com/wtracker/wtracker/internal/config"
	"github.com/wtracker/wtracker/internal/db"
	"github.com/wtracker/wtracker/internal/middleware"
	"github.com/wtracker/wtracker/internal/notifications"
	"github.com/wtracker/wtracker/internal/session"
	"github.com/wtracker/wtracker/internal/telemetry/metrics"
	"github.com/wtracker/wtracker/internal/telemetry/tracing"
	"github.com/wtracker/wtracker/pkg"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	appSecret         string // shared with the mobile and watch apps
	versionInfo       string

	config       *config.Config
	dbPool       *pgxpool.Pool
	catalogStore catalog.Store

	redisClient      *redis.Client
	progressStore    session.ProgressStore
	companionWS      *companion.WSTransport
	companionChannel *companion.Channel
	sessionManager   *session.Manager

	// telemetry
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	RemoteStoreAPIKey       string
	AppSecret               string
	RedisPassword           string
	VersionInfo             string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "wtracker-core")
	if err != nil {
		return nil, err
	}

	tracedHttpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	var dbPool *pgxpool.Pool
	var catalogStore catalog.Store
	var extraCollectors []prometheus.Collector
	switch params.Config.CatalogBackend {
	case "postgres":
		dbPool, err = db.NewDBPool(ctx, db.NewDBPoolParams{
			DBHost:         params.Config.PostgresHost,
			DBPort:         params.Config.PostgresPort,
			DBName:         params.Config.PostgresDBName,
			TracingEnabled: params.HoneycombTracingEnabled,
		})
		if err != nil {
			return nil, fmt.Errorf("new db pool: %w", err)
		}
		if err := dbPool.Ping(ctx); err != nil {
			log.Warnf("failed to ping db: %s", err)
		}
		catalogStore = catalog.NewRepo(dbPool)
		extraCollectors = append(extraCollectors, pgxpoolprometheus.NewCollector(
			dbPool,
			map[string]string{"db_name": params.Config.PostgresDBName},
		))
	case "rest":
		catalogStore = catalog.NewApi(
			params.Config.RemoteStoreURL,
			params.RemoteStoreAPIKey,
			tracedHttpClient,
		)
	default:
		return nil, fmt.Errorf("unknown catalog backend: %q", params.Config.CatalogBackend)
	}

	promRegistry := metrics.SetupPrometheus(extraCollectors...)
	metricsManager := metrics.NewManager("wtracker", "core", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})
	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	var progressStore session.ProgressStore
	switch params.Config.ProgressBackend {
	case "redis":
		progressStore = session.NewRedisStore(rdb)
	case "file":
		progressStore, err = session.NewFileStore(params.Config.ProgressFilePath)
		if err != nil {
			return nil, fmt.Errorf("new file progress store: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown progress backend: %q", params.Config.ProgressBackend)
	}

	companionWS := companion.NewWSTransport()
	companionChannel := companion.NewChannel(companionWS, metricsManager)
	companionWS.SetHandler(companionChannel)

	sessionManager := session.NewManager(
		progressStore,
		catalogStore,
		companionChannel,
		notifications.NewScheduler(nil),
		metricsManager,
	)

	return &Server{
		config:       params.Config,
		appSecret:    params.AppSecret,
		versionInfo:  params.VersionInfo,
		dbPool:       dbPool,
		catalogStore: catalogStore,

		redisClient:      rdb,
		progressStore:    progressStore,
		companionWS:      companionWS,
		companionChannel: companionChannel,
		sessionManager:   sessionManager,

		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("wtracker-router"))

	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
	}).Methods("GET").Name("root")
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteTextResponseOK(w, "ok")
	}).Methods("GET").Name("health")
	r.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteTextResponseOK(w, s.versionInfo)
	}).Methods("GET").Name("version")

	catalogHandler := catalog.NewHandler(s.catalogStore)
	r.HandleFunc("/catalog/exercises", catalogHandler.HandleListExercises).Methods("GET", "OPTIONS").Name("list-exercises")
	r.HandleFunc("/catalog/workouts", catalogHandler.HandleListWorkouts).Methods("GET", "OPTIONS").Name("list-workouts")
	r.HandleFunc("/catalog/workouts/{id}/exercises", catalogHandler.HandleWorkoutExercises).Methods("GET", "OPTIONS").Name("list-workout-exercises")
	r.HandleFunc("/catalog/exercises/{id}/history", catalogHandler.HandleExerciseHistory).Methods("GET", "OPTIONS").Name("exercise-history")

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	sessionHandler := session.NewHandler(s.sessionManager)
	sessionHandler.SetupRoutes(r, reqRateLimiter, s.config.SessionStartRateLimitPerMin)

	r.HandleFunc("/companion/ws", s.companionWS.HandleConnect).Name("companion-ws")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.appSecret)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(_ context.Context, host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("workout tracker service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if err := s.companionWS.Close(); err != nil {
		log.Errorf("failed to close companion ws: %s", err)
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	}
}

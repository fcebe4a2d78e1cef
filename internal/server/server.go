// Package server orchestrates all components: manifest, catalog, dispatcher, NATS
// subscriptions, the audit database and the HTTP surface.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/text/language"

	"github.com/morezero/json-bridge/internal/config"
	"github.com/morezero/json-bridge/internal/metrics"
	"github.com/morezero/json-bridge/internal/telemetry"
	"github.com/morezero/json-bridge/internal/widgets"
	"github.com/morezero/json-bridge/pkg/catalog"
	"github.com/morezero/json-bridge/pkg/coerce"
	"github.com/morezero/json-bridge/pkg/commsutil"
	"github.com/morezero/json-bridge/pkg/db"
	"github.com/morezero/json-bridge/pkg/dispatcher"
	"github.com/morezero/json-bridge/pkg/events"
	"github.com/morezero/json-bridge/pkg/invoker"
	"github.com/morezero/json-bridge/pkg/manifest"
)

const logPrefix = "server:server"

// Server is the json-bridge orchestrator.
type Server struct {
	cfg        *config.Config
	disp       *dispatcher.Dispatcher
	policy     StatusPolicy
	nc         *comms.Conn
	pool       *pgxpool.Pool
	httpServer *http.Server
	subs       []*comms.Subscription
	ready      atomic.Bool
}

// NewServerParams holds parameters for New.
type NewServerParams struct {
	Config     *config.Config
	Dispatcher *dispatcher.Dispatcher
	// Policy maps failures to HTTP statuses. Nil uses DefaultStatusPolicy.
	Policy StatusPolicy
	// Conn and Pool are optional; when set they take part in health checks.
	Conn *comms.Conn
	Pool *pgxpool.Pool
}

// New creates a Server. It does not start listening.
func New(params NewServerParams) *Server {
	policy := params.Policy
	if policy == nil {
		policy = DefaultStatusPolicy
	}
	return &Server{
		cfg:    params.Config,
		disp:   params.Dispatcher,
		policy: policy,
		nc:     params.Conn,
		pool:   params.Pool,
	}
}

// LoadCatalog loads the manifest, builds the converter for the effective locale and
// registers every binding. A manifest locale overrides BRIDGE_LOCALE.
func LoadCatalog(cfg *config.Config, opts ...invoker.Option) (*catalog.Catalog, error) {
	paths := []string{}
	if cfg.ManifestFile != "" {
		paths = append(paths, cfg.ManifestFile)
	}
	m, err := manifest.Load(paths...)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to load manifest: %w", logPrefix, err)
	}
	locale, err := cfg.LocaleTag()
	if err != nil {
		return nil, err
	}
	if m.Locale != "" {
		if locale, err = coerce.ParseLocale(m.Locale); err != nil {
			return nil, fmt.Errorf("%s - manifest locale: %w", logPrefix, err)
		}
	}
	converter := coerce.New(locale)
	slog.Info(fmt.Sprintf("%s - Manifest %s %s, locale %s", logPrefix, m.Name, m.Version, locale))

	cat := catalog.New()
	if err := RegisterBindings(RegisterBindingsParams{
		Catalog:   cat,
		Manifest:  m,
		Converter: converter,
		Bindings:  Bindings(converter.Locale()),
		Options:   opts,
	}); err != nil {
		return nil, err
	}
	return cat, nil
}

// Bindings returns the services this build of the bridge publishes. Both widgets
// versions share one store.
func Bindings(locale language.Tag) []Binding {
	store := widgets.NewSeededStore()
	return []Binding{
		{
			Name:        "widgets",
			Version:     "1.0.0",
			Description: "Widget catalog (legacy representation)",
			Target:      widgets.NewLegacyAPI(store, locale),
			Translator:  widgets.Translator,
		},
		{
			Name:        "widgets",
			Version:     "2.0.0",
			Description: "Widget catalog",
			Target:      store,
			Translator:  widgets.Translator,
		},
	}
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting json-bridge %s", logPrefix, cfg.ServiceVersion))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Tracing
	shutdownTracing, err := telemetry.InitTraceProvider(ctx, cfg.OTLPEndpoint, cfg.ServiceVersion)
	if err != nil {
		return fmt.Errorf("%s - failed to init tracing: %w", logPrefix, err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn(fmt.Sprintf("%s - tracing shutdown: %v", logPrefix, err))
		}
	}()

	// Step 2: Manifest, converter and catalog
	cat, err := LoadCatalog(cfg,
		invoker.WithObserver(metrics.Recorder{}),
		invoker.WithMapper(invoker.JSONMapper{DisallowUnknownFields: cfg.StrictJSON}),
		invoker.WithTracer(telemetry.Tracer()),
	)
	if err != nil {
		return err
	}
	metrics.SetCatalogSize(len(cat.List()))

	s := &Server{cfg: cfg, policy: DefaultStatusPolicy}
	defer s.close()

	// Step 3: Event sinks
	var sinks []events.EventPublisher
	if cfg.COMMSEnabled {
		nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
		}
		s.nc = nc
		sinks = append(sinks, instrument("comms", events.NewCommsPublisher(nc, &events.CommsPublisherOpts{
			GlobalSubject: cfg.EventSubject,
			FailuresOnly:  cfg.EventsFailuresOnly,
		})))
	}
	if cfg.AuditEnabled {
		pool, err := openAudit(ctx, cfg)
		if err != nil {
			return err
		}
		s.pool = pool
		sinks = append(sinks, instrument("audit", db.NewAuditPublisher(db.NewRepository(pool))))

		if cfg.AuditPruneSchedule != "" {
			pruner, err := newAuditPruner(cfg.AuditPruneSchedule, cfg.AuditRetention, cfg.RequestTimeout, poolPruner(pool))
			if err != nil {
				return err
			}
			pruner.Start()
			defer pruner.Stop()
		}
	}

	// Step 4: Dispatcher
	s.disp = dispatcher.NewDispatcher(dispatcher.NewDispatcherParams{
		Catalog:   cat,
		Publisher: events.NewMultiPublisher(sinks...),
	})

	// Step 5: NATS subscriptions
	if s.nc != nil {
		if err := s.subscribe(ctx); err != nil {
			return err
		}
	}

	// Step 6: HTTP server
	s.httpServer = &http.Server{Addr: cfg.Addr(), Handler: s.Handler()}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, cfg.Addr()))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	s.ready.Store(true)
	slog.Info(fmt.Sprintf("%s - json-bridge is ready", logPrefix))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))
	s.ready.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer shutdownCancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
	}

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// openAudit connects to the audit database, creating it and applying migrations when
// RUN_MIGRATIONS is set.
func openAudit(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.RunMigrations {
		if err := db.EnsureDatabase(ctx, cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("%s - failed to ensure database: %w", logPrefix, err)
		}
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	if cfg.RunMigrations {
		migrationSQL, err := db.LoadMigrationFiles(cfg.MigrationPath)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
		}
		if err := db.RunMigrations(ctx, pool, migrationSQL); err != nil {
			pool.Close()
			return nil, fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
		}
	}
	return pool, nil
}

// subscribe serves the envelope on the configured subject and on one subject per
// service major. Subscriptions share a queue group so replicas split the load.
func (s *Server) subscribe(ctx context.Context) error {
	cat := s.disp.Catalog()
	subjects := map[string]string{s.cfg.Subject: ""}
	for _, name := range cat.Names() {
		for _, major := range cat.Majors(name) {
			subjects[commsutil.BuildServiceSubject(s.cfg.Subject, name, major)] = fmt.Sprintf("%s@%d", name, major)
		}
	}

	for _, subject := range sortedKeys(subjects) {
		sub, err := s.nc.QueueSubscribe(subject, s.cfg.COMMSName, s.handleMessage(ctx, subjects[subject]))
		if err != nil {
			return fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, subject, err)
		}
		s.subs = append(s.subs, sub)
		slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, subject))
	}
	return nil
}

// handleMessage returns the NATS handler for one subject. A non-empty service pins the
// envelope's cap when the caller leaves it empty.
func (s *Server) handleMessage(ctx context.Context, service string) comms.MsgHandler {
	return func(msg *comms.Msg) {
		var req dispatcher.Request
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to decode request on %s: %v", logPrefix, msg.Subject, err))
			metrics.RecordRequest("comms", "INVALID_REQUEST")
			s.respond(msg, &dispatcher.Response{
				Ok:    false,
				Error: &dispatcher.ErrorDetail{Code: "INVALID_REQUEST", Message: "Failed to decode request"},
			})
			return
		}
		if req.Cap == "" {
			req.Cap = service
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		spanCtx, span := telemetry.StartRequestSpan(ctx, "comms", req.Cap, req.Method)
		reqCtx, cancel := dispatcher.RequestContext(spanCtx, req.Ctx, s.cfg.RequestTimeout)
		defer cancel()

		resp := s.disp.Dispatch(reqCtx, &req)

		outcome := events.OutcomeOK
		if resp.Error != nil {
			outcome = resp.Error.Code
		}
		metrics.RecordRequest("comms", outcome)
		telemetry.EndRequestSpan(span, outcome, 0)
		s.respond(msg, resp)
	}
}

func (s *Server) respond(msg *comms.Msg, resp *dispatcher.Response) {
	if msg.Reply == "" {
		return
	}
	data, err := commsutil.EncodePayload(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", logPrefix, err))
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to respond on %s: %v", logPrefix, msg.Reply, err))
	}
}

// close releases subscriptions and connections in reverse start order.
func (s *Server) close() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn(fmt.Sprintf("%s - unsubscribe %s: %v", logPrefix, sub.Subject, err))
		}
	}
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			slog.Warn(fmt.Sprintf("%s - COMMS drain: %v", logPrefix, err))
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// Handler returns the HTTP routes of the bridge.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/{service}/{operation}", s.handleAPI)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /services/{service}", s.handleServiceDetail())
	mux.HandleFunc("GET /services/{service}/{page}", s.handleServiceDetail())
	mux.HandleFunc("GET /{$}", s.handleHome())
	return mux
}

// errorBody is the HTTP error document.
type errorBody struct {
	Error *dispatcher.ErrorDetail `json:"error"`
}

// handleAPI invokes /api/{service}/{operation}. The operation segment is tried with the
// HTTP method's verb prefix first, then as-is.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	service, segment := r.PathValue("service"), r.PathValue("operation")
	ctx, span := telemetry.StartRequestSpan(r.Context(), "http", service, segment)

	params, err := RequestParams(r, s.cfg.HeaderPrefix)
	if err != nil {
		metrics.RecordRequest("http", "INVALID_ARGUMENT")
		telemetry.EndRequestSpan(span, "INVALID_ARGUMENT", http.StatusBadRequest)
		writeJSON(w, http.StatusBadRequest, errorBody{&dispatcher.ErrorDetail{Code: "INVALID_ARGUMENT", Message: err.Error()}})
		return
	}

	ic := invocationContextFromHeaders(r.Header)
	reqCtx, cancel := dispatcher.RequestContext(ctx, ic, s.cfg.RequestTimeout)
	defer cancel()

	result, err := s.disp.Invoke(reqCtx, dispatcher.Call{
		Service:    service,
		Operations: operationCandidates(r.Method, segment),
		Params:     params,
		Ctx:        ic,
		RequestID:  ic.RequestID,
		Transport:  "http",
	})
	w.Header().Set("X-Request-Id", ic.RequestID)
	if err != nil {
		status := s.policy(err)
		detail := dispatcher.ErrorDetailOf(err)
		metrics.RecordRequest("http", detail.Code)
		telemetry.EndRequestSpan(span, detail.Code, status)
		writeJSON(w, status, errorBody{detail})
		return
	}

	metrics.RecordRequest("http", events.OutcomeOK)
	w.Header().Set("X-Bridge-Service", result.Entry.Ref())
	w.Header().Set("X-Bridge-Operation", result.Operation)
	if string(result.Body) == "null" {
		telemetry.EndRequestSpan(span, events.OutcomeOK, http.StatusNoContent)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	telemetry.EndRequestSpan(span, events.OutcomeOK, http.StatusOK)
	writeJSON(w, http.StatusOK, result.Body)
}

// invocationContextFromHeaders reads the caller context from conventional headers and
// assigns a request id when the caller sent none.
func invocationContextFromHeaders(h http.Header) *dispatcher.InvocationContext {
	ic := &dispatcher.InvocationContext{
		TenantID:      h.Get("X-Tenant-Id"),
		UserID:        h.Get("X-User-Id"),
		RequestID:     h.Get("X-Request-Id"),
		CorrelationID: h.Get("X-Correlation-Id"),
	}
	if ic.RequestID == "" {
		ic.RequestID = uuid.NewString()
	}
	if v := h.Get("X-Timeout-Ms"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			ic.TimeoutMs = ms
		}
	}
	return ic
}

// healthReport extends the dispatcher health with dependency checks.
type healthReport struct {
	*dispatcher.HealthOutput
	Checks map[string]bool `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
	defer cancel()

	report := s.health(ctx)
	status := http.StatusOK
	if report.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (s *Server) health(ctx context.Context) *healthReport {
	report := &healthReport{HealthOutput: s.disp.Health(), Checks: map[string]bool{}}
	if s.nc != nil {
		report.Checks["comms"] = s.nc.IsConnected()
	}
	if s.pool != nil {
		report.Checks["database"] = s.pool.Ping(ctx) == nil
	}
	for _, ok := range report.Checks {
		if !ok {
			report.Status = "unhealthy"
		}
	}
	return report
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

package observability

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const tracerName = "github.com/iamwavecut/ngmod/moderation"

var (
	// Logger records spam gate decisions; it stays a no-op until Init is called.
	Logger = zap.NewNop()

	moderationActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_actions_total",
			Help: "Total number of moderation actions by outcome",
		},
		[]string{"action", "outcome"},
	)

	moderationActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moderation_action_duration_seconds",
			Help:    "Time spent executing moderation actions, including platform calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	moderationEscalationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "moderation_escalations_total",
			Help: "Total number of warning limit escalations into a permanent mute",
		},
	)

	spamGateRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spam_gate_rejections_total",
			Help: "Total number of messages rejected by the URL lock",
		},
	)

	registerOnce sync.Once
)

type Config struct {
	MetricsAddr string
	Tracing     bool
}

// Server exposes metrics over HTTP and owns the tracer provider. It is a lifecycle component.
type Server struct {
	cfg            Config
	httpServer     *http.Server
	tracerProvider *sdktrace.TracerProvider
	wg             sync.WaitGroup
}

func Init(cfg Config) (*Server, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	Logger = logger

	registerOnce.Do(func() {
		prometheus.MustRegister(moderationActionsTotal)
		prometheus.MustRegister(moderationActionDuration)
		prometheus.MustRegister(moderationEscalationsTotal)
		prometheus.MustRegister(spamGateRejectionsTotal)
	})

	s := &Server{cfg: cfg}
	if cfg.Tracing {
		s.tracerProvider = sdktrace.NewTracerProvider()
		otel.SetTracerProvider(s.tracerProvider)
	}
	return s, nil
}

func (s *Server) Start(ctx context.Context) error {
	if s.cfg.MetricsAddr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s.httpServer = &http.Server{
		Addr:              s.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	var stopErr error
	if s.httpServer != nil {
		stopErr = s.httpServer.Shutdown(ctx)
		s.wg.Wait()
	}
	if s.tracerProvider != nil {
		stopErr = multierr.Append(stopErr, s.tracerProvider.Shutdown(ctx))
	}
	_ = Logger.Sync()
	return stopErr
}

func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartAction returns a function that records the action's outcome and duration.
func StartAction(action string) func(outcome string) {
	timer := prometheus.NewTimer(moderationActionDuration.WithLabelValues(action))
	return func(outcome string) {
		timer.ObserveDuration()
		moderationActionsTotal.WithLabelValues(action, outcome).Inc()
	}
}

func RecordEscalation() {
	moderationEscalationsTotal.Inc()
}

func RecordSpamRejection() {
	spamGateRejectionsTotal.Inc()
}

// RegisterChatGauges exposes the size of the in-memory chat store. Call it once per process.
func RegisterChatGauges(chats, urlLocked func() float64) {
	prometheus.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "moderation_chats",
			Help: "Number of chats with moderation state in memory",
		}, chats),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "moderation_url_locked_chats",
			Help: "Number of chats with the URL lock enabled",
		}, urlLocked),
	)
}

// Package metrics exposes Prometheus counters for the bot and serves them
// over HTTP together with a health probe.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	registerOnce sync.Once

	commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filmklub_commands_total",
		Help: "Handled interactions by command and outcome.",
	}, []string{"command", "result"})

	lifecycleTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filmklub_movienight_transitions_total",
		Help: "Movie night lifecycle transitions applied to the store.",
	}, []string{"transition"})

	catalogRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filmklub_catalog_requests_total",
		Help: "Catalog lookups by operation and outcome.",
	}, []string{"op", "result"})

	voiceSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "filmklub_voice_sessions",
		Help: "Open voice connections.",
	})

	playbackTasks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filmklub_playback_tasks_total",
		Help: "Playback tasks by final state.",
	}, []string{"state"})

	jobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filmklub_jobs_total",
		Help: "Deferred job lifecycle events by kind.",
	}, []string{"kind", "event"})
)

// MustRegister registers the package metrics in the given registry.
func MustRegister(registerer prometheus.Registerer) {
	registerOnce.Do(func() {
		registerer.MustRegister(
			commandsTotal,
			lifecycleTransitions,
			catalogRequests,
			voiceSessions,
			playbackTasks,
			jobsTotal,
		)
	})
}

func ObserveCommand(command string, err error) {
	commandsTotal.WithLabelValues(command, result(err)).Inc()
}

func ObserveTransition(transition string) {
	lifecycleTransitions.WithLabelValues(transition).Inc()
}

func ObserveCatalog(op string, err error) {
	catalogRequests.WithLabelValues(op, result(err)).Inc()
}

func SetVoiceSessions(n int) {
	voiceSessions.Set(float64(n))
}

func ObservePlayback(state string) {
	playbackTasks.WithLabelValues(state).Inc()
}

// ObserveJob consumes jobmgr status messages such as "done:leave:42".
func ObserveJob(msg string) {
	event, name, ok := strings.Cut(msg, ":")
	if !ok {
		return
	}
	kind, _, _ := strings.Cut(name, ":")
	jobsTotal.WithLabelValues(kind, event).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// NewRouter serves /metrics from gatherer and /healthz.
func NewRouter(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

// StartServer runs the metrics server until ctx is done. An empty addr
// disables it.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string, gatherer prometheus.Gatherer) {
	if addr == "" {
		return
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      NewRouter(gatherer),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("Metrics server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
}

// Package metrics exposes Prometheus counters for the verification and marks workflows.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	WorkflowVerify  = "verify"
	WorkflowMarks   = "marks"
	WorkflowRestore = "restore"

	OutcomeSuccess    = "success"
	OutcomeError      = "error"
	OutcomePermission = "permission"
	OutcomeRestored   = "restored"
	OutcomeSkipped    = "skipped"

	KindRole    = "role"
	KindChannel = "channel"
)

// Recorder is what the workflows report to
type Recorder interface {
	RecordVerification(outcome string)
	RecordMarksLookup(outcome string)
	RecordRestore(outcome string)
	RecordResourceCreated(kind string)
	RecordDuration(workflow string, duration time.Duration)
}

type Collector struct {
	verifications    *prometheus.CounterVec
	marksLookups     *prometheus.CounterVec
	restores         *prometheus.CounterVec
	resourcesCreated *prometheus.CounterVec
	duration         *prometheus.HistogramVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sectionbot_verifications_total",
			Help: "Verification attempts by outcome",
		}, []string{"outcome"}),
		marksLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sectionbot_marks_lookups_total",
			Help: "Marks lookups by outcome",
		}, []string{"outcome"}),
		restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sectionbot_restores_total",
			Help: "Member updates handled by the restore rule, by outcome",
		}, []string{"outcome"}),
		resourcesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sectionbot_resources_created_total",
			Help: "Roles and channels created by the bot",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sectionbot_workflow_duration_seconds",
			Help:    "Time spent in each workflow, discord calls included",
			Buckets: prometheus.DefBuckets,
		}, []string{"workflow"}),
	}

	reg.MustRegister(
		c.verifications,
		c.marksLookups,
		c.restores,
		c.resourcesCreated,
		c.duration,
	)

	return c
}

func (c *Collector) RecordVerification(outcome string) {
	c.verifications.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordMarksLookup(outcome string) {
	c.marksLookups.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordRestore(outcome string) {
	c.restores.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordResourceCreated(kind string) {
	c.resourcesCreated.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordDuration(workflow string, duration time.Duration) {
	c.duration.WithLabelValues(workflow).Observe(duration.Seconds())
}

// Nop discards everything
type Nop struct{}

func (Nop) RecordVerification(string)            {}
func (Nop) RecordMarksLookup(string)             {}
func (Nop) RecordRestore(string)                 {}
func (Nop) RecordResourceCreated(string)         {}
func (Nop) RecordDuration(string, time.Duration) {}

// Serve the registry on /metrics until the context is done
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Could not shut down metrics server")
		}
	}()

	log.Info().Msgf("Serving metrics on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

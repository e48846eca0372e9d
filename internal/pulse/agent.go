package pulse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pharosdir/pharos"
	"github.com/pharosdir/pharos/internal/hostinfo"
	"github.com/pharosdir/pharos/wire"
)

// BeatMetrics counts heartbeat outcomes.
type BeatMetrics struct {
	beats *prometheus.CounterVec
}

// NewBeatMetrics builds the beat counter and registers it.
func NewBeatMetrics(registry prometheus.Registerer) *BeatMetrics {
	m := &BeatMetrics{
		beats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pharos_pulse_beats_total",
			Help: "Heartbeats sent to the directory, by outcome.",
		}, []string{"status"}),
	}
	registry.MustRegister(m.beats)
	return m
}

func (m *BeatMetrics) recordBeat(err error) {
	if err != nil {
		m.beats.WithLabelValues("error").Inc()
		return
	}
	m.beats.WithLabelValues("ok").Inc()
}

// Agent publishes the local machine into the directory on a fixed
// interval. Each beat upserts one machine record keyed by hostname.
type Agent struct {
	Directory pharos.Directory
	Interval  time.Duration
	Logger    *slog.Logger

	// Metrics counts beat outcomes when set.
	Metrics *BeatMetrics
}

// Run beats once immediately and then on every interval tick until ctx
// is canceled. A failed beat is logged and counted, never fatal: the
// next tick retries.
func (a *Agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.Interval)
	defer ticker.Stop()

	for {
		err := a.beat(ctx)
		if err != nil && ctx.Err() != nil {
			return nil
		}
		if a.Metrics != nil {
			a.Metrics.recordBeat(err)
		}
		if err != nil {
			a.Logger.Warn("beat failed", "error", err)
		} else {
			a.Logger.Debug("beat sent")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// beat collects one host snapshot and upserts it as a machine record.
func (a *Agent) beat(ctx context.Context) error {
	info, err := hostinfo.Collect(ctx)
	if err != nil {
		return err
	}

	fields := append([]wire.Field{{Name: "type", Value: "machine"}}, info.Fields()...)
	result, err := a.Directory.Add(ctx, fields...)
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return fmt.Errorf("add rejected: %w", err)
	}
	return nil
}

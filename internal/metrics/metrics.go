// Package metrics exposes Prometheus instruments for the prepare/commit
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultOK    = "ok"
	ResultError = "error"

	OutcomeWritten = "written"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

var (
	// prepareTotal counts prepare runs by result
	prepareTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "awgseq_prepare_total",
		Help: "Total waveform prepares by result",
	}, []string{"result"})

	// prepareDuration tracks assembly plus compression time
	prepareDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "awgseq_prepare_duration_seconds",
		Help:    "Waveform prepare duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
	}, []string{"waveform"})

	// channelCommits counts per-channel commit outcomes
	channelCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "awgseq_channel_commits_total",
		Help: "Channel commits by outcome (written, skipped, failed)",
	}, []string{"channel", "outcome"})

	// libraryBlocks tracks the number of unique blocks per compressed channel
	libraryBlocks = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "awgseq_library_blocks",
		Help:    "Unique blocks per channel library",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 500, 1000},
	})

	// pointsWritten counts sample points sent to channel memory
	pointsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "awgseq_points_written_total",
		Help: "Sample points written to channel memory",
	}, []string{"channel"})
)

// ObservePrepare records one prepare run.
func ObservePrepare(waveform string, start time.Time, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	prepareTotal.WithLabelValues(result).Inc()
	prepareDuration.WithLabelValues(waveform).Observe(time.Since(start).Seconds())
}

// ObserveLibrary records the size of a freshly computed block library.
func ObserveLibrary(blocks int) {
	libraryBlocks.Observe(float64(blocks))
}

// ObserveCommit records the outcome of committing one channel.
func ObserveCommit(channel, outcome string, points int) {
	channelCommits.WithLabelValues(channel, outcome).Inc()
	if outcome == OutcomeWritten {
		pointsWritten.WithLabelValues(channel).Add(float64(points))
	}
}

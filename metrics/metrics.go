// Package metrics collects and exposes Prometheus metrics for the game server.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector is the metrics interface used by the service layer,
// the API and the asset provider
type MetricsCollector interface {
	RecordGameStarted(tier string)
	RecordFlip(accepted bool)
	RecordMatch()
	RecordMismatch()
	RecordPowerUp()
	RecordGameWon(tier string, elapsedSeconds int)
	RecordAssetFailure(reason string)
	RecordLeaderboardWrite(success bool)
	RecordRateLimited()
}

// Collector is the Prometheus implementation of MetricsCollector
type Collector struct {
	gamesStarted     *prometheus.CounterVec
	flips            *prometheus.CounterVec
	matches          prometheus.Counter
	mismatches       prometheus.Counter
	powerUps         prometheus.Counter
	gamesWon         *prometheus.CounterVec
	gameDuration     prometheus.Histogram
	assetFailures    *prometheus.CounterVec
	leaderboardWrite *prometheus.CounterVec
	rateLimited      prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		gamesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memory_games_started_total",
			Help: "Number of games dealt, by difficulty tier",
		}, []string{"tier"}),
		flips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memory_flips_total",
			Help: "Number of flip requests, by outcome",
		}, []string{"accepted"}),
		matches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memory_matches_total",
			Help: "Number of matched pairs",
		}),
		mismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memory_mismatches_total",
			Help: "Number of mismatched pairs",
		}),
		powerUps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memory_power_ups_total",
			Help: "Number of power-ups collected",
		}),
		gamesWon: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memory_games_won_total",
			Help: "Number of games won, by difficulty tier",
		}, []string{"tier"}),
		gameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "memory_game_duration_seconds",
			Help:    "Elapsed time of won games",
			Buckets: []float64{15, 30, 60, 120, 300, 600, 1200},
		}),
		assetFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memory_asset_failures_total",
			Help: "Card faces replaced by placeholders, by reason",
		}, []string{"reason"}),
		leaderboardWrite: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memory_leaderboard_writes_total",
			Help: "Leaderboard save attempts, by result",
		}, []string{"success"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memory_rate_limited_total",
			Help: "Flip requests rejected by the rate limiter",
		}),
	}

	reg.MustRegister(
		c.gamesStarted,
		c.flips,
		c.matches,
		c.mismatches,
		c.powerUps,
		c.gamesWon,
		c.gameDuration,
		c.assetFailures,
		c.leaderboardWrite,
		c.rateLimited,
	)

	return c
}

// RecordGameStarted counts a newly dealt board
func (c *Collector) RecordGameStarted(tier string) {
	c.gamesStarted.WithLabelValues(tier).Inc()
}

// RecordFlip counts a flip request
func (c *Collector) RecordFlip(accepted bool) {
	c.flips.WithLabelValues(strconv.FormatBool(accepted)).Inc()
}

// RecordMatch counts a matched pair
func (c *Collector) RecordMatch() {
	c.matches.Inc()
}

// RecordMismatch counts a mismatched pair
func (c *Collector) RecordMismatch() {
	c.mismatches.Inc()
}

// RecordPowerUp counts a collected power-up
func (c *Collector) RecordPowerUp() {
	c.powerUps.Inc()
}

// RecordGameWon counts a won game and observes its duration
func (c *Collector) RecordGameWon(tier string, elapsedSeconds int) {
	c.gamesWon.WithLabelValues(tier).Inc()
	c.gameDuration.Observe(float64(elapsedSeconds))
}

// RecordAssetFailure counts a face replaced by a placeholder
func (c *Collector) RecordAssetFailure(reason string) {
	c.assetFailures.WithLabelValues(reason).Inc()
}

// RecordLeaderboardWrite counts a leaderboard save attempt
func (c *Collector) RecordLeaderboardWrite(success bool) {
	c.leaderboardWrite.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// RecordRateLimited counts a rejected flip request
func (c *Collector) RecordRateLimited() {
	c.rateLimited.Inc()
}

// NopCollector discards every metric
type NopCollector struct{}

func (NopCollector) RecordGameStarted(string) {}
func (NopCollector) RecordFlip(bool) {}
func (NopCollector) RecordMatch() {}
func (NopCollector) RecordMismatch() {}
func (NopCollector) RecordPowerUp() {}
func (NopCollector) RecordGameWon(string, int) {}
func (NopCollector) RecordAssetFailure(string) {}
func (NopCollector) RecordLeaderboardWrite(bool) {}
func (NopCollector) RecordRateLimited() {}

// Handler returns the HTTP handler Prometheus scrapes
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	bidsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hanotex_bids_accepted_total",
			Help: "Total accepted bids per auction",
		},
		[]string{"auction_id", "source"},
	)

	bidsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hanotex_bids_rejected_total",
			Help: "Total rejected bids by reason code",
		},
		[]string{"reason"},
	)

	bidLockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hanotex_bid_lock_wait_seconds",
			Help:    "Time spent waiting on the per-auction bid lock",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	relayClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hanotex_relay_clients",
			Help: "Currently connected relay clients",
		},
	)

	relayDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hanotex_relay_dropped_total",
			Help: "Relay messages dropped because a subscriber was slow",
		},
	)

	notifyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hanotex_notify_failures_total",
			Help: "Personal notification publishes that failed",
		},
	)

	activeAuctions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hanotex_active_auctions",
			Help: "Auctions currently accepting bids",
		},
	)
)

type Monitor struct {
	redis *redis.Client
}

// NewMonitor starts the background gauge collection.
func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}
	go monitor.collectMetrics()
	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if m.redis == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if count, err := m.redis.SCard(ctx, "active_auctions").Result(); err == nil {
			activeAuctions.Set(float64(count))
		}
		cancel()
	}
}

func (m *Monitor) TrackBidAccepted(auctionID, source string) {
	bidsAccepted.WithLabelValues(auctionID, source).Inc()
}

func (m *Monitor) TrackBidRejected(reason string) {
	bidsRejected.WithLabelValues(reason).Inc()
}

func (m *Monitor) ObserveBidLockWait(d time.Duration) {
	bidLockWait.Observe(d.Seconds())
}

func (m *Monitor) TrackRelayClient(delta int) {
	relayClients.Add(float64(delta))
}

func (m *Monitor) TrackRelayDropped() {
	relayDropped.Inc()
}

func (m *Monitor) TrackNotifyFailure() {
	notifyFailures.Inc()
}

package bridge

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HealthSnapshot is the caller-facing view of connection liveness.
type HealthSnapshot struct {
	LastPingSentAt         time.Time     `json:"last_ping_sent_at"`
	LastPongReceivedAt     time.Time     `json:"last_pong_received_at"`
	ConsecutiveMissedPongs int           `json:"consecutive_missed_pongs"`
	MaxMissedPongs         int           `json:"max_missed_pongs"`
	AverageLatency         time.Duration `json:"average_latency"`
}

// healthMonitor runs two loops per connection: a heartbeat emitter on
// pingInterval and a coarser liveness check on checkInterval. A ping
// newer than the last pong by more than pongTimeout counts as a miss;
// maxMissedPongs misses force a reconnect. Both loops stop when the
// connection's done channel closes so they never act on a torn-down
// transport.
type healthMonitor struct {
	pingInterval   time.Duration
	checkInterval  time.Duration
	pongTimeout    time.Duration
	maxMissedPongs int

	sendPing       func(timestamp int64)
	forceReconnect func()
	log            *logrus.Logger

	latency *latencyRing

	mu                     sync.Mutex
	lastPingSentAt         time.Time
	lastPongReceivedAt     time.Time
	consecutiveMissedPongs int
}

func newHealthMonitor(pingInterval, checkInterval, pongTimeout time.Duration, maxMissedPongs int,
	sendPing func(int64), forceReconnect func(), log *logrus.Logger) *healthMonitor {
	return &healthMonitor{
		pingInterval:   pingInterval,
		checkInterval:  checkInterval,
		pongTimeout:    pongTimeout,
		maxMissedPongs: maxMissedPongs,
		sendPing:       sendPing,
		forceReconnect: forceReconnect,
		log:            log,
		latency:        newLatencyRing(16),
	}
}

// reset restores the healthy baseline, called on every (re)connect.
func (h *healthMonitor) reset() {
	now := time.Now()
	h.mu.Lock()
	h.lastPingSentAt = time.Time{}
	h.lastPongReceivedAt = now
	h.consecutiveMissedPongs = 0
	h.mu.Unlock()
}

// start spawns the heartbeat and liveness loops for one connection.
func (h *healthMonitor) start(done <-chan struct{}) {
	go h.heartbeatLoop(done)
	go h.livenessLoop(done)
}

func (h *healthMonitor) heartbeatLoop(done <-chan struct{}) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.emitPing()
		case <-done:
			return
		}
	}
}

func (h *healthMonitor) livenessLoop(done <-chan struct{}) {
	ticker := time.NewTicker(h.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.check(time.Now())
		case <-done:
			return
		}
	}
}

func (h *healthMonitor) emitPing() {
	now := time.Now()
	h.mu.Lock()
	h.lastPingSentAt = now
	h.mu.Unlock()
	h.sendPing(now.UnixMilli())
}

// check runs one liveness evaluation against now. Split out from the
// ticker loop so the policy is testable without real time.
func (h *healthMonitor) check(now time.Time) {
	h.mu.Lock()
	missed := false
	if h.lastPingSentAt.After(h.lastPongReceivedAt) && now.Sub(h.lastPongReceivedAt) > h.pongTimeout {
		h.consecutiveMissedPongs++
		missed = true
	}
	count := h.consecutiveMissedPongs
	trigger := missed && count >= h.maxMissedPongs
	if trigger {
		h.consecutiveMissedPongs = 0
	}
	h.mu.Unlock()

	if missed {
		h.log.WithFields(logrus.Fields{
			"missed": count,
			"max":    h.maxMissedPongs,
		}).Warn("heartbeat reply overdue")
	}
	if trigger {
		h.log.Warn("connection stale, forcing reconnect")
		h.forceReconnect()
	}
}

// handlePong records a heartbeat reply and its round-trip latency.
func (h *healthMonitor) handlePong(clientTimestamp int64) {
	now := time.Now()
	h.mu.Lock()
	h.lastPongReceivedAt = now
	h.consecutiveMissedPongs = 0
	h.mu.Unlock()

	if clientTimestamp > 0 {
		rtt := now.Sub(time.UnixMilli(clientTimestamp))
		if rtt >= 0 {
			h.latency.Add(rtt)
		}
	}
}

func (h *healthMonitor) snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HealthSnapshot{
		LastPingSentAt:         h.lastPingSentAt,
		LastPongReceivedAt:     h.lastPongReceivedAt,
		ConsecutiveMissedPongs: h.consecutiveMissedPongs,
		MaxMissedPongs:         h.maxMissedPongs,
		AverageLatency:         h.latency.Average(),
	}
}

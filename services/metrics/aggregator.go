package metrics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
)

const (
	topN          = 5
	minuteBuckets = 60
)

// Alert thresholds. Crossing one produces an observation for operators,
// nothing more.
const (
	blockedAttemptsThreshold = 50
	errorRateThreshold       = 10.0
	responseTimeThresholdMs  = 2000.0
)

type requestSample struct {
	userID     string
	tool       string
	ip         string
	durationMs float64
	failed     bool
	at         time.Time
}

// Aggregator keeps rolling in-memory counters over a bounded window. It is
// safe for concurrent use; every reader takes a snapshot rather than holding
// the lock across work.
type Aggregator struct {
	mu sync.RWMutex

	window   []requestSample // ring of the most recent requests
	next     int
	filled   bool
	capacity int

	// per-user request timestamps within the last minute, for the live
	// requests-per-minute risk signal
	perUser map[string][]time.Time

	online       map[string]time.Time
	onlineWindow time.Duration

	dayKey       string
	toolsToday   int64
	revenueToday float64
	blockedToday int64

	logger *zap.Logger
	clock  func() time.Time
}

func NewAggregator(windowSize int, onlineWindow time.Duration, logger *zap.Logger) *Aggregator {
	if windowSize <= 0 {
		windowSize = 1000
	}
	if onlineWindow <= 0 {
		onlineWindow = 5 * time.Minute
	}
	return &Aggregator{
		window:       make([]requestSample, windowSize),
		capacity:     windowSize,
		perUser:      make(map[string][]time.Time),
		online:       make(map[string]time.Time),
		onlineWindow: onlineWindow,
		logger:       logger,
		clock:        time.Now,
	}
}

// RecordRequest registers one admitted request and its outcome.
func (a *Aggregator) RecordRequest(userID, tool, ip string, duration time.Duration, failed bool) {
	now := a.clock()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.rollDayLocked(now)

	a.window[a.next] = requestSample{
		userID:     userID,
		tool:       tool,
		ip:         ip,
		durationMs: float64(duration.Milliseconds()),
		failed:     failed,
		at:         now,
	}
	a.next++
	if a.next == a.capacity {
		a.next = 0
		a.filled = true
	}

	a.toolsToday++
	a.online[userID] = now

	cutoff := now.Add(-time.Minute)
	recent := append(pruneBefore(a.perUser[userID], cutoff), now)
	a.perUser[userID] = recent
}

// Touch marks a user online without counting a tool use. Denied requests
// still prove the user is there.
func (a *Aggregator) Touch(userID string) {
	now := a.clock()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.online[userID] = now
}

// RecordRevenue adds a confirmed payment amount to today's total.
func (a *Aggregator) RecordRevenue(amount float64) {
	now := a.clock()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rollDayLocked(now)
	a.revenueToday += amount
}

// RecordBlockedAttempt counts one denied request.
func (a *Aggregator) RecordBlockedAttempt() {
	now := a.clock()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rollDayLocked(now)
	a.blockedToday++
}

// UserRequestsPerMinute reports the user's request count over the last
// minute. The risk scorer reads this as a live behavior signal.
func (a *Aggregator) UserRequestsPerMinute(userID string) int {
	now := a.clock()
	a.mu.RLock()
	defer a.mu.RUnlock()

	count := 0
	cutoff := now.Add(-time.Minute)
	for _, at := range a.perUser[userID] {
		if at.After(cutoff) {
			count++
		}
	}
	return count
}

// Snapshot computes the current rolling view. The day key rolls here too,
// so a dashboard read after midnight reports fresh daily counters even
// before the first write of the day arrives.
func (a *Aggregator) Snapshot() models.MetricsSnapshot {
	now := a.clock()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.rollDayLocked(now)

	samples := a.samplesLocked()

	var (
		lastMinute int
		failed     int
		totalMs    float64
		toolCounts = make(map[string]int64)
		ipCounts   = make(map[string]int64)
	)
	minuteCutoff := now.Add(-time.Minute)
	for _, s := range samples {
		if s.at.After(minuteCutoff) {
			lastMinute++
		}
		if s.failed {
			failed++
		}
		totalMs += s.durationMs
		toolCounts[s.tool]++
		if s.ip != "" {
			ipCounts[s.ip]++
		}
	}

	snapshot := models.MetricsSnapshot{
		OnlineUsers:          a.onlineCountLocked(now),
		RequestsPerMinute:    lastMinute,
		ToolsUsedToday:       a.toolsToday,
		RevenueToday:         a.revenueToday,
		BlockedAttemptsToday: a.blockedToday,
		TopTools:             topCounts(toolCounts, topN),
		TopIPs:               topCounts(ipCounts, topN),
		Timestamp:            now,
	}
	if len(samples) > 0 {
		snapshot.ErrorRatePercent = float64(failed) / float64(len(samples)) * 100
		snapshot.AvgResponseTimeMs = totalMs / float64(len(samples))
	}
	return snapshot
}

// Alerts reports the thresholds the current snapshot crosses.
func (a *Aggregator) Alerts() []models.MetricsAlert {
	snap := a.Snapshot()

	var alerts []models.MetricsAlert
	if snap.BlockedAttemptsToday > blockedAttemptsThreshold {
		alerts = append(alerts, models.MetricsAlert{
			Name:      "blocked_attempts",
			Message:   fmt.Sprintf("%d blocked attempts today", snap.BlockedAttemptsToday),
			Value:     float64(snap.BlockedAttemptsToday),
			Threshold: blockedAttemptsThreshold,
			Timestamp: snap.Timestamp,
		})
	}
	if snap.ErrorRatePercent > errorRateThreshold {
		alerts = append(alerts, models.MetricsAlert{
			Name:      "error_rate",
			Message:   fmt.Sprintf("error rate at %.1f%%", snap.ErrorRatePercent),
			Value:     snap.ErrorRatePercent,
			Threshold: errorRateThreshold,
			Timestamp: snap.Timestamp,
		})
	}
	if snap.AvgResponseTimeMs > responseTimeThresholdMs {
		alerts = append(alerts, models.MetricsAlert{
			Name:      "response_time",
			Message:   fmt.Sprintf("average response time at %.0fms", snap.AvgResponseTimeMs),
			Value:     snap.AvgResponseTimeMs,
			Threshold: responseTimeThresholdMs,
			Timestamp: snap.Timestamp,
		})
	}
	return alerts
}

// Sweep drops users not seen within the online window and prunes stale
// per-user timestamps. Skipping a sweep only delays the cleanup; counts are
// recomputed against the window on every read.
func (a *Aggregator) Sweep() {
	now := a.clock()

	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := now.Add(-a.onlineWindow)
	for userID, lastSeen := range a.online {
		if lastSeen.Before(cutoff) {
			delete(a.online, userID)
		}
	}

	minuteCutoff := now.Add(-time.Minute)
	for userID, stamps := range a.perUser {
		pruned := pruneBefore(stamps, minuteCutoff)
		if len(pruned) == 0 {
			delete(a.perUser, userID)
			continue
		}
		a.perUser[userID] = pruned
	}
}

// StartSweep runs Sweep on a ticker until the context is canceled.
func (a *Aggregator) StartSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				a.logger.Info("metrics sweep stopped")
				return
			case <-ticker.C:
				a.Sweep()
			}
		}
	}()
}

func (a *Aggregator) rollDayLocked(now time.Time) {
	key := now.Format("2006-01-02")
	if a.dayKey == key {
		return
	}
	a.dayKey = key
	a.toolsToday = 0
	a.revenueToday = 0
	a.blockedToday = 0
}

func (a *Aggregator) samplesLocked() []requestSample {
	if a.filled {
		return a.window
	}
	return a.window[:a.next]
}

func (a *Aggregator) onlineCountLocked(now time.Time) int {
	cutoff := now.Add(-a.onlineWindow)
	count := 0
	for _, lastSeen := range a.online {
		if !lastSeen.Before(cutoff) {
			count++
		}
	}
	return count
}

func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	kept := stamps[:0]
	for _, at := range stamps {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	return kept
}

func topCounts(counts map[string]int64, n int) []models.NamedCount {
	if len(counts) == 0 {
		return nil
	}
	entries := make([]models.NamedCount, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, models.NamedCount{Name: name, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

package alerts

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"footy-quant/internal/picks"
)

// Notifier announces recommended picks on the log with per-selection
// cooldown dedupe, so a selection re-scanned every cycle is only
// announced once per cooldown window.
type Notifier struct {
	mu         sync.Mutex
	lastAlerts map[string]time.Time
	cooldown   time.Duration
}

// NewNotifier creates a new notifier.
func NewNotifier(cooldown time.Duration) *Notifier {
	return &Notifier{
		lastAlerts: make(map[string]time.Time),
		cooldown:   cooldown,
	}
}

// AlertPick announces one recommended pick. Non-recommended picks and
// picks inside their cooldown window are dropped silently.
func (n *Notifier) AlertPick(home, away string, p picks.QuantPick) {
	if !p.Recommended() {
		return
	}

	key := fmt.Sprintf("%s-%s-%s", p.MatchID, p.Market, p.Side)
	if n.checkCooldown(key) {
		return
	}

	slog.Info("PICK",
		"fixture", home+" v "+away,
		"market", string(p.Market),
		"side", p.Side,
		"odds", fmt.Sprintf("%.2f", p.Odds),
		"prob", fmt.Sprintf("%.1f%%", p.Probability*100),
		"edge", fmt.Sprintf("%.1f%%", p.Edge*100),
		"kelly", fmt.Sprintf("%.2f%%", p.KellyFraction*100),
		"score", p.Score,
		"label", p.Label,
	)
}

// checkCooldown records key and reports whether the alert should be
// suppressed because the previous one is still inside the window.
func (n *Notifier) checkCooldown(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if lastTime, ok := n.lastAlerts[key]; ok {
		if time.Since(lastTime) < n.cooldown {
			return true
		}
	}
	n.lastAlerts[key] = time.Now()
	return false
}

// LogScan logs a scan completion.
func (n *Notifier) LogScan(matches, emitted, recommended int) {
	slog.Info("Scan complete", "matches", matches, "picks", emitted, "recommended", recommended)
}

// LogError logs an error with its operation context.
func (n *Notifier) LogError(op string, err error) {
	slog.Error("operation failed", "op", op, "err", err)
}

// CleanupOldAlerts drops cooldown records older than one hour.
func (n *Notifier) CleanupOldAlerts() {
	n.mu.Lock()
	defer n.mu.Unlock()
	cutoff := time.Now().Add(-1 * time.Hour)
	for key, t := range n.lastAlerts {
		if t.Before(cutoff) {
			delete(n.lastAlerts, key)
		}
	}
}

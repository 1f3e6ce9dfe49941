package alerts

import (
	"testing"
	"time"

	"footy-quant/internal/market"
	"footy-quant/internal/picks"
)

func TestCheckCooldownSuppresses(t *testing.T) {
	n := NewNotifier(1 * time.Second)

	// First call should not suppress
	if n.checkCooldown("test-key") {
		t.Error("first call should not be suppressed")
	}

	// Immediate second call should suppress
	if !n.checkCooldown("test-key") {
		t.Error("second call within cooldown should be suppressed")
	}
}

func TestCheckCooldownExpires(t *testing.T) {
	n := NewNotifier(10 * time.Millisecond)

	if n.checkCooldown("test-key") {
		t.Error("first call should not be suppressed")
	}

	time.Sleep(15 * time.Millisecond)

	if n.checkCooldown("test-key") {
		t.Error("call after cooldown should not be suppressed")
	}
}

func TestCheckCooldownDifferentKeys(t *testing.T) {
	n := NewNotifier(1 * time.Second)

	if n.checkCooldown("key-a") {
		t.Error("first call for key-a should not be suppressed")
	}

	// Different key should not be suppressed
	if n.checkCooldown("key-b") {
		t.Error("first call for key-b should not be suppressed")
	}

	// Same key should be suppressed
	if !n.checkCooldown("key-a") {
		t.Error("second call for key-a should be suppressed")
	}
}

func TestAlertPickCooldown(t *testing.T) {
	n := NewNotifier(1 * time.Second)

	p := picks.QuantPick{
		ID:          "p1",
		MatchID:     "m1",
		Market:      market.BTTSYes,
		Side:        "BTTS_YES",
		Odds:        1.9,
		Probability: 0.58,
		Edge:        0.10,
		Score:       35,
		Label:       picks.LabelMedium,
	}

	// Should not panic and should log the first time
	n.AlertPick("Liverpool", "Sunderland", p)

	// Second call should be suppressed (no log)
	n.AlertPick("Liverpool", "Sunderland", p)
}

func TestAlertPickSkipsNonRecommended(t *testing.T) {
	n := NewNotifier(1 * time.Second)

	p := picks.QuantPick{
		ID:           "p2",
		MatchID:      "m1",
		Market:       market.Over35,
		Side:         "OVER_35",
		Score:        0,
		Label:        picks.LabelInfo,
		TrapFiltered: true,
	}
	n.AlertPick("Liverpool", "Sunderland", p)

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.lastAlerts) != 0 {
		t.Error("non-recommended pick must not record a cooldown entry")
	}
}

func TestCleanupOldAlerts(t *testing.T) {
	n := NewNotifier(1 * time.Hour)

	// Manually insert an old alert
	n.mu.Lock()
	n.lastAlerts["old-key"] = time.Now().Add(-2 * time.Hour)
	n.lastAlerts["fresh-key"] = time.Now()
	n.mu.Unlock()

	n.CleanupOldAlerts()

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.lastAlerts["old-key"]; ok {
		t.Error("old alert should have been cleaned up")
	}
	if _, ok := n.lastAlerts["fresh-key"]; !ok {
		t.Error("fresh alert should not have been cleaned up")
	}
}

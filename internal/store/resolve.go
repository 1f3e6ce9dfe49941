package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"footy-quant/internal/market"
)

// Pick resolution: once a match finishes, every stored pick gets exactly
// one outcome row with its settled result, realized profit per unit stake
// and closing line value. Resolution is idempotent; re-running it after a
// crash never double-writes.

// PickResult is a settled pick row joined with its outcome, used by the
// CLV report and the backtest harness.
type PickResult struct {
	PickID      string
	MatchID     string
	Market      market.Market
	Odds        float64
	Probability float64
	Edge        float64
	Score       int
	Result      string // "won", "lost", "void"
	Profit      float64
	ClosingOdds float64
	CLVPct      float64
	ResolvedAt  time.Time
}

// ResolveMatch settles every pick of a finished match. It returns the
// number of picks newly resolved; picks already carrying an outcome are
// left untouched.
func (d *DB) ResolveMatch(ctx context.Context, matchID string) (int, error) {
	m, err := d.GetMatch(ctx, matchID)
	if err != nil {
		return 0, err
	}
	if m == nil {
		return 0, fmt.Errorf("resolving picks: unknown match %s", matchID)
	}
	if !m.Finished {
		return 0, fmt.Errorf("resolving picks: match %s not finished", matchID)
	}

	list, err := d.PicksForMatch(ctx, matchID)
	if err != nil {
		return 0, err
	}
	if len(list) == 0 {
		return 0, nil
	}

	closing, err := d.ClosingOdds(ctx, matchID, m.KickoffTime)
	if err != nil {
		return 0, err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning resolution transaction: %w", err)
	}
	defer tx.Rollback()

	resolved := 0
	now := time.Now().UTC()
	for _, p := range list {
		won := p.Market.Settle(m.HomeGoals, m.AwayGoals)
		result := "lost"
		profit := -1.0
		if won {
			result = "won"
			profit = p.Odds - 1
		}

		var closingOdds, clvPct sql.NullFloat64
		if c, ok := closing[p.Market]; ok && c > 1.01 {
			closingOdds = sql.NullFloat64{Float64: c, Valid: true}
			clvPct = sql.NullFloat64{Float64: p.Odds/c - 1, Valid: true}
		}

		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO pick_outcomes
				(pick_id, closing_odds, clv_pct, result, realized_profit, resolved_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, p.ID, closingOdds, clvPct, result, profit, now)
		if err != nil {
			return 0, fmt.Errorf("resolving pick %s: %w", p.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("resolving pick %s: %w", p.ID, err)
		}
		resolved += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing resolution: %w", err)
	}
	return resolved, nil
}

// ResolveAll settles every finished match that still has unresolved picks.
func (d *DB) ResolveAll(ctx context.Context) (int, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT DISTINCT m.match_id FROM matches m
		JOIN picks p ON p.match_id = m.match_id
		LEFT JOIN pick_outcomes o ON o.pick_id = p.id
		WHERE m.finished = 1 AND o.pick_id IS NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("querying unresolved matches: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scanning match id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	total := 0
	for _, id := range ids {
		n, err := d.ResolveMatch(ctx, id)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// ResolvedPicks returns settled picks for a match (or all matches when
// matchID is empty), newest first.
func (d *DB) ResolvedPicks(ctx context.Context, matchID string) ([]PickResult, error) {
	query := `
		SELECT p.id, p.match_id, p.market, p.odds, p.probability, p.edge, p.score,
		       o.result, o.realized_profit, o.closing_odds, o.clv_pct, o.resolved_at
		FROM picks p
		JOIN pick_outcomes o ON o.pick_id = p.id
		WHERE o.result != 'pending'`
	var args []any
	if matchID != "" {
		query += ` AND p.match_id = ?`
		args = append(args, matchID)
	}
	query += ` ORDER BY o.resolved_at DESC, p.score DESC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying resolved picks: %w", err)
	}
	defer rows.Close()

	var out []PickResult
	for rows.Next() {
		var r PickResult
		var mkt string
		var closing, clv sql.NullFloat64
		if err := rows.Scan(&r.PickID, &r.MatchID, &mkt, &r.Odds, &r.Probability,
			&r.Edge, &r.Score, &r.Result, &r.Profit, &closing, &clv, &r.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scanning resolved pick: %w", err)
		}
		r.Market = market.Market(mkt)
		r.ClosingOdds = closing.Float64
		r.CLVPct = clv.Float64
		out = append(out, r)
	}
	return out, rows.Err()
}

// CLVSummary aggregates closing line value over settled picks.
type CLVSummary struct {
	Picks      int
	WithCLV    int
	MeanCLVPct float64
	BeatClose  int // picks with positive CLV
}

// CLVReport summarises closing line value across all settled picks.
func (d *DB) CLVReport(ctx context.Context) (CLVSummary, error) {
	var s CLVSummary
	var mean sql.NullFloat64
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(clv_pct),
		       AVG(clv_pct),
		       COALESCE(SUM(CASE WHEN clv_pct > 0 THEN 1 ELSE 0 END), 0)
		FROM pick_outcomes WHERE result != 'pending'
	`).Scan(&s.Picks, &s.WithCLV, &mean, &s.BeatClose)
	if err != nil {
		return s, fmt.Errorf("querying clv report: %w", err)
	}
	s.MeanCLVPct = mean.Float64
	return s, nil
}

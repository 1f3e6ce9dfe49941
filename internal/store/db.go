package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"footy-quant/internal/market"
	"footy-quant/internal/names"
	"footy-quant/internal/picks"
)

// DB is the engine's persistence layer: picks, outcomes, odds snapshots and
// the collector-written context tables. One DB per worker; connections are
// pooled by database/sql.
type DB struct {
	db       *sql.DB
	resolver *names.Resolver
}

// Open opens (and migrates) the sqlite database at path. Use ":memory:"
// for tests.
func Open(path string, resolver *names.Resolver) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	if resolver == nil {
		resolver = names.NewResolver(nil)
	}
	return &DB{db: db, resolver: resolver}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS picks (
		id TEXT NOT NULL,
		match_id TEXT NOT NULL,
		market TEXT NOT NULL,
		side TEXT NOT NULL,
		odds REAL NOT NULL,
		probability REAL NOT NULL,
		edge REAL NOT NULL,
		kelly_fraction REAL NOT NULL,
		confidence REAL NOT NULL,
		score INTEGER NOT NULL,
		label TEXT NOT NULL,
		is_sweet_spot INTEGER NOT NULL DEFAULT 0,
		is_trap_filtered INTEGER NOT NULL DEFAULT 0,
		is_reality_rejected INTEGER NOT NULL DEFAULT 0,
		is_low_coverage INTEGER NOT NULL DEFAULT 0,
		layer_scores TEXT NOT NULL DEFAULT '{}',
		rationale TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		last_seen_at DATETIME NOT NULL,
		UNIQUE(match_id, market, side)
	);

	CREATE TABLE IF NOT EXISTS pick_outcomes (
		pick_id TEXT PRIMARY KEY,
		closing_odds REAL,
		clv_pct REAL,
		result TEXT NOT NULL DEFAULT 'pending',
		realized_profit REAL NOT NULL DEFAULT 0,
		resolved_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS odds_snapshots (
		match_id TEXT NOT NULL,
		bookmaker TEXT NOT NULL,
		market TEXT NOT NULL,
		side TEXT NOT NULL,
		price REAL NOT NULL,
		collected_at DATETIME NOT NULL,
		UNIQUE(match_id, bookmaker, market, side, collected_at)
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_closing
		ON odds_snapshots(match_id, market, collected_at);

	CREATE TABLE IF NOT EXISTS matches (
		match_id TEXT PRIMARY KEY,
		home_team TEXT NOT NULL,
		away_team TEXT NOT NULL,
		competition TEXT NOT NULL DEFAULT '',
		referee TEXT NOT NULL DEFAULT '',
		kickoff_time DATETIME NOT NULL,
		home_goals INTEGER,
		away_goals INTEGER,
		finished INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS team_intelligence (
		team_name TEXT NOT NULL,
		competition TEXT NOT NULL DEFAULT '',
		matches_analyzed INTEGER NOT NULL DEFAULT 0,
		home_goals_scored_avg REAL NOT NULL DEFAULT 0,
		home_goals_conceded_avg REAL NOT NULL DEFAULT 0,
		away_goals_scored_avg REAL NOT NULL DEFAULT 0,
		away_goals_conceded_avg REAL NOT NULL DEFAULT 0,
		xg_for_avg REAL NOT NULL DEFAULT 0,
		xg_against_avg REAL NOT NULL DEFAULT 0,
		clean_sheet_rate REAL NOT NULL DEFAULT 0,
		btts_rate REAL NOT NULL DEFAULT 0,
		style TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL,
		UNIQUE(team_name, competition)
	);

	CREATE TABLE IF NOT EXISTS team_class (
		team_name TEXT NOT NULL,
		competition TEXT NOT NULL DEFAULT '',
		tier TEXT NOT NULL DEFAULT 'B',
		home_fortress_factor REAL NOT NULL DEFAULT 1.0,
		away_weakness_factor REAL NOT NULL DEFAULT 1.0,
		star_players TEXT NOT NULL DEFAULT '',
		UNIQUE(team_name, competition)
	);

	CREATE TABLE IF NOT EXISTS team_momentum (
		team_name TEXT PRIMARY KEY,
		score REAL NOT NULL DEFAULT 0,
		form_string TEXT NOT NULL DEFAULT '',
		points_last_5 INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS head_to_head (
		team_a TEXT NOT NULL,
		team_b TEXT NOT NULL,
		total_matches INTEGER NOT NULL DEFAULT 0,
		btts_pct REAL NOT NULL DEFAULT 0,
		over25_pct REAL NOT NULL DEFAULT 0,
		avg_goals REAL NOT NULL DEFAULT 0,
		UNIQUE(team_a, team_b)
	);

	CREATE TABLE IF NOT EXISTS tactical_matrix (
		style_a TEXT NOT NULL,
		style_b TEXT NOT NULL,
		btts_probability REAL NOT NULL DEFAULT 0,
		over25_probability REAL NOT NULL DEFAULT 0,
		avg_goals_total REAL NOT NULL DEFAULT 0,
		sample_size INTEGER NOT NULL DEFAULT 0,
		confidence_level REAL NOT NULL DEFAULT 0,
		UNIQUE(style_a, style_b)
	);

	CREATE TABLE IF NOT EXISTS referee_intelligence (
		referee_name TEXT PRIMARY KEY,
		avg_cards REAL NOT NULL DEFAULT 0,
		avg_goals_per_game REAL NOT NULL DEFAULT 0,
		goals_modifier REAL NOT NULL DEFAULT 0,
		tendency TEXT NOT NULL DEFAULT 'neutral'
	);

	CREATE TABLE IF NOT EXISTS market_traps (
		team_name TEXT NOT NULL,
		market_group TEXT NOT NULL,
		direction TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		UNIQUE(team_name, market_group, direction)
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// SavePicks writes all picks of one match in a single transaction. The
// insert is idempotent: an existing (match_id, market, side) row keeps its
// original values and only last_seen_at is refreshed.
func (d *DB) SavePicks(ctx context.Context, list []picks.QuantPick) error {
	if len(list) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning pick transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO picks (
			id, match_id, market, side, odds, probability, edge,
			kelly_fraction, confidence, score, label,
			is_sweet_spot, is_trap_filtered, is_reality_rejected, is_low_coverage,
			layer_scores, rationale, created_at, last_seen_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(match_id, market, side)
		DO UPDATE SET last_seen_at = excluded.last_seen_at
	`)
	if err != nil {
		return fmt.Errorf("preparing pick insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range list {
		layers, err := json.Marshal(p.LayerScores)
		if err != nil {
			return fmt.Errorf("encoding layer scores: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			p.ID, p.MatchID, string(p.Market), p.Side,
			p.Odds, p.Probability, p.Edge,
			p.KellyFraction, p.Confidence, p.Score, p.Label,
			boolInt(p.SweetSpot), boolInt(p.TrapFiltered), boolInt(p.RealityRejected), boolInt(p.LowCoverage),
			string(layers), p.Rationale, p.CreatedAt, p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting pick %s/%s: %w", p.MatchID, p.Market, err)
		}
	}

	return tx.Commit()
}

// PicksForMatch returns the stored picks of one match, best score first.
func (d *DB) PicksForMatch(ctx context.Context, matchID string) ([]picks.QuantPick, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, match_id, market, side, odds, probability, edge,
		       kelly_fraction, confidence, score, label,
		       is_sweet_spot, is_trap_filtered, is_reality_rejected, is_low_coverage,
		       layer_scores, rationale, created_at
		FROM picks WHERE match_id = ?
		ORDER BY score DESC, edge DESC, market ASC
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("querying picks: %w", err)
	}
	defer rows.Close()

	var out []picks.QuantPick
	for rows.Next() {
		p, err := scanPick(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPick(rows *sql.Rows) (picks.QuantPick, error) {
	var p picks.QuantPick
	var mkt, layers string
	var sweet, trap, reality, lowCov int
	err := rows.Scan(
		&p.ID, &p.MatchID, &mkt, &p.Side, &p.Odds, &p.Probability, &p.Edge,
		&p.KellyFraction, &p.Confidence, &p.Score, &p.Label,
		&sweet, &trap, &reality, &lowCov,
		&layers, &p.Rationale, &p.CreatedAt,
	)
	if err != nil {
		return p, fmt.Errorf("scanning pick: %w", err)
	}
	p.Market = market.Market(mkt)
	p.SweetSpot = sweet != 0
	p.TrapFiltered = trap != 0
	p.RealityRejected = reality != 0
	p.LowCoverage = lowCov != 0
	if err := json.Unmarshal([]byte(layers), &p.LayerScores); err != nil {
		return p, fmt.Errorf("decoding layer scores: %w", err)
	}
	return p, nil
}

// Match is one fixture row, written by the result collectors.
type Match struct {
	MatchID     string
	HomeTeam    string
	AwayTeam    string
	Competition string
	Referee     string
	KickoffTime time.Time
	HomeGoals   int
	AwayGoals   int
	Finished    bool
}

// UpsertMatch writes or refreshes a fixture row.
func (d *DB) UpsertMatch(ctx context.Context, m Match) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO matches (match_id, home_team, away_team, competition, referee, kickoff_time, home_goals, away_goals, finished)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(match_id) DO UPDATE SET
			home_goals = excluded.home_goals,
			away_goals = excluded.away_goals,
			finished = excluded.finished
	`, m.MatchID, m.HomeTeam, m.AwayTeam, m.Competition, m.Referee, m.KickoffTime,
		m.HomeGoals, m.AwayGoals, boolInt(m.Finished))
	if err != nil {
		return fmt.Errorf("upserting match %s: %w", m.MatchID, err)
	}
	return nil
}

// GetMatch loads one fixture; (nil, nil) when unknown.
func (d *DB) GetMatch(ctx context.Context, matchID string) (*Match, error) {
	var m Match
	var finished int
	var homeGoals, awayGoals sql.NullInt64
	err := d.db.QueryRowContext(ctx, `
		SELECT match_id, home_team, away_team, competition, referee, kickoff_time, home_goals, away_goals, finished
		FROM matches WHERE match_id = ?
	`, matchID).Scan(&m.MatchID, &m.HomeTeam, &m.AwayTeam, &m.Competition, &m.Referee,
		&m.KickoffTime, &homeGoals, &awayGoals, &finished)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying match %s: %w", matchID, err)
	}
	m.HomeGoals = int(homeGoals.Int64)
	m.AwayGoals = int(awayGoals.Int64)
	m.Finished = finished != 0
	return &m, nil
}

// FinishedMatches lists finished fixtures in kickoff order, oldest first.
func (d *DB) FinishedMatches(ctx context.Context) ([]Match, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT match_id, home_team, away_team, competition, referee, kickoff_time, home_goals, away_goals, finished
		FROM matches WHERE finished = 1
		ORDER BY kickoff_time ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying finished matches: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		var finished int
		var homeGoals, awayGoals sql.NullInt64
		if err := rows.Scan(&m.MatchID, &m.HomeTeam, &m.AwayTeam, &m.Competition, &m.Referee,
			&m.KickoffTime, &homeGoals, &awayGoals, &finished); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		m.HomeGoals = int(homeGoals.Int64)
		m.AwayGoals = int(awayGoals.Int64)
		m.Finished = finished != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddSnapshot records one bookmaker price observation.
func (d *DB) AddSnapshot(ctx context.Context, matchID, bookmaker string, m market.Market, price float64, collectedAt time.Time) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO odds_snapshots (match_id, bookmaker, market, side, price, collected_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, matchID, bookmaker, string(m), m.Side(), price, collectedAt)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}

// OpeningOdds returns the first observed price per market for a match.
func (d *DB) OpeningOdds(ctx context.Context, matchID string) (market.OddsMap, error) {
	return d.oddsAt(ctx, matchID, "ASC", time.Time{})
}

// OpeningOddsByBook returns the first observed price per market for every
// bookmaker that priced the match.
func (d *DB) OpeningOddsByBook(ctx context.Context, matchID string) (map[string]market.OddsMap, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT bookmaker, market, price FROM odds_snapshots
		WHERE match_id = ?
		ORDER BY collected_at ASC
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	out := make(map[string]market.OddsMap)
	for rows.Next() {
		var book, mkt string
		var price float64
		if err := rows.Scan(&book, &mkt, &price); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		odds, ok := out[book]
		if !ok {
			odds = make(market.OddsMap)
			out[book] = odds
		}
		m := market.Market(mkt)
		if _, seen := odds[m]; !seen {
			odds[m] = price
		}
	}
	return out, rows.Err()
}

// ClosingOdds returns, per market, the latest price observed strictly
// before kickoff.
func (d *DB) ClosingOdds(ctx context.Context, matchID string, kickoff time.Time) (market.OddsMap, error) {
	return d.oddsAt(ctx, matchID, "DESC", kickoff)
}

func (d *DB) oddsAt(ctx context.Context, matchID, order string, before time.Time) (market.OddsMap, error) {
	query := `
		SELECT market, price, collected_at FROM odds_snapshots
		WHERE match_id = ?`
	args := []any{matchID}
	if !before.IsZero() {
		query += ` AND collected_at < ?`
		args = append(args, before)
	}
	// Walk in time order and keep the first row seen per market: ASC
	// yields the opening snapshot, DESC the closing one.
	query += ` ORDER BY collected_at ` + order

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	odds := make(market.OddsMap)
	for rows.Next() {
		var mkt string
		var price float64
		var at time.Time
		if err := rows.Scan(&mkt, &price, &at); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		m := market.Market(mkt)
		if _, seen := odds[m]; !seen {
			odds[m] = price
		}
	}
	return odds, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

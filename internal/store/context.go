package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"footy-quant/internal/intel"
)

// The DB is the engine's intel.ContextSource. Every lookup resolves team
// names through the alias table, so collectors writing "Liverpool FC" and
// "Liverpool" land on the same row. Reads run outside any transaction, so
// a failed read cannot poison the next one.

// TeamIntel loads the intelligence row for a team, optionally scoped to a
// competition. Returns (nil, nil) when no row matches.
func (d *DB) TeamIntel(ctx context.Context, team, competition string) (*intel.TeamIntelligence, error) {
	clause, params := d.resolver.WhereClause("team_name", team)
	query := `
		SELECT team_name, competition, matches_analyzed,
		       home_goals_scored_avg, home_goals_conceded_avg,
		       away_goals_scored_avg, away_goals_conceded_avg,
		       xg_for_avg, xg_against_avg, clean_sheet_rate, btts_rate,
		       style, updated_at
		FROM team_intelligence WHERE ` + clause
	if competition != "" {
		query += ` AND competition = ?`
		params = append(params, competition)
	}
	query += ` ORDER BY updated_at DESC LIMIT 1`

	var ti intel.TeamIntelligence
	err := d.db.QueryRowContext(ctx, query, params...).Scan(
		&ti.TeamName, &ti.Competition, &ti.MatchesAnalyzed,
		&ti.HomeGoalsScoredAvg, &ti.HomeGoalsConcededAvg,
		&ti.AwayGoalsScoredAvg, &ti.AwayGoalsConcededAvg,
		&ti.XGForAvg, &ti.XGAgainstAvg, &ti.CleanSheetRate, &ti.BTTSRate,
		&ti.Style, &ti.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying team intelligence for %s: %w", team, err)
	}
	return &ti, nil
}

// TeamClass loads the tier classification for a team.
func (d *DB) TeamClass(ctx context.Context, team, competition string) (*intel.TeamClass, error) {
	clause, params := d.resolver.WhereClause("team_name", team)
	query := `
		SELECT team_name, competition, tier, home_fortress_factor, away_weakness_factor, star_players
		FROM team_class WHERE ` + clause
	if competition != "" {
		query += ` AND competition = ?`
		params = append(params, competition)
	}
	query += ` LIMIT 1`

	var tc intel.TeamClass
	var stars string
	err := d.db.QueryRowContext(ctx, query, params...).Scan(
		&tc.TeamName, &tc.Competition, &tc.Tier,
		&tc.HomeFortressFactor, &tc.AwayWeaknessFactor, &stars,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying team class for %s: %w", team, err)
	}
	if stars != "" {
		tc.StarPlayers = strings.Split(stars, ",")
	}
	return &tc, nil
}

// TeamMomentum loads the rolling form row for a team.
func (d *DB) TeamMomentum(ctx context.Context, team string) (*intel.TeamMomentum, error) {
	clause, params := d.resolver.WhereClause("team_name", team)
	var tm intel.TeamMomentum
	err := d.db.QueryRowContext(ctx, `
		SELECT team_name, score, form_string, points_last_5
		FROM team_momentum WHERE `+clause+` LIMIT 1`, params...).Scan(
		&tm.TeamName, &tm.Score, &tm.FormString, &tm.PointsLast5,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying momentum for %s: %w", team, err)
	}
	return &tm, nil
}

// HeadToHead loads the meeting history of a pair, trying both orderings.
func (d *DB) HeadToHead(ctx context.Context, teamA, teamB string) (*intel.HeadToHead, error) {
	clauseA, paramsA := d.resolver.WhereClause("team_a", teamA)
	clauseB, paramsB := d.resolver.WhereClause("team_b", teamB)
	clauseRA, paramsRA := d.resolver.WhereClause("team_a", teamB)
	clauseRB, paramsRB := d.resolver.WhereClause("team_b", teamA)

	query := fmt.Sprintf(`
		SELECT team_a, team_b, total_matches, btts_pct, over25_pct, avg_goals
		FROM head_to_head
		WHERE (%s AND %s) OR (%s AND %s)
		ORDER BY total_matches DESC LIMIT 1`,
		clauseA, clauseB, clauseRA, clauseRB)

	params := append(paramsA, paramsB...)
	params = append(params, paramsRA...)
	params = append(params, paramsRB...)

	var h intel.HeadToHead
	err := d.db.QueryRowContext(ctx, query, params...).Scan(
		&h.TeamA, &h.TeamB, &h.TotalMatches, &h.BTTSPct, &h.Over25Pct, &h.AvgGoals,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying h2h %s vs %s: %w", teamA, teamB, err)
	}
	return &h, nil
}

// Referee loads the referee profile.
func (d *DB) Referee(ctx context.Context, name string) (*intel.RefereeIntelligence, error) {
	clause, params := d.resolver.WhereClause("referee_name", name)
	var r intel.RefereeIntelligence
	err := d.db.QueryRowContext(ctx, `
		SELECT referee_name, avg_cards, avg_goals_per_game, goals_modifier, tendency
		FROM referee_intelligence WHERE `+clause+` LIMIT 1`, params...).Scan(
		&r.Name, &r.AvgCards, &r.AvgGoalsPerGame, &r.GoalsModifier, &r.Tendency,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying referee %s: %w", name, err)
	}
	return &r, nil
}

// TacticalEntry loads the matrix cell for a style pairing, trying both
// orderings.
func (d *DB) TacticalEntry(ctx context.Context, styleA, styleB intel.Style) (*intel.TacticalEntry, error) {
	var e intel.TacticalEntry
	var a, b string
	err := d.db.QueryRowContext(ctx, `
		SELECT style_a, style_b, btts_probability, over25_probability,
		       avg_goals_total, sample_size, confidence_level
		FROM tactical_matrix
		WHERE (style_a = ? AND style_b = ?) OR (style_a = ? AND style_b = ?)
		ORDER BY sample_size DESC LIMIT 1
	`, string(styleA), string(styleB), string(styleB), string(styleA)).Scan(
		&a, &b, &e.BTTSProbability, &e.Over25Prob,
		&e.AvgGoalsTotal, &e.SampleSize, &e.ConfidenceLevel,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying tactical matrix %s/%s: %w", styleA, styleB, err)
	}
	e.StyleA = intel.Style(a)
	e.StyleB = intel.Style(b)
	return &e, nil
}

// MarketTraps loads the stored trap patterns for a team.
func (d *DB) MarketTraps(ctx context.Context, team string) ([]intel.MarketTrap, error) {
	clause, params := d.resolver.WhereClause("team_name", team)
	rows, err := d.db.QueryContext(ctx, `
		SELECT team_name, market_group, direction, note
		FROM market_traps WHERE `+clause, params...)
	if err != nil {
		return nil, fmt.Errorf("querying traps for %s: %w", team, err)
	}
	defer rows.Close()

	var out []intel.MarketTrap
	for rows.Next() {
		var t intel.MarketTrap
		if err := rows.Scan(&t.TeamName, &t.MarketGroup, &t.Direction, &t.Note); err != nil {
			return nil, fmt.Errorf("scanning trap: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Collector-side writers. The engine itself never calls these; they exist
// for the ingestion jobs and for seeding test fixtures.

// UpsertTeamIntel writes or replaces a team intelligence row.
func (d *DB) UpsertTeamIntel(ctx context.Context, ti intel.TeamIntelligence) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO team_intelligence (
			team_name, competition, matches_analyzed,
			home_goals_scored_avg, home_goals_conceded_avg,
			away_goals_scored_avg, away_goals_conceded_avg,
			xg_for_avg, xg_against_avg, clean_sheet_rate, btts_rate, style, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(team_name, competition) DO UPDATE SET
			matches_analyzed = excluded.matches_analyzed,
			home_goals_scored_avg = excluded.home_goals_scored_avg,
			home_goals_conceded_avg = excluded.home_goals_conceded_avg,
			away_goals_scored_avg = excluded.away_goals_scored_avg,
			away_goals_conceded_avg = excluded.away_goals_conceded_avg,
			xg_for_avg = excluded.xg_for_avg,
			xg_against_avg = excluded.xg_against_avg,
			clean_sheet_rate = excluded.clean_sheet_rate,
			btts_rate = excluded.btts_rate,
			style = excluded.style,
			updated_at = excluded.updated_at
	`, ti.TeamName, ti.Competition, ti.MatchesAnalyzed,
		ti.HomeGoalsScoredAvg, ti.HomeGoalsConcededAvg,
		ti.AwayGoalsScoredAvg, ti.AwayGoalsConcededAvg,
		ti.XGForAvg, ti.XGAgainstAvg, ti.CleanSheetRate, ti.BTTSRate, ti.Style, ti.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting intelligence for %s: %w", ti.TeamName, err)
	}
	return nil
}

// UpsertTeamClass writes or replaces a team class row.
func (d *DB) UpsertTeamClass(ctx context.Context, tc intel.TeamClass) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO team_class (team_name, competition, tier, home_fortress_factor, away_weakness_factor, star_players)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(team_name, competition) DO UPDATE SET
			tier = excluded.tier,
			home_fortress_factor = excluded.home_fortress_factor,
			away_weakness_factor = excluded.away_weakness_factor,
			star_players = excluded.star_players
	`, tc.TeamName, tc.Competition, tc.Tier, tc.HomeFortressFactor, tc.AwayWeaknessFactor,
		strings.Join(tc.StarPlayers, ","))
	if err != nil {
		return fmt.Errorf("upserting class for %s: %w", tc.TeamName, err)
	}
	return nil
}

// UpsertTeamMomentum writes or replaces a momentum row.
func (d *DB) UpsertTeamMomentum(ctx context.Context, tm intel.TeamMomentum) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO team_momentum (team_name, score, form_string, points_last_5)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(team_name) DO UPDATE SET
			score = excluded.score,
			form_string = excluded.form_string,
			points_last_5 = excluded.points_last_5
	`, tm.TeamName, tm.Score, tm.FormString, tm.PointsLast5)
	if err != nil {
		return fmt.Errorf("upserting momentum for %s: %w", tm.TeamName, err)
	}
	return nil
}

// UpsertHeadToHead writes or replaces a head-to-head row.
func (d *DB) UpsertHeadToHead(ctx context.Context, h intel.HeadToHead) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO head_to_head (team_a, team_b, total_matches, btts_pct, over25_pct, avg_goals)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(team_a, team_b) DO UPDATE SET
			total_matches = excluded.total_matches,
			btts_pct = excluded.btts_pct,
			over25_pct = excluded.over25_pct,
			avg_goals = excluded.avg_goals
	`, h.TeamA, h.TeamB, h.TotalMatches, h.BTTSPct, h.Over25Pct, h.AvgGoals)
	if err != nil {
		return fmt.Errorf("upserting h2h %s vs %s: %w", h.TeamA, h.TeamB, err)
	}
	return nil
}

// UpsertTacticalEntry writes or replaces a matrix cell.
func (d *DB) UpsertTacticalEntry(ctx context.Context, e intel.TacticalEntry) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO tactical_matrix (style_a, style_b, btts_probability, over25_probability, avg_goals_total, sample_size, confidence_level)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(style_a, style_b) DO UPDATE SET
			btts_probability = excluded.btts_probability,
			over25_probability = excluded.over25_probability,
			avg_goals_total = excluded.avg_goals_total,
			sample_size = excluded.sample_size,
			confidence_level = excluded.confidence_level
	`, string(e.StyleA), string(e.StyleB), e.BTTSProbability, e.Over25Prob,
		e.AvgGoalsTotal, e.SampleSize, e.ConfidenceLevel)
	if err != nil {
		return fmt.Errorf("upserting tactical entry %s/%s: %w", e.StyleA, e.StyleB, err)
	}
	return nil
}

// UpsertReferee writes or replaces a referee row.
func (d *DB) UpsertReferee(ctx context.Context, r intel.RefereeIntelligence) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO referee_intelligence (referee_name, avg_cards, avg_goals_per_game, goals_modifier, tendency)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(referee_name) DO UPDATE SET
			avg_cards = excluded.avg_cards,
			avg_goals_per_game = excluded.avg_goals_per_game,
			goals_modifier = excluded.goals_modifier,
			tendency = excluded.tendency
	`, r.Name, r.AvgCards, r.AvgGoalsPerGame, r.GoalsModifier, r.Tendency)
	if err != nil {
		return fmt.Errorf("upserting referee %s: %w", r.Name, err)
	}
	return nil
}

// UpsertTrap writes or replaces a trap pattern.
func (d *DB) UpsertTrap(ctx context.Context, t intel.MarketTrap) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO market_traps (team_name, market_group, direction, note)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(team_name, market_group, direction) DO UPDATE SET note = excluded.note
	`, t.TeamName, t.MarketGroup, t.Direction, t.Note)
	if err != nil {
		return fmt.Errorf("upserting trap for %s: %w", t.TeamName, err)
	}
	return nil
}

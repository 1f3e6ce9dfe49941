package intel

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ContextSource is the storage surface the prefetcher reads from. Every
// method returns (nil, nil) when the entity simply does not exist; an error
// means the read itself failed. Implementations must leave the connection
// usable after a failed read (rollback before the next lookup).
type ContextSource interface {
	TeamIntel(ctx context.Context, team, competition string) (*TeamIntelligence, error)
	TeamClass(ctx context.Context, team, competition string) (*TeamClass, error)
	TeamMomentum(ctx context.Context, team string) (*TeamMomentum, error)
	HeadToHead(ctx context.Context, teamA, teamB string) (*HeadToHead, error)
	Referee(ctx context.Context, name string) (*RefereeIntelligence, error)
	TacticalEntry(ctx context.Context, styleA, styleB Style) (*TacticalEntry, error)
	MarketTraps(ctx context.Context, team string) ([]MarketTrap, error)
}

// ErrFatalSource marks a prefetch aborted by consecutive storage failures.
var ErrFatalSource = fmt.Errorf("context source failing repeatedly")

// Prefetcher performs the single batched read of all context entities for
// one match. Each entity type costs at most one read (plus the
// competition-filter fallback); a missing entity surfaces as nil, never as
// an error, and one failed read does not drop the remaining entities.
type Prefetcher struct {
	src               ContextSource
	competitionFilter bool

	consecutiveFails int
}

// NewPrefetcher creates a prefetcher over src. With competitionFilter set,
// team intelligence and class are first looked up scoped to the match
// competition, falling back to the unscoped row.
func NewPrefetcher(src ContextSource, competitionFilter bool) *Prefetcher {
	return &Prefetcher{src: src, competitionFilter: competitionFilter}
}

// Fetch assembles the MatchContext for one fixture. The returned error list
// holds per-entity read failures (the context is still usable); the final
// error is non-nil only when the source failed twice in a row, which aborts
// the match.
func (p *Prefetcher) Fetch(ctx context.Context, matchID, home, away, competition, referee string, kickoff time.Time) (*MatchContext, []error, error) {
	mc := &MatchContext{
		MatchID:     matchID,
		HomeTeam:    home,
		AwayTeam:    away,
		Competition: competition,
		KickoffTime: kickoff,
	}
	p.consecutiveFails = 0
	var errs []error

	record := func(entity string, err error) error {
		if err == nil {
			p.consecutiveFails = 0
			return nil
		}
		p.consecutiveFails++
		errs = append(errs, fmt.Errorf("%s: %w", entity, err))
		slog.Warn("context read failed", "entity", entity, "match", matchID, "err", err)
		if p.consecutiveFails >= 2 {
			return ErrFatalSource
		}
		return nil
	}

	var fatal error

	mc.HomeIntel, fatal = p.fetchIntel(ctx, home, competition, "home_intel", record)
	if fatal != nil {
		return mc, errs, fatal
	}
	mc.AwayIntel, fatal = p.fetchIntel(ctx, away, competition, "away_intel", record)
	if fatal != nil {
		return mc, errs, fatal
	}

	if cls, err := p.classLookup(ctx, home, competition); record("home_class", err) != nil {
		return mc, errs, ErrFatalSource
	} else if err == nil {
		mc.HomeClass = cls
	}
	if cls, err := p.classLookup(ctx, away, competition); record("away_class", err) != nil {
		return mc, errs, ErrFatalSource
	} else if err == nil {
		mc.AwayClass = cls
	}

	if mom, err := p.src.TeamMomentum(ctx, home); record("home_momentum", err) != nil {
		return mc, errs, ErrFatalSource
	} else if err == nil {
		mc.HomeMomentum = mom
	}
	if mom, err := p.src.TeamMomentum(ctx, away); record("away_momentum", err) != nil {
		return mc, errs, ErrFatalSource
	} else if err == nil {
		mc.AwayMomentum = mom
	}

	if h2h, err := p.src.HeadToHead(ctx, home, away); record("h2h", err) != nil {
		return mc, errs, ErrFatalSource
	} else if err == nil {
		mc.H2H = h2h
	}

	if referee != "" {
		if ref, err := p.src.Referee(ctx, referee); record("referee", err) != nil {
			return mc, errs, ErrFatalSource
		} else if err == nil {
			mc.Referee = ref
		}
	}

	if entry, err := p.src.TacticalEntry(ctx, mc.HomeStyle(), mc.AwayStyle()); record("tactical", err) != nil {
		return mc, errs, ErrFatalSource
	} else if err == nil {
		mc.Tactical = entry
	}

	traps, err := p.trapLookup(ctx, home, away)
	if record("traps", err) != nil {
		return mc, errs, ErrFatalSource
	}
	if err == nil {
		mc.Traps = traps
	}

	// Inconsistent rows are demoted to missing rather than trusted blindly.
	if mc.HomeIntel != nil && !mc.HomeIntel.Trusted() {
		slog.Warn("home intelligence row inconsistent, ignoring", "team", home)
		mc.HomeIntel = nil
	}
	if mc.AwayIntel != nil && !mc.AwayIntel.Trusted() {
		slog.Warn("away intelligence row inconsistent, ignoring", "team", away)
		mc.AwayIntel = nil
	}

	return mc, errs, nil
}

func (p *Prefetcher) fetchIntel(ctx context.Context, team, competition, entity string, record func(string, error) error) (*TeamIntelligence, error) {
	ti, err := p.intelLookup(ctx, team, competition)
	if record(entity, err) != nil {
		return nil, ErrFatalSource
	}
	if err != nil {
		return nil, nil
	}
	return ti, nil
}

// intelLookup tries the competition-scoped row first, then the unscoped one.
func (p *Prefetcher) intelLookup(ctx context.Context, team, competition string) (*TeamIntelligence, error) {
	if p.competitionFilter && competition != "" {
		ti, err := p.src.TeamIntel(ctx, team, competition)
		if err != nil {
			return nil, err
		}
		if ti != nil {
			return ti, nil
		}
	}
	return p.src.TeamIntel(ctx, team, "")
}

func (p *Prefetcher) classLookup(ctx context.Context, team, competition string) (*TeamClass, error) {
	if p.competitionFilter && competition != "" {
		tc, err := p.src.TeamClass(ctx, team, competition)
		if err != nil {
			return nil, err
		}
		if tc != nil {
			return tc, nil
		}
	}
	return p.src.TeamClass(ctx, team, "")
}

// trapLookup merges trap rows for both sides; the pick builder filters by
// market and direction.
func (p *Prefetcher) trapLookup(ctx context.Context, home, away string) ([]MarketTrap, error) {
	homeTraps, err := p.src.MarketTraps(ctx, home)
	if err != nil {
		return nil, err
	}
	awayTraps, err := p.src.MarketTraps(ctx, away)
	if err != nil {
		return nil, err
	}
	return append(homeTraps, awayTraps...), nil
}

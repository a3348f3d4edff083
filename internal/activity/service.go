package activity

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/angelmondragon/guildscore-backend/internal/scores"
	"github.com/angelmondragon/guildscore-backend/pkg/config"
	"github.com/angelmondragon/guildscore-backend/pkg/logger"
	"github.com/angelmondragon/guildscore-backend/pkg/metrics"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Event names used for logging and metrics.
const (
	EventMemberJoined = "member_joined"
	EventMemberLeft   = "member_left"
	EventMessage      = "message"
	EventGuildJoined  = "guild_joined"
	EventGuildLeft    = "guild_left"
	EventSync         = "sync"
)

// Skip reasons reported by MessageCreated.
const (
	SkipBot      = "bot"
	SkipCooldown = "cooldown"
)

// Store is the subset of the score store the tracker drives.
type Store interface {
	Activate(ctx context.Context, memberID, guildID int64) (scores.ScoreRecord, error)
	SetActive(ctx context.Context, memberID, guildID int64, active bool) (scores.ScoreRecord, bool, error)
	IncrementScore(ctx context.Context, memberID, guildID, delta int64) (int64, error)
	DeactivateGuild(ctx context.Context, guildID int64) (int64, error)
	ListActive(ctx context.Context, guildID int64, opts scores.ListOptions) iter.Seq2[scores.ScoreRecord, error]
}

// Cooldown throttles message awards per member.
type Cooldown interface {
	Acquire(ctx context.Context, guildID, memberID int64, ttl time.Duration) (bool, error)
	Release(ctx context.Context, guildID, memberID int64) error
}

// MessageResult describes what a message event did to the author's score.
type MessageResult struct {
	Awarded int64  `json:"awarded"`
	Score   int64  `json:"score,omitempty"`
	Skipped string `json:"skipped,omitempty"`
}

// SyncResult summarises a bulk membership update.
type SyncResult struct {
	Ensured     int `json:"ensured"`
	Deactivated int `json:"deactivated"`
}

// ServiceParams wires the tracker.
type ServiceParams struct {
	Store    Store
	Cooldown Cooldown
	Logger   *logger.Logger
	Metrics  *metrics.ActivityMetrics
	Config   config.ActivityConfig
}

// Service translates community events into score store calls.
type Service struct {
	store    Store
	cooldown Cooldown
	logg     *logger.Logger
	metrics  *metrics.ActivityMetrics
	cfg      config.ActivityConfig
}

// NewService validates the params and builds the tracker. Cooldown and
// Metrics are optional.
func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("score store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg := params.Config
	if cfg.SyncConcurrency <= 0 {
		cfg.SyncConcurrency = 1
	}
	return &Service{
		store:    params.Store,
		cooldown: params.Cooldown,
		logg:     params.Logger,
		metrics:  params.Metrics,
		cfg:      cfg,
	}, nil
}

func (s *Service) track(event string, err error) {
	if err != nil {
		s.metrics.IncEvent(event, "failed")
		return
	}
	s.metrics.IncEvent(event, "applied")
}

// MemberJoined makes sure a human member has an active record, keeping any
// score from an earlier stay. Bots are ignored.
func (s *Service) MemberJoined(ctx context.Context, guildID, memberID int64, bot bool) (rec scores.ScoreRecord, applied bool, err error) {
	if bot {
		s.metrics.IncEvent(EventMemberJoined, "skipped")
		return scores.ScoreRecord{}, false, nil
	}
	defer func() { s.track(EventMemberJoined, err) }()

	rec, err = s.store.Activate(ctx, memberID, guildID)
	if err != nil {
		return scores.ScoreRecord{}, false, err
	}
	s.logg.Debug(s.logg.WithMemberID(s.logg.WithGuildID(ctx, guildID), memberID), "member activated")
	return rec, true, nil
}

// MemberLeft deactivates the member. A member without a record is not an error.
func (s *Service) MemberLeft(ctx context.Context, guildID, memberID int64) (found bool, err error) {
	defer func() { s.track(EventMemberLeft, err) }()

	_, found, err = s.store.SetActive(ctx, memberID, guildID, false)
	if err != nil {
		return false, err
	}
	s.logg.Debug(s.logg.WithMemberID(s.logg.WithGuildID(ctx, guildID), memberID), "member deactivated")
	return found, nil
}

// MessageCreated awards the configured points to the message author unless
// the author is a bot or still cooling down.
func (s *Service) MessageCreated(ctx context.Context, guildID, memberID int64, bot bool) (res MessageResult, err error) {
	if bot {
		s.metrics.IncEvent(EventMessage, "skipped")
		return MessageResult{Skipped: SkipBot}, nil
	}

	claimed := false
	if s.cooldown != nil && s.cfg.MessageCooldown > 0 {
		ok, cdErr := s.cooldown.Acquire(ctx, guildID, memberID, s.cfg.MessageCooldown)
		switch {
		case cdErr != nil:
			// award anyway; the cooldown is a soft limit
			s.logg.Warn(s.logg.WithField(s.logg.WithGuildID(ctx, guildID), "error", cdErr.Error()), "message cooldown unavailable")
		case !ok:
			s.metrics.IncEvent(EventMessage, "skipped")
			return MessageResult{Skipped: SkipCooldown}, nil
		default:
			claimed = true
		}
	}
	defer func() { s.track(EventMessage, err) }()

	score, err := s.store.IncrementScore(ctx, memberID, guildID, s.cfg.MessageAward)
	if err != nil {
		if claimed {
			err = multierr.Append(err, s.cooldown.Release(ctx, guildID, memberID))
		}
		return MessageResult{}, err
	}
	s.metrics.AddAwarded(s.cfg.MessageAward)
	return MessageResult{Awarded: s.cfg.MessageAward, Score: score}, nil
}

// GuildJoined ensures an active record for every listed member.
func (s *Service) GuildJoined(ctx context.Context, guildID int64, members []int64) (res SyncResult, err error) {
	defer func() { s.track(EventGuildJoined, err) }()

	ctx = s.logg.WithGuildID(ctx, guildID)
	res.Ensured, err = s.ensureAll(ctx, guildID, dedupe(members))
	s.logg.Info(s.logg.WithField(ctx, "ensured", res.Ensured), "guild members activated")
	return res, err
}

// GuildLeft deactivates every record of the guild.
func (s *Service) GuildLeft(ctx context.Context, guildID int64) (changed int64, err error) {
	defer func() { s.track(EventGuildLeft, err) }()

	changed, err = s.store.DeactivateGuild(ctx, guildID)
	if err != nil {
		return 0, err
	}
	s.logg.Info(s.logg.WithField(s.logg.WithGuildID(ctx, guildID), "deactivated", changed), "guild left")
	return changed, nil
}

// SyncGuild reconciles stored records with the guild's current membership:
// present members are activated, active records of absent members are
// deactivated. Per-member failures are collected and returned together.
func (s *Service) SyncGuild(ctx context.Context, guildID int64, present []int64) (res SyncResult, err error) {
	defer func() { s.track(EventSync, err) }()

	ctx = s.logg.WithGuildID(ctx, guildID)
	members := dedupe(present)

	ensured, ensureErr := s.ensureAll(ctx, guildID, members)
	res.Ensured = ensured

	var absent []int64
	for rec, listErr := range s.store.ListActive(ctx, guildID, scores.ListOptions{}) {
		if listErr != nil {
			return res, multierr.Append(ensureErr, listErr)
		}
		if _, ok := slices.BinarySearch(members, rec.MemberID); !ok {
			absent = append(absent, rec.MemberID)
		}
	}

	deactivated, deactivateErr := s.forEach(ctx, absent, func(ctx context.Context, memberID int64) error {
		_, _, err := s.store.SetActive(ctx, memberID, guildID, false)
		return err
	})
	res.Deactivated = deactivated

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"ensured":     res.Ensured,
		"deactivated": res.Deactivated,
	}), "guild members reconciled")
	return res, multierr.Combine(ensureErr, deactivateErr)
}

func (s *Service) ensureAll(ctx context.Context, guildID int64, members []int64) (int, error) {
	return s.forEach(ctx, members, func(ctx context.Context, memberID int64) error {
		_, err := s.store.Activate(ctx, memberID, guildID)
		return err
	})
}

// forEach runs fn for every member with bounded concurrency. It does not stop
// at the first failure; it returns the success count and all errors.
func (s *Service) forEach(ctx context.Context, members []int64, fn func(context.Context, int64) error) (int, error) {
	var (
		mu   sync.Mutex
		errs error
		done int
	)
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.SyncConcurrency)
	for _, memberID := range members {
		g.Go(func() error {
			err := fn(ctx, memberID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("member %d: %w", memberID, err))
				return nil
			}
			done++
			return nil
		})
	}
	_ = g.Wait()
	return done, errs
}

// dedupe returns the ids sorted with duplicates removed.
func dedupe(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

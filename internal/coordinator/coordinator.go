// Package coordinator drives sessions through their lifecycle on a cron
// schedule, acting as the session operator.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/distrubuted-game-mechanic/round-engine/internal/engine"
	"github.com/distrubuted-game-mechanic/round-engine/internal/oracle"
	"github.com/distrubuted-game-mechanic/round-engine/internal/types"
)

// PriceFeed supplies raw price observations.
type PriceFeed interface {
	Observe(ctx context.Context, asset oracle.Asset) (oracle.Observation, error)
}

// Config holds the operator identity and schedules.
type Config struct {
	Operator string
	Schedule string // tick schedule, cron spec with seconds

	// Scheduled game creation, disabled when CreateSchedule is empty
	CreateSchedule string
	GameType       types.GameType
	EntryFee       uint64
	StartDelay     time.Duration
}

// Coordinator runs the operator saga for every tracked session.
type Coordinator struct {
	engine    *engine.Engine
	feed      PriceFeed
	validator *oracle.Validator
	resolver  OutcomeResolver
	ranker    Ranker
	cfg       Config
	logger    *zap.Logger

	mu      sync.Mutex
	tracked map[string]struct{}

	cron *cron.Cron
	now  func() time.Time
}

// New creates a coordinator. A nil resolver or ranker falls back to
// PriceOutcomeResolver and ScoreRanker.
func New(eng *engine.Engine, feed PriceFeed, validator *oracle.Validator, resolver OutcomeResolver, ranker Ranker, cfg Config, logger *zap.Logger) *Coordinator {
	if resolver == nil {
		resolver = NewPriceOutcomeResolver()
	}
	if ranker == nil {
		ranker = ScoreRanker{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		engine:    eng,
		feed:      feed,
		validator: validator,
		resolver:  resolver,
		ranker:    ranker,
		cfg:       cfg,
		logger:    logger,
		tracked:   make(map[string]struct{}),
		now:       time.Now,
	}
}

// Operator returns the caller identity the coordinator acts as.
func (c *Coordinator) Operator() string {
	return c.cfg.Operator
}

// Track adds a session to the saga.
func (c *Coordinator) Track(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracked[sessionID] = struct{}{}
}

// Untrack removes a session from the saga.
func (c *Coordinator) Untrack(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tracked, sessionID)
}

// Tracked lists the tracked sessions in id order.
func (c *Coordinator) Tracked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.tracked))
	for id := range c.tracked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Tick advances every tracked session by at most one saga step. Finished
// sessions are untracked.
func (c *Coordinator) Tick(ctx context.Context, now time.Time) {
	for _, id := range c.Tracked() {
		done, err := c.Step(ctx, id, now)
		if err != nil {
			c.logger.Warn("Coordinator step failed",
				zap.String("session_id", id),
				zap.Error(err),
			)
		}
		if done {
			c.Untrack(id)
			c.logger.Info("Session untracked", zap.String("session_id", id))
		}
	}
}

// Step performs the next due operator action for one session and reports
// whether the session needs no further attention.
func (c *Coordinator) Step(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	s, err := c.engine.Session(ctx, sessionID)
	if err != nil {
		return errors.Is(err, engine.ErrNotFound), err
	}

	switch s.Status {
	case types.StatusPending:
		return c.begin(ctx, s, now)
	case types.StatusActive:
		return c.play(ctx, s, now)
	case types.StatusCompleted:
		return c.settle(ctx, s, now)
	}
	return true, nil
}

// begin starts a session once its start time has passed, or cancels it when
// too few players joined.
func (c *Coordinator) begin(ctx context.Context, s *types.GameSession, now time.Time) (bool, error) {
	if !now.After(s.StartTime) {
		return false, nil
	}

	if s.TotalPlayers < s.MinPlayers {
		if _, err := c.engine.Cancel(ctx, c.cfg.Operator, s.ID, now); err != nil {
			return false, err
		}
		c.logger.Info("Session cancelled for lack of players",
			zap.String("session_id", s.ID),
			zap.Int("total_players", s.TotalPlayers),
			zap.Int("min_players", s.MinPlayers),
		)
		return true, nil
	}

	prices, err := c.snapshot(ctx, s, 1, oracle.PhaseStart, now)
	if err != nil {
		return false, err
	}
	if _, err := c.engine.Start(ctx, c.cfg.Operator, s.ID, prices, now); err != nil {
		return false, err
	}
	c.logger.Info("Session started by coordinator", zap.String("session_id", s.ID))
	return false, nil
}

// play records the current round's outcome after it closes, evaluates
// pending predictions and opens the next round once the gap has elapsed.
func (c *Coordinator) play(ctx context.Context, s *types.GameSession, now time.Time) (bool, error) {
	rules := c.engine.Rules()
	n := s.CurrentRound

	r, err := c.engine.Round(ctx, s.ID, n)
	if err != nil {
		return false, err
	}

	if r.CorrectAnswer == nil {
		if engine.PhaseAt(r.RoundEnd, rules.Lockout, now) != engine.PhaseClosed {
			return false, nil
		}
		if err := c.record(ctx, s, r, now); err != nil {
			return false, err
		}
	}

	if err := c.evaluatePending(ctx, s, n, now); err != nil {
		return false, err
	}

	if n < s.RoundCount {
		if !engine.NextRoundDue(r.RoundStart, rules.RoundGap, now) {
			return false, nil
		}
		prices, err := c.snapshot(ctx, s, n+1, oracle.PhaseStart, now)
		if err != nil {
			return false, err
		}
		if _, err := c.engine.Advance(ctx, c.cfg.Operator, s.ID, n+1, prices, now); err != nil {
			return false, err
		}
		c.logger.Info("Round advanced by coordinator",
			zap.String("session_id", s.ID),
			zap.Int("round", n+1),
		)
		return false, nil
	}

	return c.finish(ctx, s, now)
}

func (c *Coordinator) record(ctx context.Context, s *types.GameSession, r *types.RoundResult, now time.Time) error {
	end, err := c.snapshot(ctx, s, r.RoundNumber, oracle.PhaseEnd, now)
	if err != nil {
		return err
	}

	var previous *types.RoundResult
	if r.RoundNumber > 1 {
		previous, err = c.engine.Round(ctx, s.ID, r.RoundNumber-1)
		if err != nil {
			return err
		}
	}

	answer, err := c.resolver.Resolve(ctx, s, r, previous, end)
	if err != nil {
		return fmt.Errorf("failed to resolve round %d: %w", r.RoundNumber, err)
	}

	_, err = c.engine.RecordOutcome(ctx, c.cfg.Operator, s.ID, r.RoundNumber, end, answer, now)
	if err != nil && !errors.Is(err, engine.ErrDuplicateAction) {
		return err
	}
	return nil
}

// evaluatePending scores every unevaluated prediction of recorded rounds up to n.
func (c *Coordinator) evaluatePending(ctx context.Context, s *types.GameSession, n int, now time.Time) error {
	entries, err := c.engine.Entries(ctx, s.ID)
	if err != nil {
		return err
	}

	for round := 1; round <= n; round++ {
		r, err := c.engine.Round(ctx, s.ID, round)
		if err != nil {
			return err
		}
		if r.CorrectAnswer == nil {
			continue
		}
		for _, e := range entries {
			p := e.Prediction(round)
			if p == nil || p.Evaluated() {
				continue
			}
			_, err := c.engine.Evaluate(ctx, c.cfg.Operator, s.ID, e.Player, round, now)
			if err != nil && !errors.Is(err, engine.ErrDuplicateAction) {
				return err
			}
		}
	}
	return nil
}

// finish ranks every eligible player, completes the session once progress
// allows it and collects the platform fee.
func (c *Coordinator) finish(ctx context.Context, s *types.GameSession, now time.Time) (bool, error) {
	p, err := c.engine.Progress(ctx, s.ID)
	if err != nil {
		return false, err
	}
	if p.PendingEvaluations > 0 {
		return false, nil
	}

	entries, err := c.engine.Entries(ctx, s.ID)
	if err != nil {
		return false, err
	}
	for i, e := range c.ranker.Rank(entries) {
		if i+1 > math.MaxUint16 {
			break
		}
		if e.FinalRank != nil {
			continue
		}
		_, err := c.engine.FinalizeRank(ctx, c.cfg.Operator, s.ID, e.Player, uint16(i+1), now)
		if err != nil && !errors.Is(err, engine.ErrDuplicateAction) {
			return false, err
		}
	}

	p, err = c.engine.Progress(ctx, s.ID)
	if err != nil {
		return false, err
	}
	if !p.ReadyToComplete {
		return false, nil
	}

	completed, err := c.engine.Complete(ctx, c.cfg.Operator, s.ID, now)
	if err != nil {
		return false, err
	}
	c.logger.Info("Session completed by coordinator",
		zap.String("session_id", s.ID),
		zap.Int("ranked", p.Ranked),
	)
	return c.settle(ctx, completed, now)
}

func (c *Coordinator) settle(ctx context.Context, s *types.GameSession, now time.Time) (bool, error) {
	if s.PlatformFeeCollected {
		return true, nil
	}
	fee, err := c.engine.CollectPlatformFee(ctx, c.cfg.Operator, s.ID, now)
	if err != nil && !errors.Is(err, engine.ErrDuplicateAction) {
		return false, err
	}
	c.logger.Info("Platform fee settled",
		zap.String("session_id", s.ID),
		zap.Uint64("fee", fee),
	)
	return true, nil
}

// snapshot observes and validates every asset the session needs.
func (c *Coordinator) snapshot(ctx context.Context, s *types.GameSession, round int, phase oracle.Phase, now time.Time) (types.Prices, error) {
	assets := assetsFor(s)
	snapshots := make([]*oracle.Snapshot, 0, len(assets))
	for _, asset := range assets {
		obs, err := c.feed.Observe(ctx, asset)
		if err != nil {
			return types.Prices{}, fmt.Errorf("failed to observe %s: %w", asset, err)
		}
		snapshots = append(snapshots, c.validator.Snapshot(s.ID, round, phase, obs, now))
	}
	return oracle.Prices(snapshots...)
}

// assetsFor is the game's assets, widened to both when a comparative round
// needs them.
func assetsFor(s *types.GameSession) []oracle.Asset {
	assets := oracle.AssetsFor(s.GameType)
	if len(assets) == 2 {
		return assets
	}
	for _, t := range s.RoundTypes {
		if t == types.RoundComparative {
			return oracle.AssetsFor(types.GameBtcVsSol)
		}
	}
	return assets
}

// CreateScheduled creates and tracks a new session starting StartDelay from now.
func (c *Coordinator) CreateScheduled(ctx context.Context, now time.Time) (*types.GameSession, error) {
	s, err := c.engine.Create(ctx, c.cfg.Operator, engine.CreateParams{
		SessionID: "game_" + uuid.New().String(),
		GameType:  c.cfg.GameType,
		StartTime: now.Add(c.cfg.StartDelay),
		EntryFee:  c.cfg.EntryFee,
	}, now)
	if err != nil {
		return nil, err
	}
	c.Track(s.ID)
	return s, nil
}

// Start schedules the saga tick, and game creation when configured.
func (c *Coordinator) Start(ctx context.Context) error {
	log := cronLogger{c.logger.Sugar()}
	c.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)

	if _, err := c.cron.AddFunc(c.cfg.Schedule, func() {
		c.Tick(ctx, c.now())
	}); err != nil {
		return fmt.Errorf("invalid coordinator schedule: %w", err)
	}

	if c.cfg.CreateSchedule != "" {
		if _, err := c.cron.AddFunc(c.cfg.CreateSchedule, func() {
			s, err := c.CreateScheduled(ctx, c.now())
			if err != nil {
				c.logger.Error("Scheduled game creation failed", zap.Error(err))
				return
			}
			c.logger.Info("Scheduled game created",
				zap.String("session_id", s.ID),
				zap.Time("start_time", s.StartTime),
			)
		}); err != nil {
			return fmt.Errorf("invalid create schedule: %w", err)
		}
	}

	c.cron.Start()
	c.logger.Info("Coordinator started", zap.String("schedule", c.cfg.Schedule))
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (c *Coordinator) Stop() {
	if c.cron == nil {
		return
	}
	<-c.cron.Stop().Done()
	c.logger.Info("Coordinator stopped")
}

// cronLogger adapts zap to the cron logger interface
type cronLogger struct {
	*zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Errorw(msg, append(keysAndValues, "error", err)...)
}

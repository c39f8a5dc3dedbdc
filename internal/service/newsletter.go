// Package service orchestrates the weekly newsletter pipeline: dedup,
// authorize, fetch, analytics, commentary, snapshot, render, deliver, log.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"budgetdigest/internal/core"
	"budgetdigest/internal/llm"
	"budgetdigest/internal/log"
	"budgetdigest/internal/mail"
	"budgetdigest/internal/provider"
	"budgetdigest/internal/render"
	"budgetdigest/internal/storage"
)

// dedupWindow suppresses a second completed run within this span unless
// the caller forces one.
const dedupWindow = 6 * time.Hour

// snapshotHistoryLimit bounds how much history the trends engine loads.
const snapshotHistoryLimit = 60

// BudgetSource reads the raw budget from the provider.
type BudgetSource interface {
	FetchBudget(ctx context.Context, token, budgetID string, since time.Time) (core.RawBudget, error)
}

// TokenRefresher keeps the provider token alive.
type TokenRefresher interface {
	EnsureFresh(ctx context.Context, tok provider.Token) (provider.Token, bool, error)
}

// CommentaryGenerator produces the AI commentary for a prompt.
type CommentaryGenerator interface {
	Generate(ctx context.Context, prompt string) (llm.Result, error)
}

// Store is the persistence surface the pipeline needs.
type Store interface {
	GetSettings(ctx context.Context, userID string) (storage.UserSettings, error)
	SaveSettings(ctx context.Context, userID string, settings storage.UserSettings) error
	SaveSnapshot(ctx context.Context, snap core.Snapshot) error
	ListSnapshots(ctx context.Context, userID string, limit int) ([]core.Snapshot, error)
	AppendRunLog(ctx context.Context, run core.RunLog) error
	ListRuns(ctx context.Context, userID string, limit int) ([]core.RunLog, error)
	LastCompletedRun(ctx context.Context, userID string) (core.RunLog, bool, error)
}

// Config is the static configuration the pipeline carries.
type Config struct {
	PeriodMonths      int
	FrontendURL       string
	DefaultRecipients []string
}

type Newsletter struct {
	store    Store
	source   BudgetSource
	auth     TokenRefresher
	ai       CommentaryGenerator // nil disables AI commentary
	mailer   mail.Sender         // nil disables delivery
	cfg      Config
	logger   *log.Logger
	now      func() time.Time
}

func NewNewsletter(store Store, source BudgetSource, auth TokenRefresher, ai CommentaryGenerator, mailer mail.Sender, cfg Config, logger *log.Logger) *Newsletter {
	if cfg.PeriodMonths <= 0 {
		cfg.PeriodMonths = core.DefaultPeriodMonths
	}
	return &Newsletter{
		store:  store,
		source: source,
		auth:   auth,
		ai:     ai,
		mailer: mailer,
		cfg:    cfg,
		logger: logger.WithComponent(log.ComponentPipeline),
		now:    time.Now,
	}
}

// RunOptions control one pipeline invocation.
type RunOptions struct {
	UserID    string
	SkipAI    bool
	SkipEmail bool
	Force     bool // ignore the dedup window and the per-user enabled flag
}

// RunResult is the outcome the caller sees; the same data lands in the
// run log.
type RunResult struct {
	RunID      string         `json:"runId"`
	Status     core.RunStatus `json:"status"`
	SnapshotID string         `json:"snapshotId,omitempty"`
	EmailsSent int            `json:"emailsSent"`
	AITokens   int            `json:"aiTokens"`
	Errors     []string       `json:"errors,omitempty"`

	// Set only on skipped runs.
	Reason     string     `json:"reason,omitempty"`
	LastSentAt *time.Time `json:"lastSentAt,omitempty"`
}

// Run executes the full pipeline for one user. The run log is written for
// every outcome, including skips and failures.
func (s *Newsletter) Run(ctx context.Context, opts RunOptions) (RunResult, error) {
	startedAt := s.now()
	result := RunResult{RunID: uuid.NewString()}
	logger := s.logger.With(log.FieldRunID, result.RunID, log.FieldUserID, opts.UserID)

	var runErrs []string
	var lastErr error
	record := func(stage string, err error) {
		staged := core.NewStageError(stage, err)
		lastErr = staged
		runErrs = append(runErrs, staged.Error())
	}
	finish := func(status core.RunStatus) (RunResult, error) {
		result.Status = status
		result.Errors = runErrs
		runLog := core.RunLog{
			ID:         result.RunID,
			UserID:     opts.UserID,
			StartedAt:  startedAt,
			FinishedAt: s.now(),
			Status:     status,
			Errors:     runErrs,
			EmailsSent: result.EmailsSent,
			AITokens:   result.AITokens,
			SnapshotID: result.SnapshotID,
		}
		if err := s.store.AppendRunLog(ctx, runLog); err != nil {
			logger.ErrorContext(ctx, "run log write failed", "stage", core.StageLog, "error", err)
		}
		logger.InfoContext(ctx, "run finished",
			log.FieldRunStatus, string(status),
			log.FieldEmailsSent, result.EmailsSent,
			log.FieldAITokens, result.AITokens)
		if status == core.RunFailed {
			// Wrap rather than stringify so callers can match sentinels
			// such as core.ErrProviderUnavailable for retry decisions.
			return result, fmt.Errorf("run %s failed: %w", result.RunID, lastErr)
		}
		return result, nil
	}

	// Dedup: one newsletter per window.
	if !opts.Force {
		if last, ok, err := s.store.LastCompletedRun(ctx, opts.UserID); err != nil {
			record(core.StageDedup, err)
		} else if ok && startedAt.Sub(last.StartedAt) < dedupWindow {
			logger.InfoContext(ctx, "run skipped, newsletter already sent recently",
				"previous_run_id", last.ID)
			result.Reason = "already_sent_recently"
			lastSent := last.FinishedAt
			result.LastSentAt = &lastSent
			return finish(core.RunSkipped)
		}
	}

	settings, snapshots, err := s.loadState(ctx, opts.UserID)
	if err != nil {
		record(core.StageAuthorize, err)
		return finish(core.RunFailed)
	}
	if !settings.Newsletter.Enabled && !opts.Force {
		logger.InfoContext(ctx, "run skipped, newsletter disabled for user")
		result.Reason = "newsletter_disabled"
		return finish(core.RunSkipped)
	}

	// Authorize: refresh the provider token, persisting rotations.
	token, changed, err := s.auth.EnsureFresh(ctx, provider.Token{
		AccessToken:  settings.Provider.AccessToken,
		RefreshToken: settings.Provider.RefreshToken,
		Expiry:       settings.Provider.Expiry,
	})
	if err != nil {
		record(core.StageAuthorize, err)
		return finish(core.RunFailed)
	}
	if changed {
		settings.Provider.AccessToken = token.AccessToken
		settings.Provider.RefreshToken = token.RefreshToken
		settings.Provider.Expiry = token.Expiry
		if err := s.store.SaveSettings(ctx, opts.UserID, settings); err != nil {
			// The refreshed token still works for this run.
			logger.WarnContext(ctx, "persisting refreshed token failed", "error", err)
			record(core.StageAuthorize, err)
		}
	}

	now := s.now()
	raw, err := s.source.FetchBudget(ctx, token.AccessToken, settings.Provider.BudgetID, fetchSince(now))
	if err != nil {
		record(core.StageFetch, err)
		return finish(core.RunFailed)
	}

	budget, err := core.Normalize(raw)
	if err != nil {
		record(core.StageAnalytics, err)
		return finish(core.RunFailed)
	}
	analysis := core.Analyze(budget, settings.CSP, now, s.cfg.PeriodMonths)
	trends := core.ComputeTrends(analysis, settings.Newsletter, snapshots, now)

	commentary, tokens, llmErr := s.commentary(ctx, analysis, trends, now, opts.SkipAI)
	result.AITokens = tokens
	if llmErr != nil {
		record(core.StageLLM, llmErr)
		logger.WarnContext(ctx, "AI commentary unavailable, using fallback", "error", llmErr)
	}

	// Snapshot before delivery so the stored history never depends on
	// whether the send worked.
	snap := buildSnapshot(opts.UserID, analysis, trends, now)
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		record(core.StageSnapshot, fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err))
		logger.WarnContext(ctx, "snapshot save failed", "error", err)
	} else {
		result.SnapshotID = snap.ID
		logger.InfoContext(ctx, "snapshot saved", log.FieldSnapshotID, snap.ID)
	}

	email, err := render.RenderEmail(analysis, trends, commentary, s.cfg.FrontendURL)
	if err != nil {
		record(core.StageRender, err)
		return finish(core.RunFailed)
	}

	recipients := settings.Newsletter.Recipients
	if len(recipients) == 0 {
		recipients = s.cfg.DefaultRecipients
	}

	attempted := false
	if !opts.SkipEmail {
		if s.mailer == nil || len(recipients) == 0 {
			record(core.StageDeliver, fmt.Errorf("no mailer or recipients configured: %w", core.ErrConfigMissing))
		} else {
			attempted = true
			for _, to := range recipients {
				err := s.mailer.Send(ctx, mail.Message{
					To:      to,
					Subject: email.Subject,
					HTML:    email.HTML,
					Text:    email.Text,
				})
				if err != nil {
					record(core.StageDeliver, err)
					logger.WarnContext(ctx, "delivery failed", log.FieldRecipient, to, "error", err)
					continue
				}
				result.EmailsSent++
			}
		}
	}

	if attempted && result.EmailsSent == 0 {
		return finish(core.RunFailed)
	}
	if len(runErrs) > 0 {
		return finish(core.RunPartial)
	}
	return finish(core.RunSuccess)
}

// Preview renders the newsletter without AI, delivery, snapshots, or run
// logs. Safe to call as often as wanted.
func (s *Newsletter) Preview(ctx context.Context, userID string) (render.Email, error) {
	analysis, trends, err := s.analyze(ctx, userID)
	if err != nil {
		return render.Email{}, err
	}
	return render.RenderEmail(analysis, trends, render.FallbackCommentary(analysis, trends), s.cfg.FrontendURL)
}

// PromptPreview returns the exact prompt the AI stage would receive.
func (s *Newsletter) PromptPreview(ctx context.Context, userID string) (string, error) {
	analysis, trends, err := s.analyze(ctx, userID)
	if err != nil {
		return "", err
	}
	return render.BuildPrompt(analysis, trends, analysis.Metrics.GeneratedAt), nil
}

// Runs exposes the run history for the API.
func (s *Newsletter) Runs(ctx context.Context, userID string, limit int) ([]core.RunLog, error) {
	return s.store.ListRuns(ctx, userID, limit)
}

func (s *Newsletter) analyze(ctx context.Context, userID string) (core.Analysis, core.Trends, error) {
	settings, snapshots, err := s.loadState(ctx, userID)
	if err != nil {
		return core.Analysis{}, core.Trends{}, err
	}

	token, _, err := s.auth.EnsureFresh(ctx, provider.Token{
		AccessToken:  settings.Provider.AccessToken,
		RefreshToken: settings.Provider.RefreshToken,
		Expiry:       settings.Provider.Expiry,
	})
	if err != nil {
		return core.Analysis{}, core.Trends{}, err
	}

	now := s.now()
	raw, err := s.source.FetchBudget(ctx, token.AccessToken, settings.Provider.BudgetID, fetchSince(now))
	if err != nil {
		return core.Analysis{}, core.Trends{}, err
	}
	budget, err := core.Normalize(raw)
	if err != nil {
		return core.Analysis{}, core.Trends{}, err
	}

	analysis := core.Analyze(budget, settings.CSP, now, s.cfg.PeriodMonths)
	return analysis, core.ComputeTrends(analysis, settings.Newsletter, snapshots, now), nil
}

// loadState fetches settings and snapshot history concurrently.
func (s *Newsletter) loadState(ctx context.Context, userID string) (storage.UserSettings, []core.Snapshot, error) {
	var (
		settings  storage.UserSettings
		snapshots []core.Snapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		settings, err = s.store.GetSettings(gctx, userID)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		snapshots, err = s.store.ListSnapshots(gctx, userID, snapshotHistoryLimit)
		if err != nil {
			return fmt.Errorf("load snapshots: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return storage.UserSettings{}, nil, err
	}
	return settings, snapshots, nil
}

func (s *Newsletter) commentary(ctx context.Context, analysis core.Analysis, trends core.Trends, now time.Time, skipAI bool) (string, int, error) {
	if skipAI || s.ai == nil {
		return render.FallbackCommentary(analysis, trends), 0, nil
	}

	prompt := render.BuildPrompt(analysis, trends, now)
	s.logger.DebugContext(ctx, "prompt built",
		"estimated_tokens", render.EstimateTokens(prompt))

	result, err := s.ai.Generate(ctx, prompt)
	if err != nil {
		return render.FallbackCommentary(analysis, trends), 0, err
	}
	s.logger.InfoContext(ctx, "commentary generated",
		log.FieldModel, result.Model, log.FieldAITokens, result.Tokens)
	return result.Commentary, result.Tokens, nil
}

// fetchSince bounds the transaction fetch: from January 1st of last year,
// which covers every comparison window the trends engine uses.
func fetchSince(now time.Time) time.Time {
	return time.Date(now.Year()-1, 1, 1, 0, 0, 0, 0, time.UTC)
}

// buildSnapshot freezes this week's headline numbers for future runs.
func buildSnapshot(userID string, a core.Analysis, tr core.Trends, now time.Time) core.Snapshot {
	m := a.Metrics

	top := make([]core.CategorySpend, 0, len(m.TopWeekly))
	for _, c := range m.TopWeekly {
		top = append(top, core.CategorySpend{Name: c.Name, Amount: c.Amount})
	}

	runwayMonths := m.Runway.NetMonths
	if m.Runway.NetInfinite {
		runwayMonths = 0
	}

	return core.Snapshot{
		ID:              uuid.NewString(),
		UserID:          userID,
		WeekEnding:      now,
		Month:           core.MonthKey(now),
		Year:            now.Year(),
		NetWorth:        m.NetWorth.Total,
		CashReserves:    m.CashReserves,
		RunwayMonths:    runwayMonths,
		BucketPercents:  m.CSP.BucketPercents(),
		MonthlyIncome:   m.CSP.MonthlyIncome,
		MonthlyExpenses: m.Runway.AvgExpenses,
		YTDIncome:       tr.YTD.Income,
		YTDExpenses:     tr.YTD.Expenses,
		TopCategories:   top,
		CreatedAt:       now,
	}
}

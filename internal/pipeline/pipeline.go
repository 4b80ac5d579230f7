// Package pipeline runs the full per-user update: refresh articles, build
// reports, generate the podcast, then notify the device.
package pipeline

import (
	"context"
	"time"

	"aifeed/internal/core"
	"aifeed/internal/logger"
)

// Step names in execution order.
const (
	StepArticles     = "articles"
	StepReport       = "report"
	StepPodcast      = "podcast"
	StepNotification = "notification"
)

// Step statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// updateDeadline bounds one full run; the scheduler window is 15 minutes and
// a run must not bleed into the next tick.
const updateDeadline = 15 * time.Minute

// ArticleRefresher fetches and persists a user's article bundle.
type ArticleRefresher interface {
	Refresh(ctx context.Context, userID string) (*core.UserArticlesBundle, error)
}

// ReportBuilder generates and persists a user's report bundle.
type ReportBuilder interface {
	BuildUserReport(ctx context.Context, userID string) (*core.UserReportBundle, error)
}

// PodcastGenerator composes and voices a user's podcast episode.
type PodcastGenerator interface {
	Generate(ctx context.Context, userID, presenter, language, voiceID string) (*core.PodcastArtifact, error)
}

// Pusher notifies the user's device that fresh content is ready.
type Pusher interface {
	UpdateReady(ctx context.Context, userID string) (string, error)
}

// StepResult reports one pipeline step's outcome.
type StepResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// UpdateResult is the full outcome of one pipeline run.
type UpdateResult struct {
	UserID    string                `json:"user_id"`
	Success   bool                  `json:"success"`
	Steps     map[string]StepResult `json:"steps"`
	StartedAt time.Time             `json:"started_at"`
	Duration  time.Duration         `json:"duration"`
}

// Orchestrator wires the four pipeline stages.
type Orchestrator struct {
	articles ArticleRefresher
	reports  ReportBuilder
	podcasts PodcastGenerator
	pusher   Pusher
	now      func() time.Time
}

// New creates an orchestrator.
func New(articles ArticleRefresher, reports ReportBuilder, podcasts PodcastGenerator, pusher Pusher) *Orchestrator {
	return &Orchestrator{
		articles: articles,
		reports:  reports,
		podcasts: podcasts,
		pusher:   pusher,
		now:      time.Now,
	}
}

// SetClock overrides the clock used for run timing. Used by tests.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// RunUpdate executes the stages in order. The first three are load-bearing:
// a failure stops the run and marks the remaining steps skipped. A failed
// notification never fails the run since content is already persisted.
func (o *Orchestrator) RunUpdate(ctx context.Context, userID, presenter, language, voiceID string) *UpdateResult {
	ctx, cancel := context.WithTimeout(ctx, updateDeadline)
	defer cancel()

	started := o.now()
	result := &UpdateResult{
		UserID:    userID,
		Steps:     make(map[string]StepResult, 4),
		StartedAt: started.UTC(),
	}
	order := []string{StepArticles, StepReport, StepPodcast, StepNotification}

	fail := func(step string, err error) *UpdateResult {
		result.Steps[step] = StepResult{Status: StatusFailed, Error: err.Error()}
		skip := false
		for _, name := range order {
			if name == step {
				skip = true
				continue
			}
			if skip {
				result.Steps[name] = StepResult{Status: StatusSkipped}
			}
		}
		result.Duration = o.now().Sub(started)
		logger.Error("Update pipeline aborted", err, "user_id", userID, "step", step)
		return result
	}

	logger.Info("Update pipeline started", "user_id", userID, "presenter", presenter)

	if _, err := o.articles.Refresh(ctx, userID); err != nil {
		return fail(StepArticles, err)
	}
	result.Steps[StepArticles] = StepResult{Status: StatusCompleted}

	if _, err := o.reports.BuildUserReport(ctx, userID); err != nil {
		return fail(StepReport, err)
	}
	result.Steps[StepReport] = StepResult{Status: StatusCompleted}

	if _, err := o.podcasts.Generate(ctx, userID, presenter, language, voiceID); err != nil {
		return fail(StepPodcast, err)
	}
	result.Steps[StepPodcast] = StepResult{Status: StatusCompleted}

	if _, err := o.pusher.UpdateReady(ctx, userID); err != nil {
		// Content is persisted and reachable; a lost notification is not
		// worth failing the run over.
		result.Steps[StepNotification] = StepResult{Status: StatusFailed, Error: err.Error()}
		logger.Warn("Update notification failed", "user_id", userID, "error", err.Error())
	} else {
		result.Steps[StepNotification] = StepResult{Status: StatusCompleted}
	}

	result.Success = true
	result.Duration = o.now().Sub(started)
	logger.Info("Update pipeline finished", "user_id", userID, "duration", result.Duration.String())
	return result
}

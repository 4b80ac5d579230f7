package pipeline

import (
	"context"
	"errors"
	"testing"

	"aifeed/internal/core"
)

type fakeStages struct {
	refreshErr error
	reportErr  error
	podcastErr error
	pushErr    error
	calls      []string
}

func (f *fakeStages) Refresh(ctx context.Context, userID string) (*core.UserArticlesBundle, error) {
	f.calls = append(f.calls, StepArticles)
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &core.UserArticlesBundle{UserID: userID}, nil
}

func (f *fakeStages) BuildUserReport(ctx context.Context, userID string) (*core.UserReportBundle, error) {
	f.calls = append(f.calls, StepReport)
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	return &core.UserReportBundle{UserID: userID}, nil
}

func (f *fakeStages) Generate(ctx context.Context, userID, presenter, language, voiceID string) (*core.PodcastArtifact, error) {
	f.calls = append(f.calls, StepPodcast)
	if f.podcastErr != nil {
		return nil, f.podcastErr
	}
	return &core.PodcastArtifact{UserID: userID, Status: core.StatusCompletePodcast}, nil
}

func (f *fakeStages) UpdateReady(ctx context.Context, userID string) (string, error) {
	f.calls = append(f.calls, StepNotification)
	if f.pushErr != nil {
		return "", f.pushErr
	}
	return "msg-1", nil
}

func newOrchestrator(f *fakeStages) *Orchestrator {
	return New(f, f, f, f)
}

func TestRunUpdate(t *testing.T) {
	stages := &fakeStages{}
	result := newOrchestrator(stages).RunUpdate(context.Background(), "user-1", "Alex", "en", "")

	if !result.Success {
		t.Fatalf("run failed: %+v", result.Steps)
	}
	for _, step := range []string{StepArticles, StepReport, StepPodcast, StepNotification} {
		if result.Steps[step].Status != StatusCompleted {
			t.Errorf("step %s = %+v", step, result.Steps[step])
		}
	}
	want := []string{StepArticles, StepReport, StepPodcast, StepNotification}
	if len(stages.calls) != len(want) {
		t.Fatalf("calls = %v", stages.calls)
	}
	for i, step := range want {
		if stages.calls[i] != step {
			t.Errorf("call %d = %s, want %s", i, stages.calls[i], step)
		}
	}
}

func TestRunUpdatePodcastFailureStopsRun(t *testing.T) {
	stages := &fakeStages{podcastErr: errors.New("voice service down")}
	result := newOrchestrator(stages).RunUpdate(context.Background(), "user-1", "Alex", "en", "")

	if result.Success {
		t.Fatal("run reported success despite podcast failure")
	}
	if result.Steps[StepArticles].Status != StatusCompleted {
		t.Errorf("articles = %+v", result.Steps[StepArticles])
	}
	if result.Steps[StepReport].Status != StatusCompleted {
		t.Errorf("report = %+v", result.Steps[StepReport])
	}
	if result.Steps[StepPodcast].Status != StatusFailed {
		t.Errorf("podcast = %+v", result.Steps[StepPodcast])
	}
	if result.Steps[StepPodcast].Error == "" {
		t.Error("podcast step has no error message")
	}
	if result.Steps[StepNotification].Status != StatusSkipped {
		t.Errorf("notification = %+v", result.Steps[StepNotification])
	}
	for _, call := range stages.calls {
		if call == StepNotification {
			t.Error("notification ran after fatal step")
		}
	}
}

func TestRunUpdateRefreshFailureSkipsEverything(t *testing.T) {
	stages := &fakeStages{refreshErr: errors.New("news provider down")}
	result := newOrchestrator(stages).RunUpdate(context.Background(), "user-1", "Alex", "en", "")

	if result.Success {
		t.Fatal("run reported success")
	}
	if result.Steps[StepArticles].Status != StatusFailed {
		t.Errorf("articles = %+v", result.Steps[StepArticles])
	}
	for _, step := range []string{StepReport, StepPodcast, StepNotification} {
		if result.Steps[step].Status != StatusSkipped {
			t.Errorf("step %s = %+v", step, result.Steps[step])
		}
	}
	if len(stages.calls) != 1 {
		t.Errorf("calls = %v", stages.calls)
	}
}

func TestRunUpdateNotificationFailureIsNonFatal(t *testing.T) {
	stages := &fakeStages{pushErr: errors.New("stale token")}
	result := newOrchestrator(stages).RunUpdate(context.Background(), "user-1", "Alex", "en", "")

	if !result.Success {
		t.Fatal("notification failure should not fail the run")
	}
	if result.Steps[StepNotification].Status != StatusFailed {
		t.Errorf("notification = %+v", result.Steps[StepNotification])
	}
	if result.Steps[StepPodcast].Status != StatusCompleted {
		t.Errorf("podcast = %+v", result.Steps[StepPodcast])
	}
}

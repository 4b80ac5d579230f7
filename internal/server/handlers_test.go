package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aifeed/internal/config"
	"aifeed/internal/core"
	"aifeed/internal/discovery"
	"aifeed/internal/docstore"
	"aifeed/internal/llm"
	"aifeed/internal/pipeline"
	"aifeed/internal/prefs"
)

type fakeRefresher struct {
	err error
}

func (f *fakeRefresher) Refresh(ctx context.Context, userID string) (*core.UserArticlesBundle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &core.UserArticlesBundle{
		UserID:           userID,
		RefreshTimestamp: time.Date(2026, 3, 9, 7, 30, 0, 0, time.UTC),
		Summary:          core.BundleSummary{TotalArticles: 12, TotalPosts: 4, TopicCount: 2},
	}, nil
}

type fakeReports struct{}

func (f *fakeReports) BuildUserReport(ctx context.Context, userID string) (*core.UserReportBundle, error) {
	return &core.UserReportBundle{
		UserID: userID,
		Reports: map[string]core.TopicReport{
			"technology": {PickupLine: "Chips Keep Getting Faster"},
		},
		GenerationStats: core.GenerationStats{Calls: 4},
	}, nil
}

type fakePodcasts struct{}

func (f *fakePodcasts) Generate(ctx context.Context, userID, presenter, language, voiceID string) (*core.PodcastArtifact, error) {
	return &core.PodcastArtifact{
		UserID:            userID,
		PresenterName:     presenter,
		Status:            core.StatusCompletePodcast,
		ScriptURL:         "https://blobs.test/podcast_scripts/u/script.txt",
		AudioURL:          "https://blobs.test/podcast_audio/u/podcast.mp3",
		WordCount:         700,
		EstimatedDuration: "4:30",
	}, nil
}

type fakeUpdates struct {
	fail bool
}

func (f *fakeUpdates) RunUpdate(ctx context.Context, userID, presenter, language, voiceID string) *pipeline.UpdateResult {
	if f.fail {
		return &pipeline.UpdateResult{
			UserID:  userID,
			Success: false,
			Steps: map[string]pipeline.StepResult{
				pipeline.StepArticles:     {Status: pipeline.StatusCompleted},
				pipeline.StepReport:       {Status: pipeline.StatusCompleted},
				pipeline.StepPodcast:      {Status: pipeline.StatusFailed, Error: "voice service down"},
				pipeline.StepNotification: {Status: pipeline.StatusSkipped},
			},
		}
	}
	return &pipeline.UpdateResult{
		UserID:  userID,
		Success: true,
		Steps: map[string]pipeline.StepResult{
			pipeline.StepArticles:     {Status: pipeline.StatusCompleted},
			pipeline.StepReport:       {Status: pipeline.StatusCompleted},
			pipeline.StepPodcast:      {Status: pipeline.StatusCompleted},
			pipeline.StepNotification: {Status: pipeline.StatusCompleted},
		},
	}
}

type testEnv struct {
	server  *Server
	docs    *docstore.MemoryStore
	chat    *llm.MockChat
	updates *fakeUpdates
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	docs := docstore.NewMemoryStore()
	store := prefs.NewStore(docs)
	chat := &llm.MockChat{Responses: []string{`["Nvidia"]`}}
	updates := &fakeUpdates{}

	srv := New(Deps{
		Preferences: store,
		Refresher:   &fakeRefresher{},
		Reports:     &fakeReports{},
		Podcasts:    &fakePodcasts{},
		Updates:     updates,
		Discovery:   discovery.NewService(chat, store),
		Docs:        docs,
	}, config.Server{Host: "127.0.0.1", Port: 0})

	return &testEnv{server: srv, docs: docs, chat: chat, updates: updates}
}

func (e *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return out
}

func validPreferences() map[string]any {
	return map[string]any{
		"technology": map[string]any{
			"ai": map[string]any{
				"subreddits": []string{"MachineLearning"},
				"queries":    []string{"AI regulation"},
			},
		},
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health_check", nil)
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["timestamp"] == nil {
		t.Error("timestamp missing")
	}
}

func TestSaveInitialPreferences(t *testing.T) {
	env := newTestEnv(t)
	rec := env.post(t, "/save_initial_preferences", map[string]any{
		"user_id":      "user-1",
		"preferences":  validPreferences(),
		"detail_level": "Medium",
		"language":     "en",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Error("success flag missing")
	}
	if body["format_version"] != "3.0" {
		t.Errorf("format_version = %v", body["format_version"])
	}
	if body["topics_count"] != float64(1) || body["subtopics_count"] != float64(1) {
		t.Errorf("counts = %v/%v", body["topics_count"], body["subtopics_count"])
	}
}

func TestSaveInitialPreferencesRejectsMissingArray(t *testing.T) {
	env := newTestEnv(t)
	rec := env.post(t, "/save_initial_preferences", map[string]any{
		"user_id": "user-1",
		"preferences": map[string]any{
			"technology": map[string]any{
				"ai": map[string]any{
					"subreddits": []string{"MachineLearning"},
					// queries array missing entirely
				},
			},
		},
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != false {
		t.Error("success should be false")
	}
	if body["error"] == nil || body["timestamp"] == nil {
		t.Errorf("error envelope incomplete: %v", body)
	}
}

func TestGetUserPreferencesReturnsSkeletonForNewUser(t *testing.T) {
	env := newTestEnv(t)
	rec := env.post(t, "/get_user_preferences", map[string]any{"user_id": "brand-new"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	doc, ok := body["preferences"].(map[string]any)
	if !ok {
		t.Fatalf("preferences = %v", body["preferences"])
	}
	if doc["format_version"] != "3.0" {
		t.Errorf("format_version = %v", doc["format_version"])
	}
	if nested, ok := doc["preferences"].(map[string]any); !ok || len(nested) != 0 {
		t.Errorf("nested preferences = %v, want empty object", doc["preferences"])
	}
}

func TestUpdateSpecificSubjectsAnalyzeThenGet(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/update_specific_subjects", map[string]any{
		"user_id":      "user-1",
		"action":       "analyze",
		"user_message": "I care about Nvidia",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["count"] != float64(1) {
		t.Errorf("count = %v", body["count"])
	}

	rec = env.post(t, "/update_specific_subjects", map[string]any{
		"user_id": "user-1",
		"action":  "get",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	body = decodeBody(t, rec)
	subjects, ok := body["specific_subjects"].([]any)
	if !ok || len(subjects) != 1 || subjects[0] != "Nvidia" {
		t.Errorf("specific_subjects = %v", body["specific_subjects"])
	}
}

func TestUpdateSpecificSubjectsRejectsUnknownAction(t *testing.T) {
	env := newTestEnv(t)
	rec := env.post(t, "/update_specific_subjects", map[string]any{
		"user_id": "user-1",
		"action":  "delete",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAnswer(t *testing.T) {
	env := newTestEnv(t)
	env.chat.Responses = []string{"Great, your feed is ready!"}

	rec := env.post(t, "/answer", map[string]any{
		"user_id":          "user-1",
		"user_message":     "That is all I follow",
		"user_preferences": validPreferences(),
		"conversation_history": []map[string]string{
			{"role": "assistant", "content": "Which topics interest you?"},
			{"role": "user", "content": "Mostly semiconductors"},
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["ai_message"] != "Great, your feed is ready!" {
		t.Errorf("ai_message = %v", body["ai_message"])
	}
	if body["conversation_ending"] != true || body["ready_for_news"] != true {
		t.Errorf("flags = %v/%v", body["conversation_ending"], body["ready_for_news"])
	}
	if body["usage"] == nil {
		t.Error("usage missing")
	}

	if len(env.chat.Requests) != 1 {
		t.Fatalf("LLM calls = %d", len(env.chat.Requests))
	}
	if got := len(env.chat.Requests[0].Messages); got != 3 {
		t.Errorf("history length = %d, want 3", got)
	}
	if !strings.Contains(env.chat.Requests[0].System, "MachineLearning") {
		t.Error("system prompt missing the submitted preferences")
	}
}

func TestRefreshArticles(t *testing.T) {
	env := newTestEnv(t)
	rec := env.post(t, "/refresh_articles_endpoint", map[string]any{"user_id": "user-1"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["total_articles"] != float64(12) || body["topic_count"] != float64(2) {
		t.Errorf("summary fields = %v", body)
	}
}

func TestGetUserArticlesNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.post(t, "/get_user_articles_endpoint", map[string]any{"user_id": "nobody"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}

	bundle := &core.UserArticlesBundle{UserID: "user-1", Summary: core.BundleSummary{TotalArticles: 3}}
	if err := env.docs.Set(context.Background(), docstore.ColArticles, "user-1", bundle); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rec = env.post(t, "/get_user_articles_endpoint", map[string]any{"user_id": "user-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	articles, ok := body["articles"].(map[string]any)
	if !ok {
		t.Fatalf("articles = %v", body["articles"])
	}
	if articles["user_id"] != "user-1" {
		t.Errorf("user_id = %v", articles["user_id"])
	}
}

func TestGeneratePodcastDefaultsPresenter(t *testing.T) {
	env := newTestEnv(t)
	rec := env.post(t, "/generate_simple_podcast_endpoint", map[string]any{"user_id": "user-1"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != string(core.StatusCompletePodcast) {
		t.Errorf("status field = %v", body["status"])
	}
	if body["audio_url"] == "" {
		t.Error("audio_url missing")
	}
}

func TestUpdateEndpointFailureReturns500WithSteps(t *testing.T) {
	env := newTestEnv(t)
	env.updates.fail = true

	rec := env.post(t, "/update_endpoint", map[string]any{"user_id": "user-1"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != false {
		t.Error("success should be false")
	}
	steps, ok := body["steps"].(map[string]any)
	if !ok {
		t.Fatalf("steps = %v", body["steps"])
	}
	podcast, _ := steps[pipeline.StepPodcast].(map[string]any)
	if podcast["status"] != pipeline.StatusFailed {
		t.Errorf("podcast step = %v", podcast)
	}
}

func TestSaveSchedulingPreferences(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/save_scheduling_preferences", map[string]any{
		"user_id": "user-1", "type": "daily", "hour": 9, "minute": 0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.post(t, "/save_scheduling_preferences", map[string]any{
		"user_id": "user-1", "type": "daily", "hour": 24, "minute": 0,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid hour status = %d", rec.Code)
	}
}

func TestRegisterDevice(t *testing.T) {
	env := newTestEnv(t)
	rec := env.post(t, "/register_device", map[string]any{
		"user_id": "user-1", "fcm_token": "token-abc",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	store := prefs.NewStore(env.docs)
	token, err := store.DeviceToken(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("DeviceToken: %v", err)
	}
	if token != "token-abc" {
		t.Errorf("token = %q", token)
	}
}

func TestRefreshArticlesFailure(t *testing.T) {
	env := newTestEnv(t)
	docs := docstore.NewMemoryStore()
	store := prefs.NewStore(docs)
	srv := New(Deps{
		Preferences: store,
		Refresher:   &fakeRefresher{err: errors.New("news provider down")},
		Reports:     &fakeReports{},
		Podcasts:    &fakePodcasts{},
		Updates:     &fakeUpdates{},
		Discovery:   discovery.NewService(env.chat, store),
		Docs:        docs,
	}, config.Server{})
	env.server = srv

	rec := env.post(t, "/refresh_articles_endpoint", map[string]any{"user_id": "user-1"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] == nil {
		t.Error("error field missing")
	}
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"aifeed/internal/core"
	"aifeed/internal/docstore"
	"aifeed/internal/llm"
	"aifeed/internal/logger"
	"aifeed/internal/prefs"
)

// conversationTurn is one message in an onboarding conversation as clients
// send it.
type conversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", err)
	}
}

func (s *Server) respondOK(w http.ResponseWriter, fields map[string]any) {
	payload := map[string]any{"success": true}
	for k, v := range fields {
		payload[k] = v
	}
	s.respondJSON(w, http.StatusOK, payload)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]any{
		"success":   false,
		"error":     message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// decode reads the JSON request body into dest and writes the 400 itself on
// failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		s.respondError(w, http.StatusBadRequest, "request body must be valid JSON")
		return false
	}
	return true
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSaveInitialPreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string          `json:"user_id"`
		Preferences json.RawMessage `json:"preferences"`
		DetailLevel string          `json:"detail_level"`
		Language    string          `json:"language"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.UserID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	preferences, err := prefs.ValidateRaw(req.Preferences)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := s.deps.Preferences.Save(r.Context(), req.UserID, preferences, core.DetailLevel(req.DetailLevel), req.Language)
	if err != nil {
		if errors.Is(err, prefs.ErrInvalidSchema) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	subtopics := 0
	for _, subs := range doc.Preferences {
		subtopics += len(subs)
	}
	s.respondOK(w, map[string]any{
		"format_version":  doc.FormatVersion,
		"topics_count":    len(doc.Preferences),
		"subtopics_count": subtopics,
	})
}

func (s *Server) handleGetUserPreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.UserID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	doc, err := s.deps.Preferences.Get(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			// A brand-new user gets an empty v3.0 skeleton, not a 404.
			doc = &core.UserPreferences{
				UserID:        req.UserID,
				Preferences:   map[string]map[string]core.SubtopicSources{},
				DetailLevel:   core.DetailMedium,
				Language:      "en",
				FormatVersion: core.PreferencesFormatVersion,
			}
		} else {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	s.respondOK(w, map[string]any{"preferences": doc})
}

func (s *Server) handleUpdateSpecificSubjects(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID              string             `json:"user_id"`
		Action              string             `json:"action"`
		ConversationHistory []conversationTurn `json:"conversation_history"`
		UserMessage         string             `json:"user_message"`
		Language            string             `json:"language"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.UserID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	switch req.Action {
	case "get":
		doc, err := s.deps.Preferences.Get(r.Context(), req.UserID)
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		subjects := []string{}
		if doc != nil && doc.SpecificSubjects != nil {
			subjects = doc.SpecificSubjects
		}
		s.respondOK(w, map[string]any{
			"specific_subjects": subjects,
			"count":             len(subjects),
		})

	case "analyze":
		history := toMessages(req.ConversationHistory, req.UserMessage)
		if len(history) == 0 {
			s.respondError(w, http.StatusBadRequest, "analyze requires a conversation")
			return
		}
		subjects, err := s.deps.Discovery.ExtractEntities(r.Context(), req.UserID, req.Language, history)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondOK(w, map[string]any{
			"specific_subjects": subjects,
			"count":             len(subjects),
		})

	default:
		s.respondError(w, http.StatusBadRequest, "action must be analyze or get")
	}
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID              string             `json:"user_id"`
		ConversationHistory []conversationTurn `json:"conversation_history"`
		UserMessage         string             `json:"user_message"`
		Language            string             `json:"language"`
		UserPreferences     json.RawMessage    `json:"user_preferences"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	history := toMessages(req.ConversationHistory, req.UserMessage)
	if len(history) == 0 {
		s.respondError(w, http.StatusBadRequest, "user_message or conversation_history is required")
		return
	}

	reply, err := s.deps.Discovery.Answer(r.Context(), req.Language, string(req.UserPreferences), history)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondOK(w, map[string]any{
		"ai_message":          reply.Text,
		"conversation_ending": reply.ConversationEnding,
		"ready_for_news":      reply.ReadyForNews,
		"usage": map[string]any{
			"input_tokens":  reply.Usage.InputTokens,
			"output_tokens": reply.Usage.OutputTokens,
		},
	})
}

func (s *Server) handleSaveSchedulingPreferences(w http.ResponseWriter, r *http.Request) {
	var sched core.SchedulingPreferences
	if !s.decode(w, r, &sched) {
		return
	}

	if err := s.deps.Preferences.SaveScheduling(r.Context(), sched); err != nil {
		if errors.Is(err, prefs.ErrInvalidSchema) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondOK(w, map[string]any{
		"type":   sched.Type,
		"hour":   sched.Hour,
		"minute": sched.Minute,
	})
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		FCMToken string `json:"fcm_token"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.UserID == "" || req.FCMToken == "" {
		s.respondError(w, http.StatusBadRequest, "user_id and fcm_token are required")
		return
	}

	if err := s.deps.Preferences.SaveDeviceToken(r.Context(), req.UserID, req.FCMToken); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondOK(w, nil)
}

func (s *Server) handleRefreshArticles(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	bundle, err := s.deps.Refresher.Refresh(r.Context(), userID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondOK(w, map[string]any{
		"total_articles":    bundle.Summary.TotalArticles,
		"total_posts":       bundle.Summary.TotalPosts,
		"topic_count":       bundle.Summary.TopicCount,
		"refresh_timestamp": bundle.RefreshTimestamp.Format(time.RFC3339),
	})
}

func (s *Server) handleCompleteReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	bundle, err := s.deps.Reports.BuildUserReport(r.Context(), userID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondOK(w, map[string]any{
		"reports":          bundle.Reports,
		"generation_stats": bundle.GenerationStats,
	})
}

func (s *Server) handleGeneratePodcast(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID        string `json:"user_id"`
		PresenterName string `json:"presenter_name"`
		Language      string `json:"language"`
		VoiceID       string `json:"voice_id"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.UserID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.PresenterName == "" {
		req.PresenterName = "Alex"
	}

	artifact, err := s.deps.Podcasts.Generate(r.Context(), req.UserID, req.PresenterName, req.Language, req.VoiceID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondOK(w, map[string]any{
		"status":             artifact.Status,
		"script_url":         artifact.ScriptURL,
		"audio_url":          artifact.AudioURL,
		"audio_filename":     artifact.AudioFilename,
		"word_count":         artifact.WordCount,
		"estimated_duration": artifact.EstimatedDuration,
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID        string `json:"user_id"`
		PresenterName string `json:"presenter_name"`
		Language      string `json:"language"`
		VoiceID       string `json:"voice_id"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.UserID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.PresenterName == "" {
		req.PresenterName = "Alex"
	}
	if req.Language == "" {
		req.Language = "en"
	}

	result := s.deps.Updates.RunUpdate(r.Context(), req.UserID, req.PresenterName, req.Language, req.VoiceID)
	if !result.Success {
		s.respondJSON(w, http.StatusInternalServerError, map[string]any{
			"success":   false,
			"steps":     result.Steps,
			"error":     "update pipeline failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	s.respondOK(w, map[string]any{
		"steps":    result.Steps,
		"duration": result.Duration.String(),
	})
}

func (s *Server) handleGetUserArticles(w http.ResponseWriter, r *http.Request) {
	s.serveDocument(w, r, docstore.ColArticles, "articles")
}

func (s *Server) handleGetReports(w http.ResponseWriter, r *http.Request) {
	s.serveDocument(w, r, docstore.ColAIFeed, "reports")
}

// serveDocument returns the persisted per-user document from a collection,
// 404 when absent.
func (s *Server) serveDocument(w http.ResponseWriter, r *http.Request, collection, field string) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	var doc json.RawMessage
	if err := s.deps.Docs.Get(r.Context(), collection, userID, &doc); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "no document for user "+userID)
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondOK(w, map[string]any{field: doc})
}

// userID decodes the common {user_id} request body.
func (s *Server) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if !s.decode(w, r, &req) {
		return "", false
	}
	if req.UserID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return "", false
	}
	return req.UserID, true
}

// toMessages converts client conversation turns plus the latest user message
// into the LLM message list.
func toMessages(history []conversationTurn, userMessage string) []llm.Message {
	out := make([]llm.Message, 0, len(history)+1)
	for _, turn := range history {
		role := turn.Role
		if role != "assistant" {
			role = "user"
		}
		if turn.Content == "" {
			continue
		}
		out = append(out, llm.Message{Role: role, Content: turn.Content})
	}
	if userMessage != "" {
		out = append(out, llm.Message{Role: "user", Content: userMessage})
	}
	return out
}

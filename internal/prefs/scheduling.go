package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"aifeed/internal/core"
	"aifeed/internal/docstore"
)

var weekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// SaveScheduling validates and writes a user's scheduling preferences.
func (s *Store) SaveScheduling(ctx context.Context, sched core.SchedulingPreferences) error {
	if sched.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidSchema)
	}
	if sched.Type != core.ScheduleDaily && sched.Type != core.ScheduleWeekly {
		return fmt.Errorf("%w: type must be daily or weekly", ErrInvalidSchema)
	}
	if sched.Hour < 0 || sched.Hour > 23 {
		return fmt.Errorf("%w: hour must be in [0,23]", ErrInvalidSchema)
	}
	if sched.Minute < 0 || sched.Minute > 59 {
		return fmt.Errorf("%w: minute must be in [0,59]", ErrInvalidSchema)
	}
	if sched.Type == core.ScheduleWeekly {
		if !weekdays[strings.ToLower(sched.Day)] {
			return fmt.Errorf("%w: weekly schedules need a valid day", ErrInvalidSchema)
		}
		sched.Day = strings.ToLower(sched.Day)
	}
	if err := s.docs.Set(ctx, docstore.ColScheduling, sched.UserID, sched); err != nil {
		return fmt.Errorf("failed to save scheduling preferences for %s: %w", sched.UserID, err)
	}
	return nil
}

// GetScheduling returns a user's scheduling preferences.
func (s *Store) GetScheduling(ctx context.Context, userID string) (*core.SchedulingPreferences, error) {
	var sched core.SchedulingPreferences
	if err := s.docs.Get(ctx, docstore.ColScheduling, userID, &sched); err != nil {
		return nil, err
	}
	return &sched, nil
}

// AllScheduling returns every stored scheduling preference document.
func (s *Store) AllScheduling(ctx context.Context) ([]core.SchedulingPreferences, error) {
	var out []core.SchedulingPreferences
	err := s.docs.Scan(ctx, docstore.ColScheduling, func(id string, raw json.RawMessage) error {
		var sched core.SchedulingPreferences
		if err := json.Unmarshal(raw, &sched); err != nil {
			return nil // skip malformed documents rather than aborting the tick
		}
		if sched.UserID == "" {
			sched.UserID = id
		}
		out = append(out, sched)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan scheduling preferences: %w", err)
	}
	return out, nil
}

// DeviceToken returns the user's registered push token, or ErrNotFound.
func (s *Store) DeviceToken(ctx context.Context, userID string) (string, error) {
	var user struct {
		FCMToken string `json:"fcmToken"`
	}
	if err := s.docs.Get(ctx, docstore.ColUsers, userID, &user); err != nil {
		return "", err
	}
	if user.FCMToken == "" {
		return "", docstore.ErrNotFound
	}
	return user.FCMToken, nil
}

// SaveDeviceToken stores the user's push token, latest write wins.
func (s *Store) SaveDeviceToken(ctx context.Context, userID, token string) error {
	return s.docs.Merge(ctx, docstore.ColUsers, userID, map[string]any{"fcmToken": token})
}

// ClearDeviceToken drops the user's push token, typically after the provider
// reports it unregistered. DeviceToken treats the cleared binding as absent.
func (s *Store) ClearDeviceToken(ctx context.Context, userID string) error {
	return s.docs.Merge(ctx, docstore.ColUsers, userID, map[string]any{"fcmToken": ""})
}

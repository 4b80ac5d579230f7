// Package notify tells a user their refreshed briefing is ready.
package notify

import (
	"context"
	"errors"
	"fmt"

	"aifeed/internal/docstore"
	"aifeed/internal/logger"
	"aifeed/internal/push"
)

// Notification copy is fixed; clients key UI behavior off the exact title.
const (
	Title = "Your updates are available"
	Body  = "Fresh news articles and podcast are ready!"
)

// TokenStore resolves a user's current device token and invalidates it when
// the provider reports it dead.
type TokenStore interface {
	DeviceToken(ctx context.Context, userID string) (string, error)
	ClearDeviceToken(ctx context.Context, userID string) error
}

// ErrNoDevice means the user has no registered device token.
var ErrNoDevice = errors.New("no device token registered")

// Notifier sends the update-ready notification.
type Notifier struct {
	sender push.Sender
	tokens TokenStore
}

// New creates a notifier.
func New(sender push.Sender, tokens TokenStore) *Notifier {
	return &Notifier{sender: sender, tokens: tokens}
}

// UpdateReady pushes the fixed update-ready message to the user's device and
// returns the provider message id. A missing binding returns ErrNoDevice; a
// stale token is reported via push.IsUnknownToken on the returned error.
// Callers treat both as non-fatal.
func (n *Notifier) UpdateReady(ctx context.Context, userID string) (string, error) {
	token, err := n.tokens.DeviceToken(ctx, userID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return "", fmt.Errorf("%w for user %s", ErrNoDevice, userID)
		}
		return "", fmt.Errorf("failed to resolve device token for %s: %w", userID, err)
	}

	messageID, err := n.sender.Send(ctx, token, Title, Body, push.DefaultOptions())
	if err != nil {
		if push.IsUnknownToken(err) {
			// Drop the dead binding so later runs stop pushing to it.
			logger.Warn("Device token is stale, clearing binding", "user_id", userID)
			if clearErr := n.tokens.ClearDeviceToken(ctx, userID); clearErr != nil {
				logger.Error("Failed to clear stale device token", clearErr, "user_id", userID)
			}
		}
		return "", fmt.Errorf("failed to push update notification to %s: %w", userID, err)
	}

	logger.Info("Update notification sent", "user_id", userID, "message_id", messageID)
	return messageID, nil
}

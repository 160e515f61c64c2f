// Copyright 2024-2026 Aiku AI

package helpbot

import (
	"context"
	"fmt"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/matrix-helpbot/pkg/helpbot/msgfmt"
)

// recentWelcomeCacheSize bounds the dedup cache; entries also expire after
// the configured window.
const recentWelcomeCacheSize = 1024

// roomSender is the send operation of the Matrix client.
type roomSender interface {
	SendMessage(ctx context.Context, roomID id.RoomID, content *event.MessageEventContent) error
}

// Welcomer sends welcome messages to users who join a room. A TTL cache
// keyed on room and user suppresses repeat welcomes inside the configured
// dedup window, e.g. when someone leaves and rejoins in quick succession.
type Welcomer struct {
	api    roomSender
	cfg    *WelcomeConfig
	log    zerolog.Logger
	recent *expirable.LRU[string, struct{}]
}

// NewWelcomer creates a Welcomer. A dedup window of 0 disables suppression.
func NewWelcomer(api roomSender, cfg *WelcomeConfig, log zerolog.Logger) *Welcomer {
	w := &Welcomer{
		api: api,
		cfg: cfg,
		log: log.With().Str("component", "welcomer").Logger(),
	}
	if cfg.DedupWindow() > 0 {
		w.recent = expirable.NewLRU[string, struct{}](recentWelcomeCacheSize, nil, cfg.DedupWindow())
	}
	return w
}

// Welcome sends the configured welcome message to user in room, prefixed
// with their user ID. The message is sent once; a failure is returned for
// the caller to log but is never retried.
func (w *Welcomer) Welcome(ctx context.Context, room id.RoomID, user id.UserID) error {
	if w.recent != nil {
		key := string(room) + "/" + string(user)
		if _, ok := w.recent.Get(key); ok {
			w.log.Debug().
				Stringer("room_id", room).
				Stringer("user_id", user).
				Msg("Skipping welcome, already welcomed within dedup window")
			return nil
		}
		w.recent.Add(key, struct{}{})
	}

	text := fmt.Sprintf("%s: %s", user, w.cfg.Message)
	content := msgfmt.Render(text, w.cfg.Format)
	if err := w.api.SendMessage(ctx, room, content); err != nil {
		return fmt.Errorf("failed to send welcome message to %s: %w", user, err)
	}
	w.log.Info().
		Stringer("room_id", room).
		Stringer("user_id", user).
		Msg("Sent welcome message")
	return nil
}

// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package helpbot

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Client connects the reaction engine to a Matrix homeserver. It owns the
// mautrix client, registers the sync callbacks and implements the room API
// the handlers call back into.
type Client struct {
	mx  *mautrix.Client
	bot *Bot
	log zerolog.Logger

	// ready flips to true once the initial sync has been processed. The
	// initial sync replays state and history from before startup: it must
	// reach the state store, which learns the bot's existing room
	// memberships from it, but must not reach the reaction handlers, so
	// the bot never answers messages from before it started.
	ready atomic.Bool
}

var _ roomAPI = (*Client)(nil)

// NewClient builds a Matrix client for the configured account and wires the
// bot's handlers into its sync loop.
func NewClient(cfg *Config, help *HelpText, log zerolog.Logger) (*Client, error) {
	mx, err := mautrix.NewClient(cfg.Homeserver, cfg.UserID, cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create matrix client: %w", err)
	}
	mx.DeviceID = cfg.DeviceID
	mx.Log = log.With().Str("component", "mautrix").Logger()
	// The in-memory state store answers the "is the bot joined" query; it
	// is fed by the sync handler below.
	mx.StateStore = mautrix.NewMemoryStateStore()

	c := &Client{
		mx:  mx,
		log: log.With().Str("component", "client").Logger(),
	}
	c.bot = NewBot(cfg, help, c, log)

	syncer := mx.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEvent(mx.StateStoreSyncHandler)
	// Runs before the response's events are dispatched, so everything in
	// the initial sync (since == "") still sees ready == false.
	syncer.OnSync(func(ctx context.Context, resp *mautrix.RespSync, since string) bool {
		if since != "" && c.ready.CompareAndSwap(false, true) {
			c.log.Debug().Msg("Initial sync processed, reacting to events")
		}
		return true
	})
	syncer.OnEventType(event.EventMessage, c.handleMessage)
	syncer.OnEventType(event.StateMember, c.handleMember)

	return c, nil
}

func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	if !c.ready.Load() {
		return
	}
	c.bot.HandleMessage(ctx, evt)
}

func (c *Client) handleMember(ctx context.Context, evt *event.Event) {
	if !c.ready.Load() {
		return
	}
	c.bot.HandleMember(ctx, evt)
}

// Run verifies the access token and syncs until the context is canceled.
func (c *Client) Run(ctx context.Context) error {
	whoami, err := c.mx.Whoami(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify access token: %w", err)
	}
	c.log.Info().Stringer("user_id", whoami.UserID).Msg("Authenticated")

	c.log.Info().Str("homeserver", c.mx.HomeserverURL.String()).Msg("Starting sync")
	err = c.mx.SyncWithContext(ctx)
	// Let pending join retries observe the canceled context and wind down.
	c.bot.WaitForJoins()
	return err
}

// SendMessage sends pre-rendered message content to a room.
func (c *Client) SendMessage(ctx context.Context, roomID id.RoomID, content *event.MessageEventContent) error {
	_, err := c.mx.SendMessageEvent(ctx, roomID, event.EventMessage, content)
	return err
}

// JoinRoom accepts an invitation / joins a room by ID.
func (c *Client) JoinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := c.mx.JoinRoomByID(ctx, roomID)
	return err
}

// IsJoined reports whether the bot is an active member of the room,
// according to the synced state store.
func (c *Client) IsJoined(ctx context.Context, roomID id.RoomID) bool {
	return c.mx.StateStore.IsInRoom(ctx, roomID, c.mx.UserID)
}

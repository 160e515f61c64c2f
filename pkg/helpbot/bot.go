// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package helpbot

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/matrix-helpbot/pkg/helpbot/msgfmt"
)

// roomAPI is the surface of the Matrix client the reaction handlers use.
// It is an interface so tests can inject a mock instead of a live client.
type roomAPI interface {
	roomSender
	roomJoiner
	// IsJoined reports whether the bot is an active member of the room.
	IsJoined(ctx context.Context, roomID id.RoomID) bool
}

// Bot routes incoming Matrix events to the reaction handlers: message events
// through the sender filter to the help command, invites for the bot's own
// account to the join retry loop, and membership changes through the join
// classifier to the welcomer.
type Bot struct {
	cfg      *Config
	help     *HelpText
	api      roomAPI
	joiner   *Joiner
	welcomer *Welcomer
	log      zerolog.Logger
}

// NewBot wires the reaction handlers to a room API.
func NewBot(cfg *Config, help *HelpText, api roomAPI, log zerolog.Logger) *Bot {
	return &Bot{
		cfg:      cfg,
		help:     help,
		api:      api,
		joiner:   NewJoiner(api, log),
		welcomer: NewWelcomer(api, &cfg.Welcome, log),
		log:      log.With().Str("component", "bot").Logger(),
	}
}

// HandleMessage reacts to a room message event. Non-text messages, messages
// in rooms the bot has not joined and messages from filtered senders are
// dropped; a message starting with the help command gets the help reply.
func (b *Bot) HandleMessage(ctx context.Context, evt *event.Event) {
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || content.MsgType != event.MsgText {
		return
	}
	if !b.api.IsJoined(ctx, evt.RoomID) {
		return
	}
	if ShouldIgnoreSender(evt.Sender, b.cfg.UserID, &b.cfg.Filtering) {
		b.log.Debug().Stringer("sender", evt.Sender).Msg("Ignoring message from filtered sender")
		return
	}
	if !strings.HasPrefix(content.Body, b.cfg.HelpCommand) {
		return
	}

	b.log.Info().
		Stringer("room_id", evt.RoomID).
		Stringer("sender", evt.Sender).
		Msg("Received help request")

	reply := msgfmt.Render(b.help.Text(), b.cfg.HelpFormat)
	if err := b.api.SendMessage(ctx, evt.RoomID, reply); err != nil {
		b.log.Error().Err(err).Stringer("room_id", evt.RoomID).Msg("Failed to send help message")
	}
}

// HandleMember reacts to a membership state event. Invites addressed to the
// bot start the join retry loop; other membership changes are classified and
// genuine new joins get announced.
func (b *Bot) HandleMember(ctx context.Context, evt *event.Event) {
	content, ok := evt.Content.Parsed.(*event.MemberEventContent)
	if !ok {
		// Redacted or malformed member events carry no membership state.
		return
	}
	subject := id.UserID(evt.GetStateKey())

	if subject == b.cfg.UserID && content.Membership == event.MembershipInvite {
		b.joiner.HandleInvite(ctx, evt.RoomID)
		return
	}

	change := MemberChange{
		Room:           evt.RoomID,
		Subject:        subject,
		Membership:     content.Membership,
		PrevMembership: prevMembership(evt),
	}
	outcome := ClassifyMemberChange(change, b.cfg.UserID, b.api.IsJoined(ctx, evt.RoomID), &b.cfg.Welcome)
	if outcome.IsSkip() {
		b.log.Trace().
			Stringer("room_id", evt.RoomID).
			Stringer("subject", subject).
			Stringer("reason", outcome).
			Msg("Skipping membership event")
		return
	}

	b.log.Info().
		Stringer("room_id", evt.RoomID).
		Stringer("user_id", subject).
		Msg("User joined room")

	if !b.cfg.Welcome.SendWelcome {
		return
	}
	if err := b.welcomer.Welcome(ctx, evt.RoomID, subject); err != nil {
		b.log.Error().Err(err).
			Stringer("room_id", evt.RoomID).
			Stringer("user_id", subject).
			Msg("Failed to send welcome message")
	}
}

// WaitForJoins blocks until in-flight join retry loops have finished.
func (b *Bot) WaitForJoins() {
	b.joiner.Wait()
}

// prevMembership extracts the previous membership state from the event's
// unsigned prev_content, or "" if there is none. The raw content has to be
// parsed on demand; the syncer only parses the main content.
func prevMembership(evt *event.Event) event.Membership {
	prev := evt.Unsigned.PrevContent
	if prev == nil {
		return ""
	}
	if prev.Parsed == nil {
		if err := prev.ParseRaw(evt.Type); err != nil {
			return ""
		}
	}
	if content, ok := prev.Parsed.(*event.MemberEventContent); ok {
		return content.Membership
	}
	return ""
}

// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package helpbot

import (
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// MemberChange is a membership state transition extracted from a sync event.
// PrevMembership is empty when no prior membership record exists, i.e. the
// event is the first known state for the subject in the room.
type MemberChange struct {
	Room           id.RoomID
	Subject        id.UserID
	Membership     event.Membership
	PrevMembership event.Membership
}

// Outcome is the classifier's verdict for a membership change.
type Outcome int

const (
	// NewJoin means the subject genuinely joined the room and a welcome
	// should be dispatched.
	NewJoin Outcome = iota
	// SkipDisabled: join detection is turned off.
	SkipDisabled
	// SkipNotJoined: the bot is not an active member of the room.
	SkipNotJoined
	// SkipNotMonitored: the room is not in the monitored list.
	SkipNotMonitored
	// SkipSelf: the subject is the bot's own account.
	SkipSelf
	// SkipNotAJoin: the new membership state is not a join.
	SkipNotAJoin
	// SkipRedundantUpdate: the subject was already joined; the event is a
	// profile refresh, not a new join.
	SkipRedundantUpdate
)

func (o Outcome) String() string {
	switch o {
	case NewJoin:
		return "new-join"
	case SkipDisabled:
		return "disabled"
	case SkipNotJoined:
		return "not-joined"
	case SkipNotMonitored:
		return "not-monitored"
	case SkipSelf:
		return "self"
	case SkipNotAJoin:
		return "not-a-join"
	case SkipRedundantUpdate:
		return "redundant-update"
	default:
		return "unknown"
	}
}

// IsSkip reports whether the outcome means no welcome should be sent.
func (o Outcome) IsSkip() bool {
	return o != NewJoin
}

// ClassifyMemberChange decides whether a membership change is a genuine new
// join. botJoined is the state-store answer to "is the bot an active member
// of the room". The checks run in a fixed order so the returned skip reason
// is deterministic.
func ClassifyMemberChange(change MemberChange, botUser id.UserID, botJoined bool, cfg *WelcomeConfig) Outcome {
	if !cfg.Enabled {
		return SkipDisabled
	}
	if !botJoined {
		return SkipNotJoined
	}
	if !cfg.Monitors(change.Room) {
		return SkipNotMonitored
	}
	if change.Subject == botUser {
		return SkipSelf
	}
	if change.Membership != event.MembershipJoin {
		return SkipNotAJoin
	}
	if change.PrevMembership == event.MembershipJoin {
		return SkipRedundantUpdate
	}
	return NewJoin
}

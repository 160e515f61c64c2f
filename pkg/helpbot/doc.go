// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package helpbot implements a Matrix room bot that answers a help command,
// auto-accepts room invitations and optionally announces new room members.
//
// # Core Types
//
// [Bot] is the reaction engine: it routes each sync event to the right
// handler — message events through [ShouldIgnoreSender] to the help command,
// invites for the bot's own account to the [Joiner], and membership changes
// through [ClassifyMemberChange] to the [Welcomer].
//
// [Client] is the boundary adapter around maunium.net/go/mautrix: it owns
// the sync loop and implements the narrow room API (send, join, membership
// query) the handlers call back into.
//
// [Joiner] retries failed joins with exponential backoff, one goroutine per
// invitation, so a slow or failing join never stalls event handling. The
// delay doubles from 2s and the invitation is abandoned once the next delay
// would exceed an hour.
//
// [Welcomer] sends a single welcome message per genuine join. A TTL cache
// suppresses repeats for the same user and room inside the configured dedup
// window; classification already filters profile-update noise via the
// previous membership state.
//
// All handlers share the immutable [Config]; the only mutable state is the
// per-invitation retry progress owned by its goroutine and the welcome dedup
// cache, so routing needs no locking.
//
// # Sub-packages
//
//   - msgfmt renders outgoing text as plain, HTML or Markdown Matrix content.
package helpbot

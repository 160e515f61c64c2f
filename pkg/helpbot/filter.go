// Copyright 2024-2026 Aiku AI

package helpbot

import (
	"strings"

	"maunium.net/go/mautrix/id"
)

// ShouldIgnoreSender reports whether a message sender is filtered out.
// Rules are checked in order: the bot's own account (if ignore_self), the
// explicit ignore list, then the "bot" substring check (if ignore_bots).
// Note that ignore_bots applies to the bot's own ID too: even with
// ignore_self disabled, a bot account whose name contains "bot" is dropped
// by the substring rule.
func ShouldIgnoreSender(sender, botUser id.UserID, cfg *FilterConfig) bool {
	if cfg.IgnoreSelf && sender == botUser {
		return true
	}
	if cfg.IsIgnoredUser(sender) {
		return true
	}
	if cfg.IgnoreBots && strings.Contains(strings.ToLower(string(sender)), "bot") {
		return true
	}
	return false
}

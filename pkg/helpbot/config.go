// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package helpbot

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	up "go.mau.fi/util/configupgrade"
	"gopkg.in/yaml.v3"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/matrix-helpbot/pkg/helpbot/msgfmt"
)

//go:embed example-config.yaml
var ExampleConfig string

// Config holds the bot configuration. Load it with LoadConfig; the struct is
// treated as immutable once PostProcess has run.
type Config struct {
	Homeserver  string      `yaml:"homeserver"`
	UserID      id.UserID   `yaml:"user_id"`
	AccessToken string      `yaml:"access_token"`
	DeviceID    id.DeviceID `yaml:"device_id"`

	HelpFile    string        `yaml:"help_file"`
	HelpFormat  msgfmt.Format `yaml:"help_format"`
	HelpCommand string        `yaml:"help_command"`
	HelpReload  bool          `yaml:"help_reload"`

	LogLevel string `yaml:"log_level"`

	Filtering FilterConfig  `yaml:"filtering"`
	Welcome   WelcomeConfig `yaml:"welcome"`
}

// FilterConfig decides which message senders the bot ignores.
type FilterConfig struct {
	// IgnoreSelf drops messages sent by the bot account itself.
	IgnoreSelf bool `yaml:"ignore_self"`
	// IgnoreBots drops messages from any sender whose user ID contains
	// "bot", case-insensitively.
	IgnoreBots bool `yaml:"ignore_bots"`
	// IgnoredUsers lists exact user IDs to drop.
	IgnoredUsers []id.UserID `yaml:"ignored_users"`

	ignored map[id.UserID]struct{} `yaml:"-"`
}

// IsIgnoredUser reports whether the user is in the configured ignore list.
func (c *FilterConfig) IsIgnoredUser(user id.UserID) bool {
	_, ok := c.ignored[user]
	return ok
}

// WelcomeConfig controls join detection and welcome messages.
type WelcomeConfig struct {
	Enabled        bool          `yaml:"enabled"`
	MonitoredRooms []id.RoomID   `yaml:"monitored_rooms"`
	SendWelcome    bool          `yaml:"send_welcome"`
	Message        string        `yaml:"message"`
	Format         msgfmt.Format `yaml:"format"`
	// DedupWindowSeconds suppresses repeat welcomes for the same user in
	// the same room within the window. 0 disables suppression.
	DedupWindowSeconds int `yaml:"dedup_window_seconds"`

	monitored map[id.RoomID]struct{} `yaml:"-"`
}

// Monitors reports whether the room is watched for joins. An empty
// monitored_rooms list watches every room.
func (c *WelcomeConfig) Monitors(room id.RoomID) bool {
	if len(c.monitored) == 0 {
		return true
	}
	_, ok := c.monitored[room]
	return ok
}

// DedupWindow returns the welcome suppression window as a duration.
func (c *WelcomeConfig) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowSeconds) * time.Second
}

// DefaultConfig returns a config with all optional fields set to their
// defaults. Required fields (homeserver, user_id, access_token, help_file)
// stay empty and must come from the config file or environment.
func DefaultConfig() *Config {
	return &Config{
		DeviceID:    "matrix-helpbot",
		HelpFormat:  msgfmt.FormatPlain,
		HelpCommand: "!help",
		HelpReload:  true,
		LogLevel:    "info",
		Filtering: FilterConfig{
			IgnoreSelf: true,
		},
		Welcome: WelcomeConfig{
			Enabled:            true,
			Message:            "Welcome to the room! Type !help for assistance.",
			Format:             msgfmt.FormatPlain,
			DedupWindowSeconds: 300,
		},
	}
}

// envOverrides are environment variables that take precedence over the
// config file, so secrets can stay out of it. The envconfig prefix is
// MATRIX_HELPBOT, e.g. MATRIX_HELPBOT_ACCESS_TOKEN.
type envOverrides struct {
	Homeserver  string `envconfig:"HOMESERVER"`
	UserID      string `envconfig:"USER_ID"`
	AccessToken string `envconfig:"ACCESS_TOKEN"`
}

// ParseConfig parses YAML config data on top of the defaults and validates
// it. Environment overrides are not applied; LoadConfig does that.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads the config file, applies environment overrides and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var ov envOverrides
	if err := envconfig.Process("matrix_helpbot", &ov); err != nil {
		return fmt.Errorf("failed to read environment overrides: %w", err)
	}
	if ov.Homeserver != "" {
		c.Homeserver = ov.Homeserver
	}
	if ov.UserID != "" {
		c.UserID = id.UserID(ov.UserID)
	}
	if ov.AccessToken != "" {
		c.AccessToken = ov.AccessToken
	}
	return nil
}

// PostProcess validates required fields, normalizes format names and builds
// the lookup sets used by the reaction handlers.
func (c *Config) PostProcess() error {
	if c.Homeserver == "" {
		return fmt.Errorf("missing 'homeserver' in config")
	}
	if c.UserID == "" {
		return fmt.Errorf("missing 'user_id' in config")
	}
	if _, _, err := c.UserID.Parse(); err != nil {
		return fmt.Errorf("invalid 'user_id' %q: %w", c.UserID, err)
	}
	if c.AccessToken == "" {
		return fmt.Errorf("missing 'access_token' in config")
	}
	if c.HelpFile == "" {
		return fmt.Errorf("missing 'help_file' in config")
	}
	if c.HelpCommand == "" {
		c.HelpCommand = "!help"
	}

	var err error
	c.HelpFormat, err = msgfmt.ParseFormat(string(c.HelpFormat))
	if err != nil {
		return fmt.Errorf("invalid 'help_format': %w", err)
	}
	c.Welcome.Format, err = msgfmt.ParseFormat(string(c.Welcome.Format))
	if err != nil {
		return fmt.Errorf("invalid 'welcome.format': %w", err)
	}
	if c.Welcome.DedupWindowSeconds < 0 {
		return fmt.Errorf("'welcome.dedup_window_seconds' must not be negative")
	}

	c.Filtering.ignored = make(map[id.UserID]struct{}, len(c.Filtering.IgnoredUsers))
	for _, user := range c.Filtering.IgnoredUsers {
		c.Filtering.ignored[user] = struct{}{}
	}
	c.Welcome.monitored = make(map[id.RoomID]struct{}, len(c.Welcome.MonitoredRooms))
	for _, room := range c.Welcome.MonitoredRooms {
		c.Welcome.monitored[room] = struct{}{}
	}
	return nil
}

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Str, "homeserver")
	helper.Copy(up.Str, "user_id")
	helper.Copy(up.Str, "access_token")
	helper.Copy(up.Str, "device_id")
	helper.Copy(up.Str, "help_file")
	helper.Copy(up.Str, "help_format")
	helper.Copy(up.Str, "help_command")
	helper.Copy(up.Bool, "help_reload")
	helper.Copy(up.Str, "log_level")
	helper.Copy(up.Bool, "filtering", "ignore_self")
	helper.Copy(up.Bool, "filtering", "ignore_bots")
	helper.Copy(up.List, "filtering", "ignored_users")
	helper.Copy(up.Bool, "welcome", "enabled")
	helper.Copy(up.List, "welcome", "monitored_rooms")
	helper.Copy(up.Bool, "welcome", "send_welcome")
	helper.Copy(up.Str, "welcome", "message")
	helper.Copy(up.Str, "welcome", "format")
	helper.Copy(up.Int, "welcome", "dedup_window_seconds")
}

// UpgradeConfig merges an existing config file into the current example
// config, preserving the user's values and picking up new fields with their
// documented defaults.
func UpgradeConfig(userCfg []byte) ([]byte, error) {
	var base, cfg yaml.Node
	if err := yaml.Unmarshal([]byte(ExampleConfig), &base); err != nil {
		return nil, fmt.Errorf("failed to parse example config: %w", err)
	}
	if err := yaml.Unmarshal(userCfg, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	helper := up.NewHelper(&base, &cfg)
	upgradeConfig(helper)
	out, err := yaml.Marshal(&base)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize upgraded config: %w", err)
	}
	return out, nil
}

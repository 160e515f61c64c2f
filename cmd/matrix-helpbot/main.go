// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command matrix-helpbot is a Matrix chat-room bot that replies to a help
// command with text from a file, auto-accepts room invitations with retry,
// and optionally welcomes new room members.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/aiku/matrix-helpbot/pkg/helpbot"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath     = flag.StringP("config", "c", "config.yaml", "path to the config file")
	generateConfig = flag.Bool("generate-config", false, "write the example config to stdout and exit")
	upgradeConfig  = flag.Bool("upgrade-config", false, "rewrite the config file with new fields added")
	version        = flag.BoolP("version", "v", false, "print the version and exit")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("matrix-helpbot %s (%s, built %s)\n", Tag, Commit, BuildTime)
		return
	}
	if *generateConfig {
		fmt.Print(helpbot.ExampleConfig)
		return
	}

	log := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Stamp,
	}).With().Timestamp().Logger()

	if *upgradeConfig {
		if err := doUpgrade(*configPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to upgrade config")
		}
		log.Info().Str("path", *configPath).Msg("Config upgraded")
		return
	}

	cfg, err := helpbot.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("Invalid log level")
	} else {
		log = log.Level(level)
	}

	help, err := helpbot.LoadHelpText(cfg.HelpFile, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load help text")
	}
	defer help.Close()
	if cfg.HelpReload {
		if err := help.Watch(); err != nil {
			log.Fatal().Err(err).Msg("Failed to watch help file")
		}
	}

	client, err := helpbot.NewClient(cfg, help, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create client")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Sync stopped")
	}
	log.Info().Msg("Shutdown complete")
}

func doUpgrade(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	upgraded, err := helpbot.UpgradeConfig(data)
	if err != nil {
		return err
	}
	return os.WriteFile(path, upgraded, 0o600)
}

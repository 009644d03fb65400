// rtmbot connects to the realtime API and answers chat commands. It is a
// small host for the rtm package: configuration comes from a TOML, YAML or
// JSONC file, RTMBOT_* environment variables and flags, in that order.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	rtm "github.com/relaydesk/rtm-go"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var configPath string

	flagSet := pflag.NewFlagSet("rtmbot", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to a .toml, .yaml or .jsonc config file")
	token := flagSet.String("token", "", "auth token (overrides config and RTMBOT_TOKEN)")
	endpoint := flagSet.String("api-endpoint", "", "web API base URL")
	logLevel := flagSet.String("log-level", "", "debug, info, warn or error")
	compress := flagSet.Bool("compress", false, "offer permessage-deflate")
	prefix := flagSet.String("prefix", "", "command prefix")
	pingInterval := flagSet.Duration("ping-interval", 0, "keepalive ping interval (0 disables)")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	cfg, err := loadConfig(configPath, os.Environ())
	if err != nil {
		return err
	}
	if flagSet.Changed("token") {
		cfg.Token = *token
	}
	if flagSet.Changed("api-endpoint") {
		cfg.APIEndpoint = *endpoint
	}
	if flagSet.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}
	if flagSet.Changed("compress") {
		cfg.Compression = *compress
	}
	if flagSet.Changed("prefix") {
		cfg.Prefix = *prefix
	}
	if flagSet.Changed("ping-interval") {
		cfg.PingInterval = *pingInterval
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := rtm.New(rtm.Config{
		Token:       cfg.Token,
		APIEndpoint: cfg.APIEndpoint,
		Compression: cfg.Compression,
		Logger:      logger,
	}, newBot(cfg.Prefix, logger), stats{})
	if err != nil {
		return err
	}

	if cfg.PingInterval > 0 {
		go keepAlive(ctx, client, cfg.PingInterval)
	}

	final, err := client.Run(ctx)
	logger.Info("exiting", "replies", final.Replies)
	return err
}

// keepAlive posts a keepalive to the client every interval until ctx ends or
// the client closes.
func keepAlive(ctx context.Context, client *rtm.Client[stats], interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if client.State() != rtm.StateConnected {
				continue
			}
			if err := client.Notify(ctx, keepalive{}); err != nil {
				return
			}
		}
	}
}

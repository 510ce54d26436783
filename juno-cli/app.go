// Package junocli holds the boilerplate every junokit binary shares: the
// urfave/cli app, common flags, zerolog setup and CloudWatch metrics.
package junocli

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func App(service Service, action cli.ActionFunc, flags ...cli.Flag) *cli.App {
	return &cli.App{
		Name:                 service.Name,
		Usage:                fmt.Sprintf("%v junokit service", service.Name),
		Version:              service.Version,
		EnableBashCompletion: true,
		Before:               InitCommonOpts,
		Action:               action,
		Flags:                flags,
	}
}

// InitCommonOpts normalises CommonOpts after flag parsing and applies the
// global log level.
func InitCommonOpts(_ *cli.Context) error {
	CommonOpts.Env = strings.TrimSpace(CommonOpts.Env)
	if CommonOpts.Env == "" {
		CommonOpts.Env = "local"
	}

	level := zerolog.InfoLevel
	if CommonOpts.LogLevel != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(CommonOpts.LogLevel))
		if err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", CommonOpts.LogLevel, err)
		}
		level = parsed
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

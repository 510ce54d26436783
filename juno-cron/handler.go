// Package junocron runs scheduled tasks as Lambda functions, or once from
// the console.
package junocron

import (
	"context"
	"encoding/json"
	"time"

	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type RunCallback func(ctx context.Context) error

type Handler struct {
	Logger zerolog.Logger

	service junocli.Service
	runOnce RunCallback
}

func NewHandler(service junocli.Service, runOnce RunCallback) *Handler {
	return &Handler{
		Logger:  junocli.Logger(service),
		service: service,
		runOnce: runOnce,
	}
}

// RunOnce is the Lambda entry point; the scheduled event payload is ignored.
// Each run logs under its own run_id.
func (h *Handler) RunOnce(ctx context.Context, _ json.RawMessage) error {
	logger := h.Logger.With().Str("run_id", uuid.NewString()).Logger()
	ctx = logger.WithContext(ctx)

	start := time.Now()
	logger.Info().Msg("running scheduled task")
	if err := h.runOnce(ctx); err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("scheduled task failed")
		return err
	}
	logger.Info().Dur("elapsed", time.Since(start)).Msg("scheduled task finished")
	return nil
}

func (h *Handler) Start() error {
	if junocli.CommonOpts.Console {
		return h.RunOnce(context.Background(), nil)
	}
	lambda.Start(h.RunOnce)
	return nil
}

package junocron

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

func TestRunOnce(t *testing.T) {
	t.Run("callback sees a run scoped logger", func(t *testing.T) {
		var buf bytes.Buffer
		h := NewHandler(junocli.NewService("sweep"), func(ctx context.Context) error {
			zerolog.Ctx(ctx).Info().Msg("inside")
			return nil
		})
		h.Logger = zerolog.New(&buf)

		assert.Nil(t, h.RunOnce(context.Background(), nil))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		assert.Len(t, lines, 3)
		assert.Contains(t, lines[1], `"run_id"`)
		assert.Contains(t, lines[1], "inside")
	})

	t.Run("errors propagate", func(t *testing.T) {
		boom := errors.New("boom")
		h := NewHandler(junocli.NewService("sweep"), func(context.Context) error { return boom })
		h.Logger = zerolog.Nop()

		err := h.RunOnce(context.Background(), nil)
		assert.True(t, errors.Is(err, boom))
	})

	t.Run("console mode runs once", func(t *testing.T) {
		defer func(v bool) { junocli.CommonOpts.Console = v }(junocli.CommonOpts.Console)
		junocli.CommonOpts.Console = true

		calls := 0
		h := NewHandler(junocli.NewService("sweep"), func(context.Context) error {
			calls++
			return nil
		})
		h.Logger = zerolog.Nop()

		assert.Nil(t, h.Start())
		assert.Equal(t, 1, calls)
	})
}

package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "json")

	log.Debug().Str("project_id", "p1").Msg("pass started")

	out := buf.String()
	assert.Contains(t, out, `"project_id":"p1"`)
	assert.Contains(t, out, `"message":"pass started"`)
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "verbose", "json")
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())

	log.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "console")
	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithContext(context.Background(), New(&buf, "info", "json"))

	log := FromContext(ctx)
	log.Info().Msg("from ctx")
	assert.Contains(t, buf.String(), "from ctx")
}

func TestFromContext_Missing(t *testing.T) {
	log := FromContext(context.Background())
	assert.Equal(t, zerolog.Disabled, log.GetLevel())
}

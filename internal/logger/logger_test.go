package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := NewWithWriter(buf, "debug", FormatJSON)
	require.NoError(t, err)

	log.Debug().Str("statement", "enero").Msg("test message")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test message", entry["message"])
	assert.Equal(t, "enero", entry["statement"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNewWithWriterFiltersLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := NewWithWriter(buf, "warn", FormatConsole)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())
	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	_, err := NewWithWriter(&bytes.Buffer{}, "loud", FormatJSON)
	assert.Error(t, err)
	_, err = NewWithWriter(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}

func TestParseLevelDefault(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, lvl)
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	testLog, err := NewWithWriter(buf, "info", FormatJSON)
	require.NoError(t, err)
	ctx := WithContext(context.Background(), testLog)

	log := FromContext(ctx)
	log.Info().Msg("test")
	assert.NotZero(t, buf.Len())
}

func TestFromContextDefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	assert.NotEqual(t, zerolog.Disabled, log.GetLevel())
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	base, err := NewWithWriter(buf, "info", FormatJSON)
	require.NoError(t, err)

	WithFields(base, map[string]interface{}{"gcs_uri": "gs://b/o", "page": 2}).Info().Msg("x")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "gs://b/o", entry["gcs_uri"])
	assert.EqualValues(t, 2, entry["page"])
}

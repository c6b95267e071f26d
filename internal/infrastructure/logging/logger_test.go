package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantWarn  bool
	}{
		{"", false, true},
		{"debug", true, true},
		{"error", false, false},
		{"nonsense", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Level: tt.level, Output: &buf, JSON: true})

			log.Debug().Str(FieldEvent, "dbg").Msg("debug line")
			assert.Equal(t, tt.wantDebug, strings.Contains(buf.String(), `"dbg"`))

			buf.Reset()
			log.Warn().Str(FieldEvent, "wrn").Msg("warn line")
			assert.Equal(t, tt.wantWarn, strings.Contains(buf.String(), `"wrn"`))
		})
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := WithComponent(New(Config{Level: "info", Output: &buf, JSON: true}), "refs")
	log.Info().Str(FieldEvent, "refs.resolve").Msg("resolved")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "refs", entry[FieldComponent])
	assert.Equal(t, "refs.resolve", entry[FieldEvent])
	assert.Equal(t, "gitty", entry["service"])
}

func TestConsoleWriter(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf, NoColor: true})
	log.Warn().Str(FieldEvent, "pack.skip").Msg("index without pack file")

	out := buf.String()
	assert.Contains(t, out, "WRN")
	assert.Contains(t, out, "index without pack file")
	assert.Contains(t, out, "event=pack.skip")
	assert.NotContains(t, out, "\x1b[")
}

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)
	log.Debug("scan", "files", 3)
	log.Info("scan")
	assert.Empty(t, buf.String())

	log.Warn("pricing_cache", "err", "stale")
	assert.Contains(t, buf.String(), `level=WARN msg=pricing_cache err=stale`)

	buf.Reset()
	log = New(&buf, true)
	log.Debug("scan", "files", 3)
	log.Info("done")
	assert.Contains(t, buf.String(), "level=DEBUG msg=scan files=3")
	assert.Contains(t, buf.String(), "level=INFO msg=done")
}

func TestDiscard(t *testing.T) {
	log := Discard()
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
	log.Warn("noop", "x", 1)
}

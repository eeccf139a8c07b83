package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetLevel(LevelInfo) })

	SetLevel(LevelInfo)
	Debug("hidden", "k", 1)
	Info("shown", "events", 3)
	Error("failed", errors.New("boom"), "id", "x")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown events=3")
	assert.Contains(t, out, "level=ERROR msg=failed err=boom id=x")

	buf.Reset()
	SetLevel(LevelDebug)
	Debug("visible")
	assert.Contains(t, buf.String(), "level=DEBUG msg=visible")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" Warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

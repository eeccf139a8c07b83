package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsNormalize(t *testing.T) {
	o := Options{URL: "http://127.0.0.1:8080/calendar", OutputPath: "out.png"}
	require.NoError(t, o.normalize())
	assert.Equal(t, DefaultWidth, o.Width)
	assert.Equal(t, DefaultHeight, o.Height)
	assert.Equal(t, 30*time.Second, o.Timeout)

	o = Options{URL: "x", OutputPath: "y", Width: 800, Height: 600, Timeout: time.Second}
	require.NoError(t, o.normalize())
	assert.Equal(t, 800, o.Width)
	assert.Equal(t, time.Second, o.Timeout)
}

func TestOptionsTasks(t *testing.T) {
	var png []byte
	plain := Options{URL: "x", OutputPath: "y"}
	authed := Options{URL: "x", OutputPath: "y", Username: "u", Password: "p"}

	assert.Len(t, authed.tasks(&png), len(plain.tasks(&png))+1)
}

func TestSnapshot_RequiresURLAndOutput(t *testing.T) {
	assert.ErrorContains(t, Snapshot(context.Background(), Options{OutputPath: "y"}), "URL is required")
	assert.ErrorContains(t, Snapshot(context.Background(), Options{URL: "x"}), "OutputPath is required")
}

package browser

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
)

func TestShouldBlock_NeverMedia(t *testing.T) {
	set := blockSet([]string{"Images", " fonts ", "media"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.True(t, shouldBlock(set, proto.NetworkResourceTypeImage))
	assert.True(t, shouldBlock(set, proto.NetworkResourceTypeFont))
	assert.False(t, shouldBlock(set, proto.NetworkResourceTypeMedia))
	assert.False(t, shouldBlock(set, proto.NetworkResourceTypeScript))
	assert.False(t, shouldBlock(set, proto.NetworkResourceTypeDocument))
	assert.NotContains(t, set, "media")
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeHeadful, ParseMode("headful"))
	assert.Equal(t, ModeHeadless, ParseMode("headless"))
	assert.Equal(t, ModeHeadless, ParseMode(""))
	assert.Equal(t, "headful", ModeHeadful.String())
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.defaults()
	assert.Equal(t, 4*time.Hour, c.RecycleInterval)
	assert.Equal(t, ":99", c.XvfbDisplay)
	assert.Equal(t, 30*time.Second, c.NavigateTimeout)
	assert.NotNil(t, c.Logger)
}

func TestManager_ClosedRefusesStart(t *testing.T) {
	m := NewManager(Config{})
	assert.Nil(t, m.Browser())
	assert.Zero(t, m.Uptime())
	assert.NoError(t, m.Close())

	_, err := m.Start(t.Context())
	assert.Error(t, err)
	assert.Error(t, m.Recycle(t.Context()))
}

package config

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/nextplay/dbopen"
)

func newStore(t *testing.T) *PageStore {
	t.Helper()
	s, err := NewPageStore(dbopen.OpenMemory(t))
	require.NoError(t, err)
	return s
}

func TestPageStore_PutDisableActive(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Put(ctx, PageConfig{ID: "b", URL: "https://lms.example/b"}))
	require.NoError(t, s.Put(ctx, PageConfig{ID: "a", URL: "https://lms.example/a"}))
	require.NoError(t, s.Put(ctx, PageConfig{ID: "a", URL: "https://lms.example/a2"}))

	pages, err := s.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, []PageConfig{
		{ID: "a", URL: "https://lms.example/a2"},
		{ID: "b", URL: "https://lms.example/b"},
	}, pages)

	require.NoError(t, s.Disable(ctx, "b"))
	require.NoError(t, s.Disable(ctx, "missing"))
	pages, err = s.Active(ctx)
	require.NoError(t, err)
	assert.Len(t, pages, 1)

	assert.Error(t, s.Put(ctx, PageConfig{ID: "x"}))
}

func TestPageStore_VersionAdvancesOnWrite(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	v0, err := s.Version(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, PageConfig{ID: "a", URL: "https://lms.example/a"}))
	v1, err := s.Version(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, v0, v1)
}

func TestPageStore_WatchReloadsOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newStore(t)

	var mu sync.Mutex
	var seen [][]PageConfig
	go s.Watch(ctx, WatchOptions{Interval: 10 * time.Millisecond}, func(p []PageConfig) error {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
		return nil
	})

	calls := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(seen)
	}
	require.Eventually(t, func() bool { return calls() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Put(ctx, PageConfig{ID: "a", URL: "https://lms.example/a"}))
	require.Eventually(t, func() bool { return calls() == 2 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	last := seen[len(seen)-1]
	mu.Unlock()
	require.Len(t, last, 1)
	assert.Equal(t, "a", last[0].ID)
}

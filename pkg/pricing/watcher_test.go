package pricing

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platinummonkey/basekeeper/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replaceFile swaps the file in atomically so the watcher never reads a
// truncated catalog
func replaceFile(path, content string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writeCatalog(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, replaceFile(path, content))
}

func TestNewWatcher_RequiresValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	_, err := NewWatcher(path, logger)
	assert.Error(t, err)

	writeCatalog(t, path, "price_per_member_monthly: 3")
	w, err := NewWatcher(path, logger)
	require.NoError(t, err)
	assert.Equal(t, 3.0, w.Current().PricePerMemberMonthly)
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	writeCatalog(t, path, "price_per_member_monthly: 1")

	w, err := NewWatcher(path, observability.NewLogger(observability.ErrorLevel, io.Discard))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	// Keep rewriting until the watcher has registered and picked it up
	assert.Eventually(t, func() bool {
		_ = replaceFile(path, "price_per_member_monthly: 2")
		return w.Current().PricePerMemberMonthly == 2
	}, 5*time.Second, 50*time.Millisecond)

	// An invalid file keeps the previous catalog
	writeCatalog(t, path, "price_per_member_monthly: -5")
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 2.0, w.Current().PricePerMemberMonthly)

	assert.Eventually(t, func() bool {
		_ = replaceFile(path, "price_per_member_monthly: 4")
		return w.Current().PricePerMemberMonthly == 4
	}, 5*time.Second, 50*time.Millisecond)
}

func TestStatic(t *testing.T) {
	catalog := DefaultCatalog()
	var source Source = Static{Catalog: catalog}
	assert.Same(t, catalog, source.Current())
}

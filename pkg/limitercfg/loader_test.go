package limitercfg_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snok/self-limiters/pkg/limitercfg"
)

const sampleYAML = `
store_url: redis://localhost:6379/0
semaphores:
  - name: db-connections
    capacity: 10
    ttl: 30s
    max_sleep: 5s
buckets:
  - name: api-calls
    capacity: 100
    refill_frequency: 1s
    refill_amount: 100
    max_sleep: 2s
`

func writeTempFile(t *testing.T, name, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := writeTempFile(t, "config.yaml", sampleYAML)

	loader, err := limitercfg.Load(path)
	require.NoError(t, err)

	set := loader.Current()
	require.Len(t, set.Semaphores, 1)
	require.Len(t, set.Buckets, 1)

	assert.Equal(t, "db-connections", set.Semaphores[0].Name)
	assert.Equal(t, 10, set.Semaphores[0].Capacity)
	assert.Equal(t, 30*time.Second, set.Semaphores[0].TTL)

	assert.Equal(t, "api-calls", set.Buckets[0].Name)
	assert.Equal(t, 100, set.Buckets[0].RefillAmount)
	assert.Equal(t, time.Second, set.Buckets[0].RefillFrequency)
}

func TestLoad_RejectsEmptyPath(t *testing.T) {
	_, err := limitercfg.Load("")
	require.ErrorIs(t, err, limitercfg.ErrEmptyPath)
}

func TestLoad_RejectsUnknownExtension(t *testing.T) {
	path := writeTempFile(t, "config.toml", "x = 1")
	_, err := limitercfg.Load(path)
	require.ErrorIs(t, err, limitercfg.ErrUnsupportedFormat)
}

func TestLoader_Reload(t *testing.T) {
	path := writeTempFile(t, "config.yaml", sampleYAML)
	loader, err := limitercfg.Load(path)
	require.NoError(t, err)

	updated := `
semaphores:
  - name: db-connections
    capacity: 20
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.NoError(t, loader.Reload())

	assert.Equal(t, 20, loader.Current().Semaphores[0].Capacity)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := writeTempFile(t, "config.yaml", sampleYAML)
	loader, err := limitercfg.Load(path)
	require.NoError(t, err)

	reloaded := make(chan *limitercfg.Set, 1)
	w, err := limitercfg.Watch(loader, func(set *limitercfg.Set, err error) {
		if err == nil {
			reloaded <- set
		}
	}, limitercfg.WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	time.Sleep(20 * time.Millisecond) // let the watch loop start
	updated := `
semaphores:
  - name: db-connections
    capacity: 99
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case set := <-reloaded:
		assert.Equal(t, 99, set.Semaphores[0].Capacity)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never reloaded after file write")
	}
}

func TestWatch_StopIsIdempotent(t *testing.T) {
	path := writeTempFile(t, "config.yaml", sampleYAML)
	loader, err := limitercfg.Load(path)
	require.NoError(t, err)

	w, err := limitercfg.Watch(loader, func(*limitercfg.Set, error) {})
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

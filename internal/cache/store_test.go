package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipescrape/recipescrape/pkg/errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestStore returns a store whose sweeper effectively never fires on its own
func newTestStore(t *testing.T, clock *fakeClock, opts ...Option) *Store {
	t.Helper()

	cfg := &Config{
		Path:          filepath.Join(t.TempDir(), "cache.json"),
		SweepInterval: time.Hour,
	}
	if clock != nil {
		opts = append(opts, WithClock(clock.Now))
	}
	store, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewAppliesDefaults(t *testing.T) {
	store := newTestStore(t, nil)

	cfg := store.Config()
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, DefaultSweepInterval, DefaultConfig().SweepInterval)
	assert.Equal(t, DefaultTTL, cfg.DefaultTTL)
	assert.Equal(t, 60*time.Second, cfg.DefaultTTL)
	assert.Equal(t, 0, store.Len())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(&Config{Path: filepath.Join(t.TempDir(), "c.json"), SweepInterval: -time.Second})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))

	_, err = New(&Config{Path: filepath.Join(t.TempDir(), "c.json"), DefaultTTL: -time.Second})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidTTL))
}

func TestNamespaceValidation(t *testing.T) {
	store := newTestStore(t, nil)

	tests := []struct {
		name    string
		wantErr bool
	}{
		{"mealie", false},
		{"bbcgoodfood", false},
		{"recipe_tin_eats", false},
		{"", true},
		{"bbc-good-food", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.name), func(t *testing.T) {
			ns, err := store.Namespace(tt.name)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidNamespace))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, ns.Name())
		})
	}

	assert.Panics(t, func() { store.MustNamespace("a-b") })
}

func TestSetAndGet(t *testing.T) {
	store := newTestStore(t, newFakeClock())
	ns := store.MustNamespace("mealie")

	tests := []struct {
		key   string
		value interface{}
		want  string
	}{
		{"string", "hello", `"hello"`},
		{"number", 42, `42`},
		{"list", []int{1, 2, 3}, `[1,2,3]`},
		{"map", map[string]string{"a": "b"}, `{"a":"b"}`},
		{"null", nil, `null`},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			require.NoError(t, ns.Set(tt.key, tt.value, time.Minute))

			got, ok := ns.Get(tt.key)
			require.True(t, ok)
			assert.JSONEq(t, tt.want, string(got))
		})
	}

	got, ok := ns.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestNamespaceIsolation(t *testing.T) {
	store := newTestStore(t, newFakeClock())
	modA := store.MustNamespace("modA")
	modB := store.MustNamespace("modB")

	require.NoError(t, modA.Set("ids", []int{1, 2, 3}, time.Minute))

	got, ok := modA.Get("ids")
	require.True(t, ok)
	assert.JSONEq(t, `[1,2,3]`, string(got))

	_, ok = modB.Get("ids")
	assert.False(t, ok, "modB must not see modA's entry")

	require.NoError(t, modB.Set("ids", "other", time.Minute))
	got, _ = modA.Get("ids")
	assert.JSONEq(t, `[1,2,3]`, string(got), "writing modB must not touch modA")
}

func TestSetOverwrites(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, clock)
	ns := store.MustNamespace("mealie")

	require.NoError(t, ns.Set("k", "first", time.Second))
	require.NoError(t, ns.Set("k", "second", time.Hour))

	got, ok := ns.Get("k")
	require.True(t, ok)
	assert.JSONEq(t, `"second"`, string(got))

	clock.Advance(2 * time.Second)
	assert.True(t, ns.Exists("k"), "overwrite must replace the expiry too")
	assert.Equal(t, 1, store.Len())
}

func TestSetRejectsNegativeTTL(t *testing.T) {
	store := newTestStore(t, nil)
	ns := store.MustNamespace("mealie")

	err := ns.Set("k", "v", -time.Second)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidTTL))
	assert.False(t, ns.Exists("k"))
}

func TestSetRejectsUnencodableValue(t *testing.T) {
	store := newTestStore(t, nil)
	ns := store.MustNamespace("mealie")

	err := ns.Set("k", make(chan int), time.Minute)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidValue))
	assert.False(t, ns.Exists("k"))
}

func TestPutUsesDefaultTTL(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, clock)
	ns := store.MustNamespace("mealie")

	require.NoError(t, ns.Put("k", true))

	ttl, ok := ns.TTL("k")
	require.True(t, ok)
	assert.Equal(t, DefaultTTL, ttl)

	clock.Advance(DefaultTTL)
	assert.False(t, ns.Exists("k"))
}

func TestExpiredEntriesAreAbsentBeforeSweep(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, clock)
	ns := store.MustNamespace("mealie")

	require.NoError(t, ns.Set("k", "v", 10*time.Second))
	clock.Advance(10 * time.Second)

	_, ok := ns.Get("k")
	assert.False(t, ok)
	assert.False(t, ns.Exists("k"))
	assert.Empty(t, ns.GetAll())
	assert.Empty(t, ns.Keys())
	assert.Equal(t, 0, store.Len())
}

func TestZeroTTLExpiresImmediately(t *testing.T) {
	store := newTestStore(t, newFakeClock())
	ns := store.MustNamespace("mealie")

	require.NoError(t, ns.Set("k", "v", 0))
	assert.False(t, ns.Exists("k"))
}

func TestRemove(t *testing.T) {
	store := newTestStore(t, nil)
	ns := store.MustNamespace("mealie")

	require.NoError(t, ns.Set("k", "v", time.Minute))
	ns.Remove("k")
	assert.False(t, ns.Exists("k"))

	// Removing an absent key is a no-op
	ns.Remove("k")
	ns.Remove("never-set")
}

func TestClearIsScopedToNamespace(t *testing.T) {
	store := newTestStore(t, nil)
	modA := store.MustNamespace("modA")
	modB := store.MustNamespace("modB")

	require.NoError(t, modA.Set("x", 1, time.Minute))
	require.NoError(t, modA.Set("y", 2, time.Minute))
	require.NoError(t, modB.Set("x", 3, time.Minute))

	modA.Clear()

	assert.Empty(t, modA.Keys())
	got, ok := modB.Get("x")
	require.True(t, ok)
	assert.JSONEq(t, `3`, string(got))
	assert.Equal(t, []string{"modB"}, store.Namespaces())
}

func TestGetAllAndKeys(t *testing.T) {
	store := newTestStore(t, nil)
	ns := store.MustNamespace("mealie")
	other := store.MustNamespace("other")

	require.NoError(t, ns.Set("b", "2", time.Minute))
	require.NoError(t, ns.Set("a", "1", time.Minute))
	require.NoError(t, other.Set("c", "3", time.Minute))

	all := ns.GetAll()
	require.Len(t, all, 2)
	assert.JSONEq(t, `"1"`, string(all["a"]))
	assert.JSONEq(t, `"2"`, string(all["b"]))

	assert.Equal(t, []string{"a", "b"}, ns.Keys())
	assert.Equal(t, []string{"mealie", "other"}, store.Namespaces())
}

func TestGetReturnsCopy(t *testing.T) {
	store := newTestStore(t, nil)
	ns := store.MustNamespace("mealie")

	require.NoError(t, ns.Set("k", "abc", time.Minute))

	got, _ := ns.Get("k")
	got[1] = 'X'

	again, _ := ns.Get("k")
	assert.JSONEq(t, `"abc"`, string(again))
}

func TestLookup(t *testing.T) {
	store := newTestStore(t, nil)
	ns := store.MustNamespace("mealie")

	require.NoError(t, ns.Set("slugs", []string{"pasta", "soup"}, time.Minute))

	slugs, ok, err := Lookup[[]string](ns, "slugs")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"pasta", "soup"}, slugs)

	_, ok, err = Lookup[[]string](ns, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = Lookup[int](ns, "slugs")
	assert.True(t, ok)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidValue))
}

func TestStats(t *testing.T) {
	store := newTestStore(t, nil)
	ns := store.MustNamespace("mealie")

	require.NoError(t, ns.Set("k", "v", time.Minute))
	ns.Get("k")
	ns.Get("k")
	ns.Get("missing")

	stats := store.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 1, stats.Namespaces)
	assert.Equal(t, uint64(1), stats.Sets)
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 0.0001)
}

func TestCloseIsIdempotentAndStoreStaysUsable(t *testing.T) {
	store := newTestStore(t, nil)
	ns := store.MustNamespace("mealie")

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	require.NoError(t, ns.Set("k", "v", time.Minute))
	assert.True(t, ns.Exists("k"))
	require.NoError(t, store.Flush())
}

func TestConcurrentAccess(t *testing.T) {
	store, err := New(&Config{
		Path:          filepath.Join(t.TempDir(), "cache.json"),
		SweepInterval: time.Millisecond,
	})
	require.NoError(t, err)
	defer store.Close()

	const workers = 8
	const ops = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ns := store.MustNamespace(fmt.Sprintf("worker%d", w))
			for i := 0; i < ops; i++ {
				key := fmt.Sprintf("k%d", i%10)
				_ = ns.Set(key, i, time.Duration(i%3)*time.Millisecond)
				ns.Get(key)
				ns.Exists(key)
				if i%25 == 0 {
					ns.GetAll()
					ns.Clear()
				}
			}
		}(w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_ = store.Flush()
			store.Stats()
		}
	}()

	wg.Wait()

	_, err = os.Stat(store.Config().Path)
	assert.NoError(t, err)
}

func TestSnapshotValueParity(t *testing.T) {
	// Values written through Set must decode the same after a snapshot cycle
	store := newTestStore(t, nil)
	ns := store.MustNamespace("mealie")

	value := map[string]interface{}{"name": "flour", "qty": 2.5, "tags": []interface{}{"dry"}}
	require.NoError(t, ns.Set("item", value, time.Hour))
	require.NoError(t, store.Flush())

	reloaded, err := New(&Config{Path: store.Config().Path, SweepInterval: time.Hour})
	require.NoError(t, err)
	defer reloaded.Close()

	got, ok := reloaded.MustNamespace("mealie").Get("item")
	require.True(t, ok)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(got, &decoded))
	assert.Equal(t, value, decoded)
}

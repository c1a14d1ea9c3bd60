package storage

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Adapter fixtures
// --------------------------------------------------------------------------

type adapterFactory struct {
	name string
	open func(t *testing.T) Adapter
}

func adapterFactories() []adapterFactory {
	return []adapterFactory{
		{"memory", func(t *testing.T) Adapter {
			return NewMemoryAdapter()
		}},
		{"file", func(t *testing.T) Adapter {
			a, err := NewFileAdapter(t.TempDir())
			require.NoError(t, err)
			return a
		}},
		{"bolt", func(t *testing.T) Adapter {
			a, err := OpenBoltAdapter(filepath.Join(t.TempDir(), "wallet.db"))
			require.NoError(t, err)
			return a
		}},
		{"badger", func(t *testing.T) Adapter {
			a, err := OpenBadgerAdapter("", nil)
			require.NoError(t, err)
			return a
		}},
		{"redis", func(t *testing.T) Adapter {
			mr, err := miniredis.Run()
			require.NoError(t, err)
			t.Cleanup(mr.Close)
			return NewRedisAdapter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
		}},
		{"sqlite", func(t *testing.T) Adapter {
			a, err := OpenSQLAdapter("")
			require.NoError(t, err)
			return a
		}},
	}
}

func openAdapter(t *testing.T, f adapterFactory) Adapter {
	t.Helper()
	a := f.open(t)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// --------------------------------------------------------------------------
// Conformance
// --------------------------------------------------------------------------

func TestAdapters_Conformance(t *testing.T) {
	for _, f := range adapterFactories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("ID", func(t *testing.T) {
				assert.Equal(t, f.name, openAdapter(t, f).ID())
			})

			t.Run("GetMissing", func(t *testing.T) {
				_, err := openAdapter(t, f).Get(ctx, "nope")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("SetGetOverwrite", func(t *testing.T) {
				a := openAdapter(t, f)
				require.NoError(t, a.Set(ctx, "account-0", []byte(`{"a":1}`)))
				got, err := a.Get(ctx, "account-0")
				require.NoError(t, err)
				assert.Equal(t, []byte(`{"a":1}`), got)

				require.NoError(t, a.Set(ctx, "account-0", []byte(`{"a":2}`)))
				got, err = a.Get(ctx, "account-0")
				require.NoError(t, err)
				assert.Equal(t, []byte(`{"a":2}`), got)
			})

			t.Run("BatchSet", func(t *testing.T) {
				a := openAdapter(t, f)
				require.NoError(t, a.BatchSet(ctx, map[string][]byte{
					"account-0":         []byte("x"),
					"account-0-outputs": []byte("y"),
					"accounts":          []byte("z"),
				}))
				keys, err := a.Keys(ctx)
				require.NoError(t, err)
				assert.Equal(t, []string{"account-0", "account-0-outputs", "accounts"}, keys)
			})

			t.Run("RemoveIdempotent", func(t *testing.T) {
				a := openAdapter(t, f)
				require.NoError(t, a.Set(ctx, "k", []byte("v")))
				require.NoError(t, a.Remove(ctx, "k"))
				require.NoError(t, a.Remove(ctx, "k"))
				_, err := a.Get(ctx, "k")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("EmptyKey", func(t *testing.T) {
				a := openAdapter(t, f)
				assert.ErrorIs(t, a.Set(ctx, "", []byte("v")), ErrEmptyKey)
				_, err := a.Get(ctx, "")
				assert.ErrorIs(t, err, ErrEmptyKey)
				assert.ErrorIs(t, a.Remove(ctx, ""), ErrEmptyKey)
				assert.ErrorIs(t, a.BatchSet(ctx, map[string][]byte{"": nil}), ErrEmptyKey)
			})

			t.Run("BinaryValue", func(t *testing.T) {
				a := openAdapter(t, f)
				value := []byte{0x00, 0xff, 0x10, 0x00}
				require.NoError(t, a.Set(ctx, "bin", value))
				got, err := a.Get(ctx, "bin")
				require.NoError(t, err)
				assert.Equal(t, value, got)
			})
		})
	}
}

// --------------------------------------------------------------------------
// Backend specifics
// --------------------------------------------------------------------------

func TestFileAdapter_EmptyBaseDir(t *testing.T) {
	_, err := NewFileAdapter("")
	assert.ErrorIs(t, err, ErrInvalidBaseDir)
}

func TestKeyToPath_Sharded(t *testing.T) {
	p := KeyToPath("/base", "account-0")
	assert.Equal(t, "/base", filepath.Dir(filepath.Dir(p)))
	assert.Len(t, filepath.Base(filepath.Dir(p)), 2)
	assert.Equal(t, "6163636f756e742d30", filepath.Base(p))
}

func TestFileAdapter_DirectoryLock(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no flock on windows")
	}
	ctx := context.Background()
	dir := t.TempDir()

	a, err := NewFileAdapter(dir)
	require.NoError(t, err)
	require.NoError(t, a.Set(ctx, "accounts", []byte("[0]")))

	_, err = NewFileAdapter(dir)
	assert.ErrorIs(t, err, ErrLocked)

	// The lock file is not a record.
	keys, err := a.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"accounts"}, keys)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	b, err := NewFileAdapter(dir)
	require.NoError(t, err)
	defer b.Close()
	got, err := b.Get(ctx, "accounts")
	require.NoError(t, err)
	assert.Equal(t, []byte("[0]"), got)
}

func TestBoltAdapter_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "wallet.db")

	a, err := OpenBoltAdapter(path)
	require.NoError(t, err)
	require.NoError(t, a.Set(ctx, "accounts", []byte("[0]")))
	require.NoError(t, a.Close())

	b, err := OpenBoltAdapter(path)
	require.NoError(t, err)
	defer b.Close()
	got, err := b.Get(ctx, "accounts")
	require.NoError(t, err)
	assert.Equal(t, []byte("[0]"), got)
}

func TestSQLAdapter_SeparateMemoryDatabases(t *testing.T) {
	ctx := context.Background()
	a, err := OpenSQLAdapter("")
	require.NoError(t, err)
	defer a.Close()
	b, err := OpenSQLAdapter("")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Set(ctx, "k", []byte("v")))
	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisAdapter_Prefix(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	a := NewRedisAdapter(client, "w1:")
	defer a.Close()

	require.NoError(t, a.Set(ctx, "accounts", []byte("[]")))
	assert.True(t, mr.Exists("w1:accounts"))

	// Keys outside the prefix are invisible.
	require.NoError(t, mr.Set("other", "x"))
	keys, err := a.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"accounts"}, keys)
}

func TestDialRedisAdapter_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = DialRedisAdapter(context.Background(), addr, "")
	assert.ErrorIs(t, err, ErrIOFailure)
}

func TestOpenAdapter(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, backend := range []string{BackendMemory, BackendFile, BackendBolt, BackendBadger, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			a, err := OpenAdapter(ctx, AdapterConfig{Backend: backend, Dir: filepath.Join(dir, backend)})
			require.NoError(t, err)
			defer a.Close()
			assert.Equal(t, backend, a.ID())
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := OpenAdapter(ctx, AdapterConfig{Backend: "tape"})
		assert.ErrorIs(t, err, ErrUnknownBackend)
	})

	t.Run("file needs dir", func(t *testing.T) {
		_, err := OpenAdapter(ctx, AdapterConfig{Backend: BackendFile})
		assert.ErrorIs(t, err, ErrInvalidBaseDir)
	})
}

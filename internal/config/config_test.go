package config

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("REASY_TEST_SECRET", "s3cret")
	path := writeFile(t, dir, "config.yaml", `
http:
  port: 9000
database:
  path: `+filepath.Join(dir, "data", "reasy.db")+`
auth:
  jwt_secret: ${REASY_TEST_SECRET}
booking:
  lock_ttl_seconds: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 3*time.Second, cfg.BookingLockTTL())
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL())
	assert.Equal(t, 3, cfg.Booking.VisibleDaysRadius)
	assert.Equal(t, "configs/businesses.yaml", cfg.Catalog.Path)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout())
	assert.Equal(t, 14*24*time.Hour, cfg.BackupRetention())
	assert.Equal(t, 365, cfg.Audit.RetentionDays)
	assert.DirExists(t, filepath.Join(dir, "data"))

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

const catalogYAML = `
defaults:
  working_hours: "09:00-17:00"
  reservation_time: 30
businesses:
  - username: labellaitalia
    password: "123"
    name: La Bella Italia
    category: Restaurants
  - username: grandhotel
    password: "123"
    name: Grand Hotel
    category: Hotels
    working_hours: "09:00-18:00"
    reservation_time: 60
clients:
  - username: demo
    password: demo
`

func TestLoadCatalog(t *testing.T) {
	path := writeFile(t, t.TempDir(), "businesses.yaml", catalogYAML)

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, cat.Businesses, 2)
	assert.Equal(t, "09:00-17:00", cat.Businesses[0].WorkingHours)
	assert.Equal(t, 30, cat.Businesses[0].ReservationDuration)
	assert.Equal(t, 60, cat.Businesses[1].ReservationDuration)
	require.Len(t, cat.Clients, 1)
}

func TestCatalogValidate(t *testing.T) {
	base := func() Catalog {
		return Catalog{Businesses: []BusinessEntry{{
			Username: "a", Password: "p", Name: "A", Category: "C",
			WorkingHours: "09:00-17:00", ReservationDuration: 30,
		}}}
	}

	tests := []struct {
		name   string
		mutate func(c *Catalog)
	}{
		{"missing username", func(c *Catalog) { c.Businesses[0].Username = " " }},
		{"missing password", func(c *Catalog) { c.Businesses[0].Password = "" }},
		{"missing name", func(c *Catalog) { c.Businesses[0].Name = "" }},
		{"missing category", func(c *Catalog) { c.Businesses[0].Category = "" }},
		{"bad hours", func(c *Catalog) { c.Businesses[0].WorkingHours = "9-5" }},
		{"closed window", func(c *Catalog) { c.Businesses[0].WorkingHours = "17:00-09:00" }},
		{"duplicate username", func(c *Catalog) {
			c.Clients = append(c.Clients, ClientEntry{Username: "a", Password: "x"})
		}},
	}

	ok := base()
	require.NoError(t, ok.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

// syncBuffer lets the watcher goroutine log while the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func touch(t *testing.T, path string, ahead time.Duration) {
	t.Helper()
	at := time.Now().Add(ahead)
	require.NoError(t, os.Chtimes(path, at, at))
}

func TestWatchCatalog(t *testing.T) {
	path := writeFile(t, t.TempDir(), "businesses.yaml", catalogYAML)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out syncBuffer
	logger := zerolog.New(&out)

	var calls atomic.Int32
	var last atomic.Pointer[Catalog]
	var versions sync.Map
	err := WatchCatalog(ctx, path, 10*time.Millisecond, &logger, func(c *Catalog, v CatalogVersion) error {
		n := calls.Load() + 1
		versions.Store(n, v)
		last.Store(c)
		calls.Store(n)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, out.String(), "catalog version applied")

	updated := catalogYAML + `  - username: second
    password: two
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	touch(t, path, time.Minute)

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, last.Load().Clients, 2)

	first, _ := versions.Load(int32(1))
	second, _ := versions.Load(int32(2))
	assert.NotEqual(t, first.(CatalogVersion).Digest, second.(CatalogVersion).Digest)
	assert.Contains(t, out.String(), second.(CatalogVersion).Digest)
}

func TestWatchCatalog_InvalidEditKeepsApplied(t *testing.T) {
	path := writeFile(t, t.TempDir(), "businesses.yaml", catalogYAML)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out syncBuffer
	logger := zerolog.New(&out)

	var calls atomic.Int32
	err := WatchCatalog(ctx, path, 10*time.Millisecond, &logger, func(*Catalog, CatalogVersion) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	broken := strings.Replace(catalogYAML, `working_hours: "09:00-18:00"`, `working_hours: "09:00-25:00"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(broken), 0o644))
	touch(t, path, time.Minute)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "catalog rejected")
	}, 2*time.Second, 10*time.Millisecond)
	logged := out.String()
	assert.Contains(t, logged, path)
	assert.Contains(t, logged, "grandhotel")
	assert.Equal(t, int32(1), calls.Load())

	// the same bad content under a new mtime is not reported again
	touch(t, path, 2*time.Minute)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, strings.Count(out.String(), "catalog rejected"))

	require.NoError(t, os.WriteFile(path, []byte(catalogYAML+"  - username: fixed\n    password: x\n"), 0o644))
	touch(t, path, 3*time.Minute)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatchCatalog_ApplyError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "businesses.yaml", catalogYAML)
	logger := zerolog.Nop()

	err := WatchCatalog(context.Background(), path, time.Hour, &logger, func(*Catalog, CatalogVersion) error {
		return errors.New("database is locked")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")

	err = WatchCatalog(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), time.Hour, &logger, nil)
	require.Error(t, err)
}

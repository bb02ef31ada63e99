package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// CatalogVersion identifies one revision of the catalog file.
type CatalogVersion struct {
	ModTime time.Time
	Digest  string // hex sha256 prefix of the file content
}

func (v CatalogVersion) String() string {
	return fmt.Sprintf("%s@%s", v.Digest, v.ModTime.UTC().Format(time.RFC3339))
}

func catalogDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:6])
}

// WatchCatalog loads businesses.yaml, hands it to apply and keeps polling the
// file every interval until ctx is done. A revision is applied only when its
// content changed and it parses and validates; otherwise the previous catalog
// stays in effect and the failure is logged once per revision. The initial
// load must succeed.
func WatchCatalog(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, apply func(*Catalog, CatalogVersion) error) error {
	if path == "" {
		path = "configs/businesses.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	w := &catalogWatcher{path: path, logger: logger, apply: apply}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat catalog: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		return err
	}
	w.lastMod = info.ModTime()
	if err := w.commit(cat, CatalogVersion{ModTime: info.ModTime(), Digest: catalogDigest(data)}); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.poll()
			}
		}
	}()
	return nil
}

type catalogWatcher struct {
	path   string
	logger *zerolog.Logger
	apply  func(*Catalog, CatalogVersion) error

	lastMod  time.Time
	applied  CatalogVersion
	rejected string // digest of the last revision that failed
	statErr  bool
}

func (w *catalogWatcher) poll() {
	info, err := os.Stat(w.path)
	if err != nil {
		if !w.statErr {
			w.logger.Warn().Err(err).Str("path", w.path).Str("version", w.applied.String()).
				Msg("catalog file unreadable, keeping applied version")
		}
		w.statErr = true
		return
	}
	if w.statErr {
		w.logger.Info().Str("path", w.path).Msg("catalog file reachable again")
		w.statErr = false
	}
	if info.ModTime().Equal(w.lastMod) {
		return
	}

	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", w.path).Msg("read catalog failed, will retry")
		return
	}
	w.lastMod = info.ModTime()

	version := CatalogVersion{ModTime: info.ModTime(), Digest: catalogDigest(data)}
	switch version.Digest {
	case w.applied.Digest:
		w.logger.Debug().Str("path", w.path).Str("version", version.String()).Msg("catalog touched, content unchanged")
		return
	case w.rejected:
		return
	}

	cat, err := ParseCatalog(data)
	if err != nil {
		w.rejected = version.Digest
		w.logger.Error().Err(err).
			Str("path", w.path).
			Str("rejected", version.String()).
			Str("version", w.applied.String()).
			Msg("catalog rejected, keeping applied version")
		return
	}
	if err := w.commit(cat, version); err != nil {
		w.rejected = version.Digest
		w.logger.Error().Err(err).Str("path", w.path).Str("version", version.String()).Msg("apply catalog failed")
	}
}

func (w *catalogWatcher) commit(cat *Catalog, version CatalogVersion) error {
	if w.apply != nil {
		if err := w.apply(cat, version); err != nil {
			return fmt.Errorf("apply catalog %s: %w", version.Digest, err)
		}
	}
	w.applied = version
	w.rejected = ""
	w.logger.Info().
		Str("path", w.path).
		Str("version", version.String()).
		Int("businesses", len(cat.Businesses)).
		Int("clients", len(cat.Clients)).
		Msg("catalog version applied")
	return nil
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"stagehand/internal/ctxlog"
)

// Key addresses one artifact of one stage under one parameter hash.
type Key struct {
	Prefix   string
	Hash     string
	Stage    string
	Artifact string
}

// Filename renders the key's canonical cache filename. Downstream tooling
// relies on this exact scheme for path predictability.
func (k Key) Filename(ext string) string {
	return fmt.Sprintf("%s_%s_%s_%s%s", k.Prefix, k.Hash, k.Stage, k.Artifact, ext)
}

// Gateway maps cache keys to files on disk through pluggable stores.
type Gateway struct {
	// Dir is the root of the managed cache tree.
	Dir string

	// RunDir, when non-empty, receives a mirror copy of every tracked save
	// and cache hit (store-full runs).
	RunDir string

	// Prefix is the experiment-wide filename prefix, normally the experiment
	// name. Cachers may override it per artifact.
	Prefix string

	// DryCache disables all writes; paths are still resolved so the run
	// behaves identically apart from persistence.
	DryCache bool
}

// New returns a gateway rooted at dir with the given experiment prefix.
func New(dir, prefix string) *Gateway {
	return &Gateway{Dir: dir, Prefix: prefix}
}

// Path resolves the deterministic file path for a key. The same inputs always
// produce the same path. An explicit override on the cacher wins outright.
func (g *Gateway) Path(c *Cacher, key Key) string {
	if c.PathOverride != "" {
		return c.PathOverride
	}
	if c.Prefix != "" {
		key.Prefix = c.Prefix
	} else if key.Prefix == "" {
		key.Prefix = g.Prefix
	}
	dir := g.Dir
	if c.Subdir != "" {
		dir = filepath.Join(dir, c.Subdir)
	}
	return filepath.Join(dir, key.Filename(c.Store.Extension()))
}

// metadataPath is the sibling provenance record for a key: the payload path
// with its extension swapped for _metadata.json.
func (g *Gateway) metadataPath(c *Cacher, key Key) string {
	path := g.Path(c, key)
	return strings.TrimSuffix(path, c.Store.Extension()) + "_metadata.json"
}

// Exists reports whether the entry's backing file is present. It never loads
// the payload.
func (g *Gateway) Exists(c *Cacher, key Key) bool {
	_, err := os.Stat(g.Path(c, key))
	return err == nil
}

// Save persists a value under the key, writes its metadata sidecar, and
// mirrors it into the run folder for store-full runs. It returns the path
// actually written, which callers track for provenance copying.
func (g *Gateway) Save(ctx context.Context, c *Cacher, key Key, value any, meta *Metadata) (string, error) {
	logger := ctxlog.FromContext(ctx)
	path := g.Path(c, key)
	if g.DryCache {
		logger.Debug("Dry cache, skipping write.", "path", path)
		return path, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating cache dir for %s: %w", path, err)
	}
	logger.Debug("Caching artifact.", "path", path)
	if err := c.Store.Save(path, value); err != nil {
		return "", err
	}
	if meta != nil {
		if err := g.SaveMetadata(c, key, meta); err != nil {
			return "", err
		}
	}

	if g.RunDir != "" && c.Track && c.PathOverride == "" {
		mirror := filepath.Join(g.RunDir, key.Filename(c.Store.Extension()))
		if err := os.MkdirAll(g.RunDir, 0o755); err != nil {
			return "", fmt.Errorf("creating run dir: %w", err)
		}
		logger.Debug("Mirroring artifact into run folder.", "path", mirror)
		if err := c.Store.Save(mirror, value); err != nil {
			return "", err
		}
	}
	return path, nil
}

// Load reads a value back through the key's store. A missing backing file
// surfaces as ErrMissing; a present-but-undecodable file surfaces as an
// IntegrityError, never as a silent recompute.
func (g *Gateway) Load(ctx context.Context, c *Cacher, key Key) (any, error) {
	path := g.Path(c, key)
	value, err := c.Store.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		var integrity *IntegrityError
		if errors.As(err, &integrity) {
			return nil, err
		}
		return nil, &IntegrityError{Path: path, Err: err}
	}
	ctxlog.FromContext(ctx).Debug("Loaded cached artifact.", "path", path)
	return value, nil
}

// MirrorCached copies an already-cached entry's raw bytes into the run folder
// without deserializing it. Used on cache hits during store-full runs so lazy
// artifacts never have to be materialized just to be copied.
func (g *Gateway) MirrorCached(c *Cacher, key Key) error {
	if g.RunDir == "" || !c.Track || c.PathOverride != "" || g.DryCache {
		return nil
	}
	src, err := os.Open(g.Path(c, key))
	if err != nil {
		return err
	}
	defer src.Close()
	if err := os.MkdirAll(g.RunDir, 0o755); err != nil {
		return err
	}
	dst, err := os.Create(filepath.Join(g.RunDir, key.Filename(c.Store.Extension())))
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return err
}

// Bound ties a cacher and key to this gateway as a standalone loader, the
// backing object for lazy artifact handles.
type Bound struct {
	gateway *Gateway
	cacher  *Cacher
	key     Key
}

// Bind returns a loader for the given entry.
func (g *Gateway) Bind(c *Cacher, key Key) *Bound {
	return &Bound{gateway: g, cacher: c, key: key}
}

// Load resolves the bound entry.
func (b *Bound) Load() (any, error) {
	return b.gateway.Load(context.Background(), b.cacher, b.key)
}

// Path returns the bound entry's resolved path.
func (b *Bound) Path() string {
	return b.gateway.Path(b.cacher, b.key)
}

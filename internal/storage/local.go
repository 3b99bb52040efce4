package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"docrecon/internal/logger"
	"docrecon/pkg/models"
)

// LocalBucket keeps channels as directories under Root and archives by
// moving files under ArchiveRoot.
type LocalBucket struct {
	Root        string
	ArchiveRoot string
	// Now stamps archive paths; defaults to time.Now.
	Now func() time.Time

	log zerolog.Logger
}

func NewLocalBucket(root, archiveRoot string) *LocalBucket {
	return &LocalBucket{
		Root:        root,
		ArchiveRoot: archiveRoot,
		Now:         time.Now,
		log:         logger.WithComponent("local-storage"),
	}
}

func (b *LocalBucket) List(ctx context.Context, channel models.Channel) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(b.Root, string(channel)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", channel, err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (b *LocalBucket) Open(ctx context.Context, channel models.Channel, name string) (io.ReadCloser, error) {
	f, err := os.Open(b.path(channel, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage: %s/%s: %w", channel, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open %s/%s: %w", channel, name, err)
	}
	return f, nil
}

func (b *LocalBucket) Archive(ctx context.Context, channel models.Channel, name, label string) (string, error) {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	src := b.path(channel, name)
	dst := filepath.Join(b.ArchiveRoot, filepath.FromSlash(ArchivePath(channel, name, label, now())))

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("storage: create archive folder: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("storage: %s/%s: %w", channel, name, ErrNotFound)
		}
		if err := moveByCopy(src, dst); err != nil {
			return "", fmt.Errorf("storage: archive %s/%s: %w", channel, name, err)
		}
	}

	abs, err := filepath.Abs(dst)
	if err != nil {
		abs = dst
	}
	uri := "file://" + filepath.ToSlash(abs)
	b.log.Debug().
		Str("channel", string(channel)).
		Str("file", name).
		Str("archive_uri", uri).
		Msg("Archived file")
	return uri, nil
}

func (b *LocalBucket) path(channel models.Channel, name string) string {
	return filepath.Join(b.Root, string(channel), filepath.Base(name))
}

// moveByCopy handles archive roots on another filesystem, where rename fails.
func moveByCopy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	in.Close()
	return os.Remove(src)
}

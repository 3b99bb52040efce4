package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"docrecon/internal/logger"
	"docrecon/pkg/models"
)

// GCSBucket reads channels as object prefixes of a source bucket and archives
// by server-side copy into a separate archive bucket.
type GCSBucket struct {
	client  *gcs.Client
	source  string
	archive string
	now     func() time.Time
	log     zerolog.Logger
}

func NewGCSBucket(ctx context.Context, source, archive string, opts ...option.ClientOption) (*GCSBucket, error) {
	if source == "" || archive == "" {
		return nil, fmt.Errorf("storage: source and archive bucket names are required")
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to create GCS client: %w", err)
	}

	return &GCSBucket{
		client:  client,
		source:  source,
		archive: archive,
		now:     time.Now,
		log:     logger.WithComponent("gcs"),
	}, nil
}

func (b *GCSBucket) List(ctx context.Context, channel models.Channel) ([]string, error) {
	prefix := string(channel) + "/"
	it := b.client.Bucket(b.source).Objects(ctx, &gcs.Query{Prefix: prefix, Delimiter: "/"})

	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storage: list gs://%s/%s: %w", b.source, prefix, err)
		}
		// Sub-prefixes come back with an empty Name.
		if attrs.Name == "" || strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		names = append(names, strings.TrimPrefix(attrs.Name, prefix))
	}
	return names, nil
}

func (b *GCSBucket) Open(ctx context.Context, channel models.Channel, name string) (io.ReadCloser, error) {
	object := string(channel) + "/" + name
	r, err := b.client.Bucket(b.source).Object(object).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("storage: gs://%s/%s: %w", b.source, object, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open gs://%s/%s: %w", b.source, object, err)
	}
	return r, nil
}

func (b *GCSBucket) Archive(ctx context.Context, channel models.Channel, name, label string) (string, error) {
	srcName := string(channel) + "/" + name
	dstName := ArchivePath(channel, name, label, b.now())

	src := b.client.Bucket(b.source).Object(srcName)
	dst := b.client.Bucket(b.archive).Object(dstName)

	if _, err := dst.CopierFrom(src).Run(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return "", fmt.Errorf("storage: gs://%s/%s: %w", b.source, srcName, ErrNotFound)
		}
		return "", fmt.Errorf("storage: copy to gs://%s/%s: %w", b.archive, dstName, err)
	}
	if err := src.Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return "", fmt.Errorf("storage: delete gs://%s/%s: %w", b.source, srcName, err)
	}

	uri := fmt.Sprintf("gs://%s/%s", b.archive, dstName)
	b.log.Debug().
		Str("channel", string(channel)).
		Str("file", name).
		Str("archive_uri", uri).
		Msg("Archived object")
	return uri, nil
}

func (b *GCSBucket) Close() error {
	return b.client.Close()
}

// Package storage provides the inbound channels files arrive on and the
// archive they are moved to once handled.
//
// Each channel is a folder (an object prefix on GCS). Handled files are
// archived under <channel>/<label>/<ddMMyyyy>/<stem>_<HHmmss><ext>, where the
// label is the resolved organisation, "duplicate" or "invalid".
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"docrecon/pkg/models"
)

// Archive labels for files that did not produce a stored document.
const (
	LabelDuplicate = "duplicate"
	LabelInvalid   = "invalid"
	LabelUnknown   = "unknownvendor"
)

// ErrNotFound is returned when a named file does not exist in a channel.
var ErrNotFound = errors.New("file not found")

// Bucket is a set of inbound channels plus an archive sink.
type Bucket interface {
	// List returns the names of files waiting in a channel.
	List(ctx context.Context, channel models.Channel) ([]string, error)
	Open(ctx context.Context, channel models.Channel, name string) (io.ReadCloser, error)
	// Archive moves a file out of its channel and returns its archive URI.
	Archive(ctx context.Context, channel models.Channel, name, label string) (string, error)
}

var unsafeLabelChars = regexp.MustCompile(`[^a-zA-Z0-9_\- ]`)

// SanitizeLabel makes an organisation name safe for use as a path segment.
func SanitizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(unsafeLabelChars.ReplaceAllString(label, "_")))
	if label == "" {
		return LabelUnknown
	}
	return label
}

// ArchivePath returns the archive location of name within channel.
func ArchivePath(channel models.Channel, name, label string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return path.Join(
		string(channel),
		SanitizeLabel(label),
		now.Format("02012006"),
		stem+"_"+now.Format("150405")+ext,
	)
}

package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"docrecon/internal/logger"
	"docrecon/internal/storage"
	"docrecon/pkg/models"
)

// PollReport counts the files handled by one pass over the channels.
type PollReport struct {
	Stored     int
	Duplicates int
	Invalid    int
	Failed     int
}

// Poller lists every channel on an interval and ingests what it finds, one
// file at a time. Files that fail stay in place and are retried next pass.
type Poller struct {
	ingestor *Ingestor
	bucket   storage.Bucket
	channels []models.Channel
	interval time.Duration
	log      zerolog.Logger
}

func NewPoller(ingestor *Ingestor, bucket storage.Bucket, interval time.Duration) *Poller {
	return &Poller{
		ingestor: ingestor,
		bucket:   bucket,
		channels: models.Channels,
		interval: interval,
		log:      logger.WithComponent("poller"),
	}
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return errors.New("poll interval must be positive")
	}

	p.log.Info().Dur("interval", p.interval).Msg("Inbound poller started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.PollOnce(ctx)

		select {
		case <-ctx.Done():
			p.log.Info().Msg("Inbound poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce makes a single pass over every channel.
func (p *Poller) PollOnce(ctx context.Context) PollReport {
	var report PollReport

	for _, channel := range p.channels {
		names, err := p.bucket.List(ctx, channel)
		if err != nil {
			p.log.Error().Err(err).Str("channel", string(channel)).Msg("Failed to list channel")
			continue
		}

		for _, name := range names {
			if ctx.Err() != nil {
				return report
			}

			out, err := p.ingestor.Process(ctx, channel, name)
			if err != nil {
				report.Failed++
				p.log.Error().
					Err(err).
					Str("channel", string(channel)).
					Str("file", name).
					Msg("Failed to ingest file, leaving it for the next pass")
				continue
			}

			switch out.Status {
			case StatusStored:
				report.Stored++
			case StatusDuplicate:
				report.Duplicates++
			case StatusInvalid:
				report.Invalid++
			}
		}
	}

	if report != (PollReport{}) {
		p.log.Info().
			Int("stored", report.Stored).
			Int("duplicates", report.Duplicates).
			Int("invalid", report.Invalid).
			Int("failed", report.Failed).
			Msg("Poll complete")
	}
	return report
}

package backup

import (
	"context"

	"github.com/aleister1102/siteguardian/internal/common"
	"github.com/aleister1102/siteguardian/internal/models"

	"github.com/rs/zerolog"
)

// RetentionReport summarizes one retention pass for a site.
type RetentionReport struct {
	Archived         int
	DeletedSnapshots int
	DeletedObjects   int
}

// RetentionPolicy compresses older snapshot bytes and prunes snapshots past a
// site's retention limit. It runs outside the crawl pipeline.
type RetentionPolicy struct {
	store            *Store
	snapshots        models.SnapshotStore
	keepUncompressed int
	logger           zerolog.Logger
}

// NewRetentionPolicy creates a retention policy. keepUncompressed newest
// snapshots per site are never archived.
func NewRetentionPolicy(store *Store, snapshots models.SnapshotStore, keepUncompressed int, logger zerolog.Logger) *RetentionPolicy {
	if keepUncompressed < 0 {
		keepUncompressed = 0
	}
	return &RetentionPolicy{
		store:            store,
		snapshots:        snapshots,
		keepUncompressed: keepUncompressed,
		logger:           logger.With().Str("component", "RetentionPolicy").Logger(),
	}
}

// Apply enforces retention for a single site.
func (p *RetentionPolicy) Apply(ctx context.Context, site models.MonitoredSite) (RetentionReport, error) {
	var report RetentionReport

	snaps, err := p.snapshots.ListSnapshots(ctx, site.ID, 0)
	if err != nil {
		return report, common.WrapErrorf(err, "failed to list snapshots for site %s", site.ID)
	}

	kept := snaps
	if site.RetentionLimit > 0 && len(snaps) > site.RetentionLimit {
		kept = snaps[:site.RetentionLimit]
		for _, snap := range snaps[site.RetentionLimit:] {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if err := p.pruneSnapshot(ctx, snap, &report); err != nil {
				return report, err
			}
		}
	}

	if site.CompressOld && len(kept) > p.keepUncompressed {
		recent := make(map[string]struct{}, p.keepUncompressed)
		for _, snap := range kept[:p.keepUncompressed] {
			recent[snap.ContentHash] = struct{}{}
		}
		for _, snap := range kept[p.keepUncompressed:] {
			if _, isRecent := recent[snap.ContentHash]; isRecent {
				continue
			}
			archived, err := p.store.Archive(snap.ContentHash)
			if err != nil {
				p.logger.Warn().Err(err).Str("site_id", site.ID).Str("hash", snap.ContentHash).Msg("Failed to archive snapshot bytes")
				continue
			}
			if archived {
				report.Archived++
			}
		}
	}

	if report.Archived > 0 || report.DeletedSnapshots > 0 {
		p.logger.Info().
			Str("site_id", site.ID).
			Int("archived", report.Archived).
			Int("deleted_snapshots", report.DeletedSnapshots).
			Int("deleted_objects", report.DeletedObjects).
			Msg("Retention applied")
	}
	return report, nil
}

func (p *RetentionPolicy) pruneSnapshot(ctx context.Context, snap models.Snapshot, report *RetentionReport) error {
	if err := p.snapshots.DeleteSnapshot(ctx, snap.ID); err != nil {
		return common.WrapErrorf(err, "failed to delete snapshot %s", snap.ID)
	}
	report.DeletedSnapshots++

	// Bytes are shared between snapshots with equal content, possibly of
	// other sites. Counting under the hash lock keeps a concurrent Commit of
	// the same bytes from losing them.
	deleted, err := p.store.DeleteIfUnreferenced(snap.ContentHash, func() (int, error) {
		return p.snapshots.CountSnapshotsByHash(ctx, snap.ContentHash)
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("hash", snap.ContentHash).Msg("Failed to delete unreferenced backup object")
		return nil
	}
	if deleted {
		report.DeletedObjects++
	}
	return nil
}

package questionset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/conjugar/internal/blob"
)

const sweepConcurrency = 4

// SweepOptions controls a cleanup pass.
type SweepOptions struct {
	// MinAge protects set blobs younger than this from deletion, so a set
	// whose index entry has not been written yet is left alone.
	MinAge time.Duration

	// PruneDangling also removes index entries whose set blob is missing.
	PruneDangling bool

	// DryRun reports what would be removed without removing it.
	DryRun bool
}

// SweepReport summarizes a cleanup pass.
type SweepReport struct {
	Scanned  int      `json:"scanned"`
	Orphaned int      `json:"orphaned"`
	Deleted  int      `json:"deleted"`
	Dangling int      `json:"dangling"`
	Pruned   int      `json:"pruned"`
	Orphans  []string `json:"orphans,omitempty"`
}

// Sweep deletes set blobs the index does not reference and, optionally,
// drops index entries that point at missing blobs.
func (r *Repository) Sweep(ctx context.Context, opts SweepOptions) (SweepReport, error) {
	var report SweepReport

	// The index is read before listing: a set blob always exists before its
	// entry does, so any entry in this snapshot whose blob is not listed
	// really is dangling.
	idx, _, err := r.readIndex(ctx)
	if err != nil {
		return report, err
	}
	objs, err := r.store.List(ctx, r.setsPrefix())
	if err != nil {
		return report, fmt.Errorf("list sets: %w", err)
	}

	now := r.now()
	listed := make(map[string]bool, len(objs))
	var orphans []string
	for _, obj := range objs {
		id, ok := r.idFromPath(obj.Path)
		if !ok {
			continue
		}
		report.Scanned++
		listed[id] = true
		if idx.Contains(id) {
			continue
		}
		if opts.MinAge > 0 && now.Sub(obj.Updated) < opts.MinAge {
			continue
		}
		orphans = append(orphans, id)
	}
	report.Orphaned = len(orphans)
	report.Orphans = orphans

	dangling := make(map[string]bool)
	for _, e := range idx.Entries {
		if !listed[e.ID] {
			dangling[e.ID] = true
		}
	}
	report.Dangling = len(dangling)

	if opts.DryRun {
		return report, nil
	}

	var deleted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, id := range orphans {
		g.Go(func() error {
			err := r.store.Delete(gctx, r.setPath(id))
			if err != nil && !errors.Is(err, blob.ErrNotFound) {
				return fmt.Errorf("delete orphan %s: %w", id, err)
			}
			deleted.Add(1)
			return nil
		})
	}
	err = g.Wait()
	report.Deleted = int(deleted.Load())
	if err != nil {
		return report, err
	}

	if opts.PruneDangling && len(dangling) > 0 {
		var pruned int
		err := r.updateIndex(ctx, func(idx *Index) bool {
			n := len(idx.Entries)
			kept := idx.Entries[:0]
			for _, e := range idx.Entries {
				if !dangling[e.ID] {
					kept = append(kept, e)
				}
			}
			idx.Entries = kept
			pruned = n - len(kept)
			return pruned > 0
		})
		if err != nil {
			return report, err
		}
		report.Pruned = pruned
	}

	r.log.Info("sweep finished",
		"scanned", report.Scanned,
		"orphaned", report.Orphaned,
		"deleted", report.Deleted,
		"dangling", report.Dangling,
		"pruned", report.Pruned,
	)
	return report, nil
}

// Ping checks that the index location is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	if _, err := r.store.Head(ctx, r.IndexPath()); err != nil {
		return fmt.Errorf("head index: %w", err)
	}
	return nil
}

func (r *Repository) idFromPath(p string) (string, bool) {
	rest, ok := strings.CutPrefix(p, r.setsPrefix())
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, ".json")
	if !ok || !validID.MatchString(id) {
		return "", false
	}
	return id, true
}

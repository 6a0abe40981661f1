package docdb

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/engine/memstore"
	"github.com/ministore/docdb/docdb/storage"
)

// ReindexStats summarizes a reindexing run.
type ReindexStats struct {
	Records int
	Elapsed time.Duration
	// Scratch is the location of the rebuilt database before it replaced
	// the current one. It is left in place when publishing fails.
	Scratch string
}

// Reindex rewrites every record through the current schema into a fresh
// store and replaces the database with it. Record ids, autonumber counters
// and the id counter are kept. On failure the current database is left
// unchanged.
func (d *Database) Reindex(ctx context.Context) (ReindexStats, error) {
	if err := d.checkWritable(); err != nil {
		return ReindexStats{}, err
	}
	began := time.Now()
	if d.adapter == nil {
		return d.reindexMemory(ctx, began)
	}

	scratch, err := d.adapter.Scratch()
	if err != nil {
		return ReindexStats{}, engineError("reindex: scratch location", err)
	}
	stats := ReindexStats{Scratch: scratch.Location()}
	d.log.Info().Str("location", d.adapter.Location()).Str("scratch", stats.Scratch).Msg("reindex started")

	dst, err := storage.Create(ctx, scratch)
	if err != nil {
		return stats, engineError("reindex: create scratch database", err)
	}
	d.applyRetryPolicy(dst)

	// the source write lock keeps other writers out while copying
	src, err := d.backend.Begin(ctx)
	if err != nil {
		dst.Close()
		return stats, engineError("reindex", err)
	}
	stats.Records, err = d.rebuild(ctx, src, dst)
	_ = src.Rollback()
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return stats, engineError("reindex", err)
	}

	if err := d.backend.Close(); err != nil {
		return stats, engineError("reindex: close database", err)
	}
	publishErr := d.adapter.Publish(ctx, scratch)
	store, err := storage.Open(ctx, d.adapter)
	if err != nil {
		return stats, engineError("reindex: reopen database", err)
	}
	d.backend = store
	d.applyRetryPolicy(store)
	if publishErr != nil {
		return stats, engineError("reindex: publish", publishErr)
	}

	stats.Elapsed = time.Since(began)
	d.finishReindex(stats)
	return stats, nil
}

func (d *Database) reindexMemory(ctx context.Context, began time.Time) (ReindexStats, error) {
	d.log.Info().Str("location", "memory").Msg("reindex started")
	dst := memstore.New()
	d.applyRetryPolicy(dst)
	src, err := d.backend.Begin(ctx)
	if err != nil {
		return ReindexStats{}, engineError("reindex", err)
	}
	n, err := d.rebuild(ctx, src, dst)
	_ = src.Rollback()
	if err != nil {
		return ReindexStats{}, engineError("reindex", err)
	}
	d.backend.Close()
	d.backend = dst
	stats := ReindexStats{Records: n, Elapsed: time.Since(began)}
	d.finishReindex(stats)
	return stats, nil
}

func (d *Database) finishReindex(stats ReindexStats) {
	d.metrics.ReindexDuration.Observe(stats.Elapsed.Seconds())
	d.log.Info().Int("records", stats.Records).Dur("elapsed", stats.Elapsed).Msg("reindex finished")
}

// rebuild copies the metadata of src into dst and writes every record of
// src encoded with the current schema, reindexBatch records per
// transaction.
func (d *Database) rebuild(ctx context.Context, src engine.Reader, dst engine.Backend) (int, error) {
	keys, err := src.MetadataKeys(ctx, "")
	if err != nil {
		return 0, err
	}
	ids, err := src.DocIDs(ctx)
	if err != nil {
		return 0, err
	}
	total := int(ids.GetCardinality())

	w, err := dst.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if w != nil {
			_ = w.Rollback()
		}
	}()
	for _, key := range keys {
		if key == storage.MetaMagic || key == storage.MetaFormat {
			// written by the storage layer when the scratch store was made
			continue
		}
		value, err := src.Metadata(ctx, key)
		if err != nil {
			return 0, err
		}
		if err := w.SetMetadata(ctx, key, value); err != nil {
			return 0, err
		}
	}

	progress := rate.Sometimes{Interval: 2 * time.Second}
	n := 0
	it := ids.Iterator()
	for it.HasNext() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		id := it.Next()
		rec, err := d.load(ctx, src, id)
		if err != nil {
			return n, err
		}
		out, err := d.encoder.Encode(rec)
		if err != nil {
			return n, err
		}
		if err := w.ReplaceDocument(ctx, id, out.Document()); err != nil {
			return n, err
		}
		for _, word := range out.Spellings {
			if err := w.AddSpelling(ctx, word, 1); err != nil {
				return n, err
			}
		}
		if err := engine.BumpLastDocID(ctx, w, id); err != nil {
			return n, err
		}
		n++
		d.metrics.ReindexedRecords.Inc()
		progress.Do(func() {
			d.log.Info().Int("done", n).Int("total", total).Msg("reindexing")
		})

		if n%reindexBatch == 0 {
			if err := w.Commit(); err != nil {
				w = nil
				return n, err
			}
			if w, err = dst.Begin(ctx); err != nil {
				return n, err
			}
		}
	}
	err = w.Commit()
	w = nil
	return n, err
}

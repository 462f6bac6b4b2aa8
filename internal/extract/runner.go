package extract

import (
	"context"
	"errors"
	"log/slog"

	"github.com/askdocs/askdocs/internal/store"
)

// Runner extracts every raw document in the store into the text area.
type Runner struct {
	store       *store.Store
	extractor   Extractor
	keepSources bool
	log         *slog.Logger
}

// NewRunner creates a Runner. When keepSources is false, raw documents
// are removed after successful extraction, matching the one-shot
// extraction policy.
func NewRunner(s *store.Store, e Extractor, keepSources bool, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{store: s, extractor: e, keepSources: keepSources, log: log}
}

// Run extracts all raw documents and returns the number of text units
// written. A document that fails extraction or storage is logged and
// skipped; only a failure to list the raw area aborts the batch.
func (r *Runner) Run(ctx context.Context) (int, error) {
	names, err := r.store.ListRaw()
	if err != nil {
		return 0, err
	}

	extracted := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return extracted, err
		}

		unit, err := r.extractor.Extract(name)
		if err != nil {
			if errors.Is(err, ErrExtraction) {
				r.log.Warn("skipping unreadable document", "name", name, "error", err)
			} else {
				r.log.Warn("skipping document", "name", name, "error", err)
			}
			continue
		}
		if err := r.store.SaveText(unit); err != nil {
			r.log.Warn("skipping document, text not persisted", "name", name, "error", err)
			continue
		}
		r.log.Info("document extracted", "name", name, "chars", len(unit.Text))

		if !r.keepSources {
			if err := r.store.RemoveRaw(name); err != nil {
				r.log.Warn("extracted source not removed", "name", name, "error", err)
			}
		}
		extracted++
	}
	return extracted, nil
}

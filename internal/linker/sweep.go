package linker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/careerlink/internal/apperr"
	"github.com/starford/careerlink/internal/models"
	"github.com/starford/careerlink/internal/store"
)

// SweepReport summarizes a store-wide audit.
type SweepReport struct {
	Audited int             `json:"audited"`
	Found   []Inconsistency `json:"found"`
	Applied int             `json:"applied"`
	Failed  int             `json:"failed"`
}

// Sweep audits every resume, then every cover letter, then every job
// application. With repair set the findings of each entity are applied
// before the next one is audited. Rows deleted mid-sweep are skipped.
func (a *Auditor) Sweep(ctx context.Context, repair bool) (SweepReport, error) {
	var rep SweepReport
	for _, kind := range models.Kinds {
		rows, err := a.store.List(ctx, store.TableFor(kind), store.FieldID)
		if err != nil {
			return rep, err
		}
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			id := row.Str(store.FieldID)
			found, err := a.Audit(ctx, kind, id)
			switch {
			case errors.Is(err, apperr.ErrNotFound):
				continue
			case err != nil:
				rep.Failed++
				a.logger.Warn("sweep audit failed",
					slog.String("entity_type", string(kind)),
					slog.String("entity_id", id),
					slog.String("error", err.Error()))
				continue
			}
			rep.Audited++
			if len(found) == 0 {
				continue
			}
			rep.Found = append(rep.Found, found...)
			if repair {
				rep.Applied += a.Repair(ctx, found)
			}
		}
	}
	a.logger.Info("sweep finished",
		slog.Int("audited", rep.Audited),
		slog.Int("found", len(rep.Found)),
		slog.Int("applied", rep.Applied),
		slog.Bool("repair", repair))
	return rep, nil
}

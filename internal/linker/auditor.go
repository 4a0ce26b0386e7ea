package linker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/starford/careerlink/internal/apperr"
	"github.com/starford/careerlink/internal/models"
	"github.com/starford/careerlink/internal/store"
)

// Auditor detects and repairs link inconsistencies around one entity.
type Auditor struct {
	store  store.Store
	logger *slog.Logger
}

// NewAuditor creates an Auditor. A nil logger discards output.
func NewAuditor(s store.Store, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Auditor{store: s, logger: logger.With(slog.String("component", "auditor"))}
}

// Report is the outcome of an audit-and-repair pass.
type Report struct {
	Found   []Inconsistency `json:"found"`
	Applied int             `json:"applied"`
}

// Categories returns the detected categories in order.
func (r Report) Categories() []Category {
	out := make([]Category, len(r.Found))
	for i, inc := range r.Found {
		out[i] = inc.Category
	}
	return out
}

// Audit inspects the neighbourhood of (kind, id). Existence checks run
// before transitive and symmetry checks so no proposal reads through a
// dangling reference. A missing audited entity returns apperr.ErrNotFound.
func (a *Auditor) Audit(ctx context.Context, kind models.Kind, id string) ([]Inconsistency, error) {
	switch kind {
	case models.KindResume:
		return a.auditResume(ctx, id)
	case models.KindCoverLetter:
		return a.auditCoverLetter(ctx, id)
	case models.KindJobApplication:
		return a.auditJob(ctx, id)
	}
	return nil, fmt.Errorf("%w: kind %q", apperr.ErrInvalid, kind)
}

// Check audits (kind, id) and applies the resulting repairs.
func (a *Auditor) Check(ctx context.Context, kind models.Kind, id string) (Report, error) {
	found, err := a.Audit(ctx, kind, id)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Found: found}
	if len(found) == 0 {
		return rep, nil
	}
	rep.Applied = a.Repair(ctx, found)
	a.logger.Info("repaired inconsistencies",
		slog.String("entity_type", string(kind)),
		slog.String("entity_id", id),
		slog.Int("found", len(found)),
		slog.Int("applied", rep.Applied))
	return rep, nil
}

// Plan collapses proposed repairs so each field is written once, keeping the
// last computed value at the position of its first proposal.
func Plan(found []Inconsistency) []Repair {
	idx := make(map[string]int, len(found))
	var out []Repair
	for _, inc := range found {
		k := inc.Repair.key()
		if i, ok := idx[k]; ok {
			out[i] = inc.Repair
			continue
		}
		idx[k] = len(out)
		out = append(out, inc.Repair)
	}
	return out
}

// Repair applies the planned writes independently. A failed write is logged
// and skipped. It returns the number of writes applied.
func (a *Auditor) Repair(ctx context.Context, found []Inconsistency) int {
	applied := 0
	for _, w := range Plan(found) {
		if err := a.store.Update(ctx, w.Table, w.ID, w.Field, w.Value); err != nil {
			a.logger.Warn("repair skipped",
				slog.String("table", string(w.Table)),
				slog.String("id", w.ID),
				slog.String("field", w.Field),
				slog.String("error", err.Error()))
			continue
		}
		a.logger.Debug("repair applied",
			slog.String("table", string(w.Table)),
			slog.String("id", w.ID),
			slog.String("field", w.Field),
			slog.String("value", w.Value))
		applied++
	}
	return applied
}

// lookup reads an optional neighbour. found is false when id is empty or the
// row does not exist.
func (a *Auditor) lookup(ctx context.Context, table store.Table, id string, fields ...string) (store.Row, bool, error) {
	if id == "" {
		return nil, false, nil
	}
	row, err := a.store.Get(ctx, table, id, fields...)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

func (a *Auditor) auditResume(ctx context.Context, id string) ([]Inconsistency, error) {
	r, err := a.store.Get(ctx, store.Resumes, id, store.FieldJobApplicationID)
	if err != nil {
		return nil, err
	}
	jobID := r.Str(store.FieldJobApplicationID)

	var (
		job      store.Row
		jobFound bool
		letters  []store.Row
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		job, jobFound, err = a.lookup(gctx, store.JobApplications, jobID, store.FieldResumeID)
		return err
	})
	g.Go(func() error {
		var err error
		letters, err = a.store.Query(gctx, store.CoverLetters, store.FieldResumeID, id,
			store.FieldID, store.FieldJobApplicationID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Inconsistency
	if jobID != "" && !jobFound {
		out = append(out, Inconsistency{
			Category: ResumeJobDangling, EntityType: models.KindResume, EntityID: id,
			Details: fmt.Sprintf("resume references missing job %s", jobID),
			Repair:  Repair{store.Resumes, id, store.FieldJobApplicationID, ""},
		})
		jobID = ""
	}
	if jobFound {
		switch back := job.Str(store.FieldResumeID); {
		case back == "":
			out = append(out, Inconsistency{
				Category: JobLacksResume, EntityType: models.KindResume, EntityID: id,
				Details: fmt.Sprintf("resume linked to job %s, but job has no resume", jobID),
				Repair:  Repair{store.JobApplications, jobID, store.FieldResumeID, id},
			})
		case back != id:
			out = append(out, Inconsistency{
				Category: JobPointsElsewhereForResume, EntityType: models.KindResume, EntityID: id,
				Details: fmt.Sprintf("resume linked to job %s, but job points to resume %s", jobID, back),
				Repair:  Repair{store.JobApplications, jobID, store.FieldResumeID, id},
			})
		}
	}
	if jobID == "" {
		return out, nil
	}
	for _, cl := range letters {
		clID := cl.Str(store.FieldID)
		switch cur := cl.Str(store.FieldJobApplicationID); {
		case cur == "":
			out = append(out, Inconsistency{
				Category: CoverLetterMissingResumeJob, EntityType: models.KindCoverLetter, EntityID: clID,
				Details: fmt.Sprintf("cover letter of resume %s has no job, resume has %s", id, jobID),
				Repair:  Repair{store.CoverLetters, clID, store.FieldJobApplicationID, jobID},
			})
		case cur != jobID:
			out = append(out, Inconsistency{
				Category: CoverLetterDivergesFromResumeJob, EntityType: models.KindCoverLetter, EntityID: clID,
				Details: fmt.Sprintf("cover letter job %s differs from resume job %s", cur, jobID),
				Repair:  Repair{store.CoverLetters, clID, store.FieldJobApplicationID, jobID},
			})
		}
	}
	return out, nil
}

func (a *Auditor) auditCoverLetter(ctx context.Context, id string) ([]Inconsistency, error) {
	cl, err := a.store.Get(ctx, store.CoverLetters, id, store.FieldResumeID, store.FieldJobApplicationID)
	if err != nil {
		return nil, err
	}
	resumeID := cl.Str(store.FieldResumeID)
	jobID := cl.Str(store.FieldJobApplicationID)

	var (
		resume, job           store.Row
		resumeFound, jobFound bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resume, resumeFound, err = a.lookup(gctx, store.Resumes, resumeID, store.FieldJobApplicationID)
		return err
	})
	g.Go(func() error {
		var err error
		job, jobFound, err = a.lookup(gctx, store.JobApplications, jobID, store.FieldCoverLetterID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Inconsistency
	if resumeID != "" && !resumeFound {
		out = append(out, Inconsistency{
			Category: CoverLetterResumeDangling, EntityType: models.KindCoverLetter, EntityID: id,
			Details: fmt.Sprintf("cover letter references missing resume %s", resumeID),
			Repair:  Repair{store.CoverLetters, id, store.FieldResumeID, ""},
		})
	}
	if jobID != "" && !jobFound {
		out = append(out, Inconsistency{
			Category: CoverLetterJobDangling, EntityType: models.KindCoverLetter, EntityID: id,
			Details: fmt.Sprintf("cover letter references missing job %s", jobID),
			Repair:  Repair{store.CoverLetters, id, store.FieldJobApplicationID, ""},
		})
	}

	// The effective job is the one the cover letter ends up on after this
	// pass: its resume's job when that exists and differs, else its own.
	effID, effJob, effFound := jobID, job, jobFound
	if resumeFound {
		if rj := resume.Str(store.FieldJobApplicationID); rj != "" && rj != jobID {
			row, ok, err := a.lookup(ctx, store.JobApplications, rj, store.FieldCoverLetterID)
			if err != nil {
				return nil, err
			}
			if ok {
				cat, details := CoverLetterMissingResumeJob,
					fmt.Sprintf("cover letter has no job, resume %s has %s", resumeID, rj)
				if jobID != "" {
					cat, details = CoverLetterDivergesFromResumeJob,
						fmt.Sprintf("cover letter job %s differs from resume job %s", jobID, rj)
				}
				out = append(out, Inconsistency{
					Category: cat, EntityType: models.KindCoverLetter, EntityID: id,
					Details: details,
					Repair:  Repair{store.CoverLetters, id, store.FieldJobApplicationID, rj},
				})
				effID, effJob, effFound = rj, row, true
			}
		}
	}
	if !effFound {
		return out, nil
	}
	switch back := effJob.Str(store.FieldCoverLetterID); {
	case back == "":
		out = append(out, Inconsistency{
			Category: JobLacksCoverLetter, EntityType: models.KindCoverLetter, EntityID: id,
			Details: fmt.Sprintf("cover letter linked to job %s, but job has no cover letter", effID),
			Repair:  Repair{store.JobApplications, effID, store.FieldCoverLetterID, id},
		})
	case back != id:
		// Letters of one resume share its job; the job keeps whichever of
		// them it already holds as long as that letter points back.
		holder, ok, err := a.lookup(ctx, store.CoverLetters, back, store.FieldJobApplicationID)
		if err != nil {
			return nil, err
		}
		if ok && holder.Str(store.FieldJobApplicationID) == effID {
			break
		}
		out = append(out, Inconsistency{
			Category: JobPointsElsewhereForCoverLetter, EntityType: models.KindCoverLetter, EntityID: id,
			Details: fmt.Sprintf("cover letter linked to job %s, but job points to cover letter %s", effID, back),
			Repair:  Repair{store.JobApplications, effID, store.FieldCoverLetterID, id},
		})
	}
	return out, nil
}

func (a *Auditor) auditJob(ctx context.Context, id string) ([]Inconsistency, error) {
	j, err := a.store.Get(ctx, store.JobApplications, id, store.FieldResumeID, store.FieldCoverLetterID)
	if err != nil {
		return nil, err
	}
	resumeID := j.Str(store.FieldResumeID)
	clID := j.Str(store.FieldCoverLetterID)

	var (
		resume, cl           store.Row
		resumeFound, clFound bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resume, resumeFound, err = a.lookup(gctx, store.Resumes, resumeID, store.FieldJobApplicationID)
		return err
	})
	g.Go(func() error {
		var err error
		cl, clFound, err = a.lookup(gctx, store.CoverLetters, clID, store.FieldJobApplicationID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Inconsistency
	if resumeID != "" && !resumeFound {
		out = append(out, Inconsistency{
			Category: JobResumeDangling, EntityType: models.KindJobApplication, EntityID: id,
			Details: fmt.Sprintf("job references missing resume %s", resumeID),
			Repair:  Repair{store.JobApplications, id, store.FieldResumeID, ""},
		})
	}
	if clID != "" && !clFound {
		out = append(out, Inconsistency{
			Category: JobCoverLetterDangling, EntityType: models.KindJobApplication, EntityID: id,
			Details: fmt.Sprintf("job references missing cover letter %s", clID),
			Repair:  Repair{store.JobApplications, id, store.FieldCoverLetterID, ""},
		})
	}
	if resumeFound {
		switch back := resume.Str(store.FieldJobApplicationID); {
		case back == "":
			out = append(out, Inconsistency{
				Category: ResumeLacksJob, EntityType: models.KindJobApplication, EntityID: id,
				Details: fmt.Sprintf("job linked to resume %s, but resume has no job", resumeID),
				Repair:  Repair{store.Resumes, resumeID, store.FieldJobApplicationID, id},
			})
		case back != id:
			out = append(out, Inconsistency{
				Category: ResumePointsElsewhereForJob, EntityType: models.KindJobApplication, EntityID: id,
				Details: fmt.Sprintf("job linked to resume %s, but resume points to job %s", resumeID, back),
				Repair:  Repair{store.Resumes, resumeID, store.FieldJobApplicationID, id},
			})
		}
	}
	if clFound {
		switch back := cl.Str(store.FieldJobApplicationID); {
		case back == "":
			out = append(out, Inconsistency{
				Category: CoverLetterLacksJob, EntityType: models.KindJobApplication, EntityID: id,
				Details: fmt.Sprintf("job linked to cover letter %s, but cover letter has no job", clID),
				Repair:  Repair{store.CoverLetters, clID, store.FieldJobApplicationID, id},
			})
		case back != id:
			out = append(out, Inconsistency{
				Category: CoverLetterPointsElsewhereForJob, EntityType: models.KindJobApplication, EntityID: id,
				Details: fmt.Sprintf("job linked to cover letter %s, but cover letter points to job %s", clID, back),
				Repair:  Repair{store.CoverLetters, clID, store.FieldJobApplicationID, id},
			})
		}
	}
	return out, nil
}

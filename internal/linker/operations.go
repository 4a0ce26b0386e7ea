package linker

import (
	"context"
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/starford/careerlink/internal/apperr"
	"github.com/starford/careerlink/internal/models"
	"github.com/starford/careerlink/internal/store"
)

// Operation names reported in events and logs.
const (
	OpLinkJob           = "link_job"
	OpUnlinkJob         = "unlink_job"
	OpLinkResume        = "link_resume"
	OpUnlinkResume      = "unlink_resume"
	OpLinkCoverLetter   = "link_cover_letter"
	OpUnlinkCoverLetter = "unlink_cover_letter"
)

func required(what, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s id is required", apperr.ErrInvalid, what)
	}
	return nil
}

// LinkJob links the managed resume or cover letter to jobID, closing the
// reverse link and detaching the previous partners.
func (m *Manager) LinkJob(ctx context.Context, jobID string) State {
	if m.kind == models.KindJobApplication {
		return m.rejectSelf(OpLinkJob)
	}
	return m.run(ctx, OpLinkJob, MsgLinkJobFailed, func(ctx context.Context, w *writer) (bool, error) {
		if err := required("job application", jobID); err != nil {
			return false, err
		}
		if m.kind == models.KindResume {
			return true, m.linkJobFromResume(ctx, w, jobID)
		}
		return true, m.linkJobFromCoverLetter(ctx, w, jobID)
	})
}

func (m *Manager) linkJobFromResume(ctx context.Context, w *writer, jobID string) error {
	r, err := w.get(ctx, store.Resumes, m.id, store.FieldJobApplicationID)
	if err != nil {
		return err
	}
	job, err := w.get(ctx, store.JobApplications, jobID, store.FieldResumeID)
	if err != nil {
		return err
	}
	prev := r.Str(store.FieldJobApplicationID)
	prevResume := job.Str(store.FieldResumeID)

	err = w.pair(ctx,
		step{store.Resumes, m.id, store.FieldJobApplicationID, jobID}, prev,
		step{store.JobApplications, jobID, store.FieldResumeID, m.id})
	if err != nil {
		return err
	}
	if prev != "" && prev != jobID {
		if err := w.release(ctx, store.JobApplications, prev, store.FieldResumeID, m.id); err != nil {
			return err
		}
	}
	if prevResume != "" && prevResume != m.id {
		if err := w.release(ctx, store.Resumes, prevResume, store.FieldJobApplicationID, jobID); err != nil {
			return err
		}
	}
	return m.followResume(ctx, w, m.id, jobID)
}

// followResume moves every cover letter of resumeID onto jobID. Jobs the
// letters leave drop their back-reference, and jobID adopts the first
// letter when it has none.
func (m *Manager) followResume(ctx context.Context, w *writer, resumeID, jobID string) error {
	letters, err := w.query(ctx, store.CoverLetters, store.FieldResumeID, resumeID,
		store.FieldID, store.FieldJobApplicationID)
	if err != nil || len(letters) == 0 {
		return err
	}

	ids := mapset.NewSet[string]()
	left := mapset.NewSet[string]()
	for _, cl := range letters {
		ids.Add(cl.Str(store.FieldID))
		if j := cl.Str(store.FieldJobApplicationID); j != "" && j != jobID {
			left.Add(j)
		}
	}
	stale := left.ToSlice()
	slices.Sort(stale)
	for _, old := range stale {
		if err := w.releaseIf(ctx, store.JobApplications, old, store.FieldCoverLetterID, func(cur string) bool { return ids.Contains(cur) }); err != nil {
			return err
		}
	}
	for _, cl := range letters {
		if cl.Str(store.FieldJobApplicationID) == jobID {
			continue
		}
		if err := w.set(ctx, step{store.CoverLetters, cl.Str(store.FieldID), store.FieldJobApplicationID, jobID}); err != nil {
			return err
		}
	}

	job, err := w.get(ctx, store.JobApplications, jobID, store.FieldCoverLetterID)
	if err != nil {
		return err
	}
	if job.Str(store.FieldCoverLetterID) == "" {
		return w.set(ctx, step{store.JobApplications, jobID, store.FieldCoverLetterID, letters[0].Str(store.FieldID)})
	}
	return nil
}

func (m *Manager) linkJobFromCoverLetter(ctx context.Context, w *writer, jobID string) error {
	cl, err := w.get(ctx, store.CoverLetters, m.id, store.FieldResumeID, store.FieldJobApplicationID)
	if err != nil {
		return err
	}
	job, err := w.get(ctx, store.JobApplications, jobID, store.FieldResumeID, store.FieldCoverLetterID)
	if err != nil {
		return err
	}
	prev := cl.Str(store.FieldJobApplicationID)
	prevCL := job.Str(store.FieldCoverLetterID)
	prevResume := job.Str(store.FieldResumeID)

	err = w.pair(ctx,
		step{store.CoverLetters, m.id, store.FieldJobApplicationID, jobID}, prev,
		step{store.JobApplications, jobID, store.FieldCoverLetterID, m.id})
	if err != nil {
		return err
	}
	if prev != "" && prev != jobID {
		if err := w.release(ctx, store.JobApplications, prev, store.FieldCoverLetterID, m.id); err != nil {
			return err
		}
	}
	if prevCL != "" && prevCL != m.id {
		if err := w.release(ctx, store.CoverLetters, prevCL, store.FieldJobApplicationID, jobID); err != nil {
			return err
		}
	}

	// The job follows the cover letter's resume.
	resumeID := cl.Str(store.FieldResumeID)
	res, ok, err := w.optional(ctx, store.Resumes, resumeID, store.FieldJobApplicationID)
	if err != nil || !ok {
		return err
	}
	resPrev := res.Str(store.FieldJobApplicationID)
	if err := w.set(ctx, step{store.JobApplications, jobID, store.FieldResumeID, resumeID}); err != nil {
		return err
	}
	if err := w.set(ctx, step{store.Resumes, resumeID, store.FieldJobApplicationID, jobID}); err != nil {
		return err
	}
	if resPrev != "" && resPrev != jobID {
		if err := w.release(ctx, store.JobApplications, resPrev, store.FieldResumeID, resumeID); err != nil {
			return err
		}
	}
	if prevResume != "" && prevResume != resumeID {
		if err := w.release(ctx, store.Resumes, prevResume, store.FieldJobApplicationID, jobID); err != nil {
			return err
		}
	}
	return m.followResume(ctx, w, resumeID, jobID)
}

// UnlinkJob detaches the managed resume or cover letter from its job.
func (m *Manager) UnlinkJob(ctx context.Context) State {
	if m.kind == models.KindJobApplication {
		return m.rejectSelf(OpUnlinkJob)
	}
	return m.run(ctx, OpUnlinkJob, MsgUnlinkJobFailed, func(ctx context.Context, w *writer) (bool, error) {
		if m.kind == models.KindResume {
			return m.unlinkJobFromResume(ctx, w)
		}
		return m.unlinkJobFromCoverLetter(ctx, w)
	})
}

func (m *Manager) unlinkJobFromResume(ctx context.Context, w *writer) (bool, error) {
	r, err := w.get(ctx, store.Resumes, m.id, store.FieldJobApplicationID)
	if err != nil {
		return false, err
	}
	jobID := r.Str(store.FieldJobApplicationID)
	if jobID == "" {
		return false, nil
	}
	job, ok, err := w.optional(ctx, store.JobApplications, jobID, store.FieldResumeID)
	if err != nil {
		return false, err
	}
	fwd := step{store.Resumes, m.id, store.FieldJobApplicationID, ""}
	if ok && job.Str(store.FieldResumeID) == m.id {
		err = w.pair(ctx, fwd, jobID, step{store.JobApplications, jobID, store.FieldResumeID, ""})
	} else {
		err = w.set(ctx, fwd)
	}
	if err != nil {
		return false, err
	}

	letters, err := w.query(ctx, store.CoverLetters, store.FieldResumeID, m.id,
		store.FieldID, store.FieldJobApplicationID)
	if err != nil {
		return false, err
	}
	for _, cl := range letters {
		clID, j := cl.Str(store.FieldID), cl.Str(store.FieldJobApplicationID)
		if j == "" {
			continue
		}
		if err := w.release(ctx, store.JobApplications, j, store.FieldCoverLetterID, clID); err != nil {
			return false, err
		}
		if err := w.set(ctx, step{store.CoverLetters, clID, store.FieldJobApplicationID, ""}); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (m *Manager) unlinkJobFromCoverLetter(ctx context.Context, w *writer) (bool, error) {
	cl, err := w.get(ctx, store.CoverLetters, m.id, store.FieldResumeID, store.FieldJobApplicationID)
	if err != nil {
		return false, err
	}
	jobID := cl.Str(store.FieldJobApplicationID)
	if jobID == "" {
		return false, nil
	}
	job, ok, err := w.optional(ctx, store.JobApplications, jobID, store.FieldCoverLetterID)
	if err != nil {
		return false, err
	}
	fwd := step{store.CoverLetters, m.id, store.FieldJobApplicationID, ""}
	if ok && job.Str(store.FieldCoverLetterID) == m.id {
		err = w.pair(ctx, fwd, jobID, step{store.JobApplications, jobID, store.FieldCoverLetterID, ""})
	} else {
		err = w.set(ctx, fwd)
	}
	if err != nil {
		return false, err
	}

	// A job inherited through the resume would be restored by the next
	// audit, so the letter leaves that resume as well.
	resumeID := cl.Str(store.FieldResumeID)
	res, ok, err := w.optional(ctx, store.Resumes, resumeID, store.FieldJobApplicationID)
	if err != nil {
		return false, err
	}
	if ok && res.Str(store.FieldJobApplicationID) == jobID {
		if err := w.set(ctx, step{store.CoverLetters, m.id, store.FieldResumeID, ""}); err != nil {
			return false, err
		}
	}
	return true, nil
}

// LinkResume links resumeID to the managed cover letter or job application.
func (m *Manager) LinkResume(ctx context.Context, resumeID string) State {
	if m.kind == models.KindResume {
		return m.rejectSelf(OpLinkResume)
	}
	return m.run(ctx, OpLinkResume, MsgLinkResumeFailed, func(ctx context.Context, w *writer) (bool, error) {
		if err := required("resume", resumeID); err != nil {
			return false, err
		}
		if m.kind == models.KindCoverLetter {
			return true, m.linkResumeFromCoverLetter(ctx, w, resumeID)
		}
		return true, m.linkResumeFromJob(ctx, w, resumeID)
	})
}

func (m *Manager) linkResumeFromCoverLetter(ctx context.Context, w *writer, resumeID string) error {
	cl, err := w.get(ctx, store.CoverLetters, m.id, store.FieldJobApplicationID)
	if err != nil {
		return err
	}
	res, err := w.get(ctx, store.Resumes, resumeID, store.FieldJobApplicationID)
	if err != nil {
		return err
	}
	prevJob := cl.Str(store.FieldJobApplicationID)
	resJob := res.Str(store.FieldJobApplicationID)

	if err := w.set(ctx, step{store.CoverLetters, m.id, store.FieldResumeID, resumeID}); err != nil {
		return err
	}

	if resJob != "" {
		_, ok, err := w.optional(ctx, store.JobApplications, resJob, store.FieldCoverLetterID)
		if err != nil || !ok {
			return err
		}
		err = w.pair(ctx,
			step{store.CoverLetters, m.id, store.FieldJobApplicationID, resJob}, prevJob,
			step{store.JobApplications, resJob, store.FieldCoverLetterID, m.id})
		if err != nil {
			return err
		}
		if prevJob != "" && prevJob != resJob {
			return w.release(ctx, store.JobApplications, prevJob, store.FieldCoverLetterID, m.id)
		}
		return nil
	}

	// The resume has no job: the letter's job migrates to the resume.
	job, ok, err := w.optional(ctx, store.JobApplications, prevJob, store.FieldResumeID)
	if err != nil || !ok {
		return err
	}
	jobResume := job.Str(store.FieldResumeID)
	steps := []step{
		{store.JobApplications, prevJob, store.FieldResumeID, resumeID},
		{store.Resumes, resumeID, store.FieldJobApplicationID, prevJob},
		{store.JobApplications, prevJob, store.FieldCoverLetterID, ""},
		{store.CoverLetters, m.id, store.FieldJobApplicationID, ""},
	}
	for _, s := range steps {
		if err := w.set(ctx, s); err != nil {
			return err
		}
	}
	if jobResume != "" && jobResume != resumeID {
		return w.release(ctx, store.Resumes, jobResume, store.FieldJobApplicationID, prevJob)
	}
	return nil
}

func (m *Manager) linkResumeFromJob(ctx context.Context, w *writer, resumeID string) error {
	job, err := w.get(ctx, store.JobApplications, m.id, store.FieldResumeID, store.FieldCoverLetterID)
	if err != nil {
		return err
	}
	res, err := w.get(ctx, store.Resumes, resumeID, store.FieldJobApplicationID)
	if err != nil {
		return err
	}
	prev := job.Str(store.FieldResumeID)
	resPrev := res.Str(store.FieldJobApplicationID)

	err = w.pair(ctx,
		step{store.JobApplications, m.id, store.FieldResumeID, resumeID}, prev,
		step{store.Resumes, resumeID, store.FieldJobApplicationID, m.id})
	if err != nil {
		return err
	}
	if prev != "" && prev != resumeID {
		if err := w.release(ctx, store.Resumes, prev, store.FieldJobApplicationID, m.id); err != nil {
			return err
		}
	}
	if resPrev != "" && resPrev != m.id {
		if err := w.release(ctx, store.JobApplications, resPrev, store.FieldResumeID, resumeID); err != nil {
			return err
		}
	}
	if clID := job.Str(store.FieldCoverLetterID); clID != "" {
		_, ok, err := w.optional(ctx, store.CoverLetters, clID, store.FieldResumeID)
		if err != nil {
			return err
		}
		if ok {
			if err := w.set(ctx, step{store.CoverLetters, clID, store.FieldResumeID, resumeID}); err != nil {
				return err
			}
		}
	}
	return m.followResume(ctx, w, resumeID, m.id)
}

// UnlinkResume detaches the managed cover letter or job application from its
// resume.
func (m *Manager) UnlinkResume(ctx context.Context) State {
	if m.kind == models.KindResume {
		return m.rejectSelf(OpUnlinkResume)
	}
	return m.run(ctx, OpUnlinkResume, MsgUnlinkResumeFailed, func(ctx context.Context, w *writer) (bool, error) {
		if m.kind == models.KindCoverLetter {
			return m.unlinkResumeFromCoverLetter(ctx, w)
		}
		return m.unlinkResumeFromJob(ctx, w)
	})
}

func (m *Manager) unlinkResumeFromCoverLetter(ctx context.Context, w *writer) (bool, error) {
	cl, err := w.get(ctx, store.CoverLetters, m.id, store.FieldResumeID, store.FieldJobApplicationID)
	if err != nil {
		return false, err
	}
	resumeID := cl.Str(store.FieldResumeID)
	if resumeID == "" {
		return false, nil
	}
	jobID := cl.Str(store.FieldJobApplicationID)
	fwd := step{store.CoverLetters, m.id, store.FieldResumeID, ""}
	if jobID == "" {
		return true, w.set(ctx, fwd)
	}

	// The letter's job came with the resume, so both go.
	err = w.pair(ctx, fwd, resumeID, step{store.CoverLetters, m.id, store.FieldJobApplicationID, ""})
	if err != nil {
		return false, err
	}
	releases := []struct {
		table        store.Table
		id, field, v string
	}{
		{store.JobApplications, jobID, store.FieldResumeID, resumeID},
		{store.JobApplications, jobID, store.FieldCoverLetterID, m.id},
		{store.Resumes, resumeID, store.FieldJobApplicationID, jobID},
	}
	for _, r := range releases {
		if err := w.release(ctx, r.table, r.id, r.field, r.v); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (m *Manager) unlinkResumeFromJob(ctx context.Context, w *writer) (bool, error) {
	job, err := w.get(ctx, store.JobApplications, m.id, store.FieldResumeID, store.FieldCoverLetterID)
	if err != nil {
		return false, err
	}
	resumeID := job.Str(store.FieldResumeID)
	if resumeID == "" {
		return false, nil
	}
	res, ok, err := w.optional(ctx, store.Resumes, resumeID, store.FieldJobApplicationID)
	if err != nil {
		return false, err
	}
	fwd := step{store.JobApplications, m.id, store.FieldResumeID, ""}
	if ok && res.Str(store.FieldJobApplicationID) == m.id {
		err = w.pair(ctx, fwd, resumeID, step{store.Resumes, resumeID, store.FieldJobApplicationID, ""})
	} else {
		err = w.set(ctx, fwd)
	}
	if err != nil {
		return false, err
	}
	if clID := job.Str(store.FieldCoverLetterID); clID != "" {
		if err := w.release(ctx, store.CoverLetters, clID, store.FieldResumeID, resumeID); err != nil {
			return false, err
		}
	}
	return true, nil
}

// LinkCoverLetter links coverLetterID to the managed resume or job
// application.
func (m *Manager) LinkCoverLetter(ctx context.Context, coverLetterID string) State {
	if m.kind == models.KindCoverLetter {
		return m.rejectSelf(OpLinkCoverLetter)
	}
	return m.run(ctx, OpLinkCoverLetter, MsgLinkCoverLetterFailed, func(ctx context.Context, w *writer) (bool, error) {
		if err := required("cover letter", coverLetterID); err != nil {
			return false, err
		}
		if m.kind == models.KindResume {
			return true, m.linkCoverLetterFromResume(ctx, w, coverLetterID)
		}
		return true, m.linkCoverLetterFromJob(ctx, w, coverLetterID)
	})
}

func (m *Manager) linkCoverLetterFromResume(ctx context.Context, w *writer, clID string) error {
	cl, err := w.get(ctx, store.CoverLetters, clID, store.FieldJobApplicationID)
	if err != nil {
		return err
	}
	r, err := w.get(ctx, store.Resumes, m.id, store.FieldJobApplicationID)
	if err != nil {
		return err
	}
	prevJob := cl.Str(store.FieldJobApplicationID)
	resJob := r.Str(store.FieldJobApplicationID)

	if err := w.set(ctx, step{store.CoverLetters, clID, store.FieldResumeID, m.id}); err != nil {
		return err
	}
	_, ok, err := w.optional(ctx, store.JobApplications, resJob, store.FieldCoverLetterID)
	if err != nil || !ok {
		return err
	}
	err = w.pair(ctx,
		step{store.CoverLetters, clID, store.FieldJobApplicationID, resJob}, prevJob,
		step{store.JobApplications, resJob, store.FieldCoverLetterID, clID})
	if err != nil {
		return err
	}
	if prevJob != "" && prevJob != resJob {
		return w.release(ctx, store.JobApplications, prevJob, store.FieldCoverLetterID, clID)
	}
	return nil
}

func (m *Manager) linkCoverLetterFromJob(ctx context.Context, w *writer, clID string) error {
	job, err := w.get(ctx, store.JobApplications, m.id, store.FieldResumeID, store.FieldCoverLetterID)
	if err != nil {
		return err
	}
	cl, err := w.get(ctx, store.CoverLetters, clID, store.FieldJobApplicationID)
	if err != nil {
		return err
	}
	prev := job.Str(store.FieldCoverLetterID)
	clPrev := cl.Str(store.FieldJobApplicationID)

	err = w.pair(ctx,
		step{store.JobApplications, m.id, store.FieldCoverLetterID, clID}, prev,
		step{store.CoverLetters, clID, store.FieldJobApplicationID, m.id})
	if err != nil {
		return err
	}
	if prev != "" && prev != clID {
		if err := w.release(ctx, store.CoverLetters, prev, store.FieldJobApplicationID, m.id); err != nil {
			return err
		}
	}
	if clPrev != "" && clPrev != m.id {
		if err := w.release(ctx, store.JobApplications, clPrev, store.FieldCoverLetterID, clID); err != nil {
			return err
		}
	}
	if resumeID := job.Str(store.FieldResumeID); resumeID != "" {
		return w.set(ctx, step{store.CoverLetters, clID, store.FieldResumeID, resumeID})
	}
	return nil
}

// UnlinkCoverLetter detaches coverLetterID from the managed resume or job
// application. Unlinking a letter that is not linked here is a no-op.
func (m *Manager) UnlinkCoverLetter(ctx context.Context, coverLetterID string) State {
	if m.kind == models.KindCoverLetter {
		return m.rejectSelf(OpUnlinkCoverLetter)
	}
	return m.run(ctx, OpUnlinkCoverLetter, MsgUnlinkCoverLetterFailed, func(ctx context.Context, w *writer) (bool, error) {
		if err := required("cover letter", coverLetterID); err != nil {
			return false, err
		}
		if m.kind == models.KindResume {
			return m.unlinkCoverLetterFromResume(ctx, w, coverLetterID)
		}
		return m.unlinkCoverLetterFromJob(ctx, w, coverLetterID)
	})
}

func (m *Manager) unlinkCoverLetterFromResume(ctx context.Context, w *writer, clID string) (bool, error) {
	cl, err := w.get(ctx, store.CoverLetters, clID, store.FieldResumeID, store.FieldJobApplicationID)
	if err != nil {
		return false, err
	}
	if cl.Str(store.FieldResumeID) != m.id {
		return false, nil
	}
	fwd := step{store.CoverLetters, clID, store.FieldResumeID, ""}
	jobID := cl.Str(store.FieldJobApplicationID)
	if jobID == "" {
		return true, w.set(ctx, fwd)
	}
	err = w.pair(ctx, fwd, m.id, step{store.CoverLetters, clID, store.FieldJobApplicationID, ""})
	if err != nil {
		return false, err
	}
	return true, w.release(ctx, store.JobApplications, jobID, store.FieldCoverLetterID, clID)
}

func (m *Manager) unlinkCoverLetterFromJob(ctx context.Context, w *writer, clID string) (bool, error) {
	job, err := w.get(ctx, store.JobApplications, m.id, store.FieldResumeID, store.FieldCoverLetterID)
	if err != nil {
		return false, err
	}
	if job.Str(store.FieldCoverLetterID) != clID {
		return false, nil
	}
	cl, ok, err := w.optional(ctx, store.CoverLetters, clID, store.FieldResumeID, store.FieldJobApplicationID)
	if err != nil {
		return false, err
	}
	fwd := step{store.JobApplications, m.id, store.FieldCoverLetterID, ""}
	if ok && cl.Str(store.FieldJobApplicationID) == m.id {
		err = w.pair(ctx, fwd, clID, step{store.CoverLetters, clID, store.FieldJobApplicationID, ""})
	} else {
		err = w.set(ctx, fwd)
	}
	if err != nil {
		return false, err
	}
	// Keeping the shared resume would let the next audit pull the letter back.
	if resumeID := job.Str(store.FieldResumeID); ok && resumeID != "" && cl.Str(store.FieldResumeID) == resumeID {
		if err := w.set(ctx, step{store.CoverLetters, clID, store.FieldResumeID, ""}); err != nil {
			return false, err
		}
	}
	return true, nil
}

package linker_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/careerlink/internal/apperr"
	"github.com/starford/careerlink/internal/linker"
	"github.com/starford/careerlink/internal/models"
	"github.com/starford/careerlink/internal/store"
	"github.com/starford/careerlink/internal/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []linker.Event
}

func (r *recorder) notify(ev linker.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func field(t *testing.T, s store.Accessor, table store.Table, id, f string) string {
	t.Helper()
	return testutil.Field(t, s, table, id, f)
}

func TestLinkJob_FromResume(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "R1", "")
	testutil.Job(t, s, "job-42", "", "")
	rec := &recorder{}

	m := linker.New(s, models.KindResume, "R1", linker.WithNotifier(rec.notify))
	st := m.LinkJob(ctx, "job-42")

	require.Empty(t, st.Error)
	assert.False(t, st.IsLoading)
	require.NotNil(t, st.LinkedJob)
	assert.Equal(t, "job-42", st.LinkedJob.ID)
	assert.Equal(t, "Acme", st.LinkedJob.CompanyName)
	assert.Equal(t, "job-42", field(t, s, store.Resumes, "R1", store.FieldJobApplicationID))
	assert.Equal(t, "R1", field(t, s, store.JobApplications, "job-42", store.FieldResumeID))
	assert.Equal(t, []string{linker.EventLinksChanged}, rec.types())
}

func TestLinkJob_MovesReverseLink(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "j1")
	testutil.Resume(t, s, "r2", "j2")
	testutil.Job(t, s, "j1", "r1", "")
	testutil.Job(t, s, "j2", "r2", "")

	st := linker.New(s, models.KindResume, "r1").LinkJob(ctx, "j2")
	require.Empty(t, st.Error)

	assert.Empty(t, field(t, s, store.JobApplications, "j1", store.FieldResumeID))
	assert.Equal(t, "r1", field(t, s, store.JobApplications, "j2", store.FieldResumeID))
	assert.Empty(t, field(t, s, store.Resumes, "r2", store.FieldJobApplicationID))
}

func TestLinkJob_PropagatesToCoverLetters(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "")
	testutil.Job(t, s, "j1", "", "")
	testutil.CoverLetter(t, s, "c1", "r1", "")

	st := linker.New(s, models.KindResume, "r1").LinkJob(ctx, "j1")
	require.Empty(t, st.Error)
	require.Len(t, st.LinkedCoverLetters, 1)

	cl := linker.New(s, models.KindCoverLetter, "c1").Refresh(ctx)
	require.Empty(t, cl.Error)
	require.NotNil(t, cl.LinkedJob)
	assert.Equal(t, "j1", cl.LinkedJob.ID)
	assert.Equal(t, "c1", field(t, s, store.JobApplications, "j1", store.FieldCoverLetterID))
}

func TestLinkJob_LetterLeavesOldJob(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "j1")
	testutil.Job(t, s, "j1", "r1", "c1")
	testutil.Job(t, s, "j2", "", "")
	testutil.CoverLetter(t, s, "c1", "r1", "j1")

	st := linker.New(s, models.KindResume, "r1").LinkJob(ctx, "j2")
	require.Empty(t, st.Error)

	assert.Equal(t, "j2", field(t, s, store.CoverLetters, "c1", store.FieldJobApplicationID))
	assert.Equal(t, "c1", field(t, s, store.JobApplications, "j2", store.FieldCoverLetterID))
	assert.Empty(t, field(t, s, store.JobApplications, "j1", store.FieldCoverLetterID))
	assert.Empty(t, field(t, s, store.JobApplications, "j1", store.FieldResumeID))
}

func TestLinkJob_FromCoverLetterCarriesResume(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "")
	testutil.CoverLetter(t, s, "c1", "r1", "")
	testutil.Job(t, s, "j1", "", "")

	st := linker.New(s, models.KindCoverLetter, "c1").LinkJob(ctx, "j1")
	require.Empty(t, st.Error)
	require.NotNil(t, st.LinkedJob)
	require.NotNil(t, st.LinkedResume)

	assert.Equal(t, "c1", field(t, s, store.JobApplications, "j1", store.FieldCoverLetterID))
	assert.Equal(t, "r1", field(t, s, store.JobApplications, "j1", store.FieldResumeID))
	assert.Equal(t, "j1", field(t, s, store.Resumes, "r1", store.FieldJobApplicationID))
}

func TestLinkJob_MissingTarget(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "")

	st := linker.New(s, models.KindResume, "r1").LinkJob(ctx, "nope")
	assert.Equal(t, linker.MsgLinkJobFailed, st.Error)
	assert.ErrorIs(t, st.Cause(), apperr.ErrNotFound)
	assert.Empty(t, field(t, s, store.Resumes, "r1", store.FieldJobApplicationID))
}

func TestLinkJob_EmptyID(t *testing.T) {
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "")

	st := linker.New(s, models.KindResume, "r1").LinkJob(context.Background(), "")
	assert.Equal(t, linker.MsgLinkJobFailed, st.Error)
	assert.ErrorIs(t, st.Cause(), apperr.ErrInvalid)
}

func TestSelfLinkIsNoop(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewFaultStore(testutil.TestStore(t))
	testutil.Job(t, s, "j1", "", "")
	testutil.Resume(t, s, "r1", "")
	testutil.CoverLetter(t, s, "c1", "", "")
	rec := &recorder{}

	job := linker.New(s, models.KindJobApplication, "j1", linker.WithNotifier(rec.notify))
	assert.Empty(t, job.LinkJob(ctx, "j1").Error)
	assert.Empty(t, job.UnlinkJob(ctx).Error)
	assert.Empty(t, linker.New(s, models.KindResume, "r1").LinkResume(ctx, "r1").Error)
	assert.Empty(t, linker.New(s, models.KindCoverLetter, "c1").LinkCoverLetter(ctx, "c1").Error)

	assert.Empty(t, s.Writes())
	assert.Empty(t, rec.types())
}

// The reverse write fails, then so does the compensation; the next read
// closes the link.
func TestLinkJob_TornWriteRepairedOnRead(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewFaultStore(testutil.TestStore(t))
	testutil.Resume(t, s, "r1", "")
	testutil.Job(t, s, "j1", "", "")

	s.FailUpdate(store.JobApplications, "j1", store.FieldResumeID)
	s.FailWhen(func(w testutil.Write) bool {
		return w.Table == store.Resumes && w.Field == store.FieldJobApplicationID && w.Value == ""
	})
	m := linker.New(s, models.KindResume, "r1", linker.WithAtomicWrites(false))

	st := m.LinkJob(ctx, "j1")
	assert.Equal(t, linker.MsgLinkJobFailed, st.Error)
	assert.ErrorIs(t, st.Cause(), testutil.ErrInjected)
	assert.Equal(t, "j1", field(t, s, store.Resumes, "r1", store.FieldJobApplicationID))
	assert.Empty(t, field(t, s, store.JobApplications, "j1", store.FieldResumeID))

	s.Reset()
	st = m.Refresh(ctx)
	require.Empty(t, st.Error)
	assert.Equal(t, "j1", field(t, s, store.Resumes, "r1", store.FieldJobApplicationID))
	assert.Equal(t, "r1", field(t, s, store.JobApplications, "j1", store.FieldResumeID))
}

func TestLinkJob_CompensatesForwardWrite(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewFaultStore(testutil.TestStore(t))
	testutil.Resume(t, s, "r1", "j0")
	testutil.Job(t, s, "j0", "r1", "")
	testutil.Job(t, s, "j1", "", "")
	s.FailUpdate(store.JobApplications, "j1", store.FieldResumeID)

	st := linker.New(s, models.KindResume, "r1", linker.WithAtomicWrites(false)).LinkJob(ctx, "j1")
	assert.Equal(t, linker.MsgLinkJobFailed, st.Error)
	assert.Equal(t, "j0", field(t, s, store.Resumes, "r1", store.FieldJobApplicationID))
	assert.Equal(t, "r1", field(t, s, store.JobApplications, "j0", store.FieldResumeID))
}

func TestLinkJob_AtomicRollback(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewFaultStore(testutil.TestStore(t))
	testutil.Resume(t, s, "r1", "")
	testutil.Job(t, s, "j1", "", "")
	testutil.CoverLetter(t, s, "c1", "r1", "")
	// Fails during propagation, after both link writes succeeded.
	s.FailUpdate(store.CoverLetters, "c1", store.FieldJobApplicationID)

	st := linker.New(s, models.KindResume, "r1").LinkJob(ctx, "j1")
	assert.Equal(t, linker.MsgLinkJobFailed, st.Error)
	assert.Empty(t, field(t, s, store.Resumes, "r1", store.FieldJobApplicationID))
	assert.Empty(t, field(t, s, store.JobApplications, "j1", store.FieldResumeID))
}

func TestLinkJob_ExpectVersion(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "")
	testutil.Job(t, s, "j1", "", "")
	testutil.Job(t, s, "j2", "", "")
	m := linker.New(s, models.KindResume, "r1")

	v, err := m.Version(ctx)
	require.NoError(t, err)

	st := m.LinkJob(linker.ExpectVersion(ctx, v), "j1")
	require.Empty(t, st.Error)

	st = m.LinkJob(linker.ExpectVersion(ctx, v), "j2")
	assert.Equal(t, linker.MsgLinkJobFailed, st.Error)
	assert.ErrorIs(t, st.Cause(), apperr.ErrConflict)
	assert.Equal(t, "j1", field(t, s, store.Resumes, "r1", store.FieldJobApplicationID))
}

func TestUnlinkJob_FromResume(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "j1")
	testutil.Job(t, s, "j1", "r1", "c1")
	testutil.CoverLetter(t, s, "c1", "r1", "j1")

	st := linker.New(s, models.KindResume, "r1").UnlinkJob(ctx)
	require.Empty(t, st.Error)
	assert.Nil(t, st.LinkedJob)
	require.Len(t, st.LinkedCoverLetters, 1)

	assert.Empty(t, field(t, s, store.JobApplications, "j1", store.FieldResumeID))
	assert.Empty(t, field(t, s, store.JobApplications, "j1", store.FieldCoverLetterID))
	assert.Empty(t, field(t, s, store.CoverLetters, "c1", store.FieldJobApplicationID))
	assert.Equal(t, "r1", field(t, s, store.CoverLetters, "c1", store.FieldResumeID))
}

func TestLinkJob_ResumeWithSeveralLetters(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "")
	testutil.Job(t, s, "j1", "", "")
	testutil.Job(t, s, "j0", "", "c2")
	testutil.CoverLetter(t, s, "c1", "r1", "")
	testutil.CoverLetter(t, s, "c2", "r1", "j0")

	st := linker.New(s, models.KindResume, "r1").LinkJob(ctx, "j1")
	require.Empty(t, st.Error)
	require.Len(t, st.LinkedCoverLetters, 2)

	assert.Equal(t, "j1", field(t, s, store.CoverLetters, "c1", store.FieldJobApplicationID))
	assert.Equal(t, "j1", field(t, s, store.CoverLetters, "c2", store.FieldJobApplicationID))
	assert.Equal(t, "c1", field(t, s, store.JobApplications, "j1", store.FieldCoverLetterID))
	assert.Empty(t, field(t, s, store.JobApplications, "j0", store.FieldCoverLetterID))
}

func TestLinkJob_ResumeLettersKeepJobHolder(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "")
	testutil.Job(t, s, "j1", "", "c2")
	testutil.CoverLetter(t, s, "c1", "r1", "")
	testutil.CoverLetter(t, s, "c2", "r1", "j1")

	st := linker.New(s, models.KindResume, "r1").LinkJob(ctx, "j1")
	require.Empty(t, st.Error)

	assert.Equal(t, "c2", field(t, s, store.JobApplications, "j1", store.FieldCoverLetterID))
	assert.Equal(t, "j1", field(t, s, store.CoverLetters, "c1", store.FieldJobApplicationID))
}

func TestUnlinkJob_FromResumeClearsEveryLetter(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "j1")
	testutil.Job(t, s, "j1", "r1", "c1")
	testutil.CoverLetter(t, s, "c1", "r1", "j1")
	testutil.CoverLetter(t, s, "c2", "r1", "j1")

	st := linker.New(s, models.KindResume, "r1").UnlinkJob(ctx)
	require.Empty(t, st.Error)
	assert.Nil(t, st.LinkedJob)
	require.Len(t, st.LinkedCoverLetters, 2)

	assert.Empty(t, field(t, s, store.JobApplications, "j1", store.FieldResumeID))
	assert.Empty(t, field(t, s, store.JobApplications, "j1", store.FieldCoverLetterID))
	for _, id := range []string{"c1", "c2"} {
		assert.Empty(t, field(t, s, store.CoverLetters, id, store.FieldJobApplicationID), id)
		assert.Equal(t, "r1", field(t, s, store.CoverLetters, id, store.FieldResumeID), id)
	}

	rep, err := linker.NewAuditor(s, nil).Sweep(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, rep.Found)
}

func TestUnlinkJob_NothingLinked(t *testing.T) {
	s := testutil.NewFaultStore(testutil.TestStore(t))
	testutil.CoverLetter(t, s, "c1", "", "")
	rec := &recorder{}

	st := linker.New(s, models.KindCoverLetter, "c1", linker.WithNotifier(rec.notify)).UnlinkJob(context.Background())
	assert.Empty(t, st.Error)
	assert.Empty(t, s.Writes())
	assert.Empty(t, rec.types())
}

func TestUnlinkJob_FromCoverLetterLeavesResume(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "j1")
	testutil.Job(t, s, "j1", "r1", "c1")
	testutil.CoverLetter(t, s, "c1", "r1", "j1")

	st := linker.New(s, models.KindCoverLetter, "c1").UnlinkJob(ctx)
	require.Empty(t, st.Error)
	assert.Nil(t, st.LinkedJob)
	assert.Nil(t, st.LinkedResume)

	assert.Empty(t, field(t, s, store.JobApplications, "j1", store.FieldCoverLetterID))
	assert.Equal(t, "r1", field(t, s, store.JobApplications, "j1", store.FieldResumeID))
	assert.Equal(t, "j1", field(t, s, store.Resumes, "r1", store.FieldJobApplicationID))
}

func TestUnlinkResume_FromCoverLetter(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "R2", "J2")
	testutil.Job(t, s, "J2", "R2", "C2")
	testutil.CoverLetter(t, s, "C2", "R2", "J2")

	st := linker.New(s, models.KindCoverLetter, "C2").UnlinkResume(ctx)
	require.Empty(t, st.Error)
	assert.Nil(t, st.LinkedResume)
	assert.Nil(t, st.LinkedJob)

	assert.Empty(t, field(t, s, store.CoverLetters, "C2", store.FieldResumeID))
	assert.Empty(t, field(t, s, store.CoverLetters, "C2", store.FieldJobApplicationID))
	assert.Empty(t, field(t, s, store.JobApplications, "J2", store.FieldResumeID))
	assert.Empty(t, field(t, s, store.JobApplications, "J2", store.FieldCoverLetterID))
}

func TestUnlinkResume_FromJob(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "j1")
	testutil.Job(t, s, "j1", "r1", "c1")
	testutil.CoverLetter(t, s, "c1", "r1", "j1")

	st := linker.New(s, models.KindJobApplication, "j1").UnlinkResume(ctx)
	require.Empty(t, st.Error)
	assert.Nil(t, st.LinkedResume)
	require.NotNil(t, st.LinkedJob)
	assert.Equal(t, "j1", st.LinkedJob.ID)
	require.Len(t, st.LinkedCoverLetters, 1)

	assert.Empty(t, field(t, s, store.Resumes, "r1", store.FieldJobApplicationID))
	assert.Empty(t, field(t, s, store.CoverLetters, "c1", store.FieldResumeID))
	assert.Equal(t, "j1", field(t, s, store.CoverLetters, "c1", store.FieldJobApplicationID))
}

func TestLinkResume_FromCoverLetterAdoptsResumeJob(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "j1")
	testutil.Job(t, s, "j1", "r1", "")
	testutil.Job(t, s, "j0", "", "c1")
	testutil.CoverLetter(t, s, "c1", "", "j0")

	st := linker.New(s, models.KindCoverLetter, "c1").LinkResume(ctx, "r1")
	require.Empty(t, st.Error)
	require.NotNil(t, st.LinkedJob)
	assert.Equal(t, "j1", st.LinkedJob.ID)

	assert.Equal(t, "c1", field(t, s, store.JobApplications, "j1", store.FieldCoverLetterID))
	assert.Empty(t, field(t, s, store.JobApplications, "j0", store.FieldCoverLetterID))
}

func TestLinkResume_FromCoverLetterMigratesJob(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "")
	testutil.Job(t, s, "j1", "", "c1")
	testutil.CoverLetter(t, s, "c1", "", "j1")

	st := linker.New(s, models.KindCoverLetter, "c1").LinkResume(ctx, "r1")
	require.Empty(t, st.Error)
	require.NotNil(t, st.LinkedResume)
	require.NotNil(t, st.LinkedJob)
	assert.Equal(t, "j1", st.LinkedJob.ID)

	assert.Equal(t, "j1", field(t, s, store.Resumes, "r1", store.FieldJobApplicationID))
	assert.Equal(t, "r1", field(t, s, store.JobApplications, "j1", store.FieldResumeID))
	assert.Equal(t, "c1", field(t, s, store.JobApplications, "j1", store.FieldCoverLetterID))
	assert.Equal(t, "j1", field(t, s, store.CoverLetters, "c1", store.FieldJobApplicationID))
}

func TestLinkResume_FromJob(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r0", "j1")
	testutil.Resume(t, s, "r1", "")
	testutil.Job(t, s, "j1", "r0", "c1")
	testutil.CoverLetter(t, s, "c1", "r0", "j1")

	st := linker.New(s, models.KindJobApplication, "j1").LinkResume(ctx, "r1")
	require.Empty(t, st.Error)
	require.NotNil(t, st.LinkedResume)
	assert.Equal(t, "r1", st.LinkedResume.ID)

	assert.Equal(t, "j1", field(t, s, store.Resumes, "r1", store.FieldJobApplicationID))
	assert.Empty(t, field(t, s, store.Resumes, "r0", store.FieldJobApplicationID))
	assert.Equal(t, "r1", field(t, s, store.CoverLetters, "c1", store.FieldResumeID))
}

func TestLinkCoverLetter_FromJob(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "j1")
	testutil.Job(t, s, "j1", "r1", "c0")
	testutil.CoverLetter(t, s, "c0", "", "j1")
	testutil.CoverLetter(t, s, "c1", "", "")

	st := linker.New(s, models.KindJobApplication, "j1").LinkCoverLetter(ctx, "c1")
	require.Empty(t, st.Error)
	require.Len(t, st.LinkedCoverLetters, 1)
	assert.Equal(t, "c1", st.LinkedCoverLetters[0].ID)

	assert.Equal(t, "j1", field(t, s, store.CoverLetters, "c1", store.FieldJobApplicationID))
	assert.Equal(t, "r1", field(t, s, store.CoverLetters, "c1", store.FieldResumeID))
	assert.Empty(t, field(t, s, store.CoverLetters, "c0", store.FieldJobApplicationID))
}

func TestLinkCoverLetter_FromResume(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "j1")
	testutil.Job(t, s, "j1", "r1", "")
	testutil.CoverLetter(t, s, "c1", "", "")

	st := linker.New(s, models.KindResume, "r1").LinkCoverLetter(ctx, "c1")
	require.Empty(t, st.Error)
	require.Len(t, st.LinkedCoverLetters, 1)

	assert.Equal(t, "r1", field(t, s, store.CoverLetters, "c1", store.FieldResumeID))
	assert.Equal(t, "j1", field(t, s, store.CoverLetters, "c1", store.FieldJobApplicationID))
	assert.Equal(t, "c1", field(t, s, store.JobApplications, "j1", store.FieldCoverLetterID))
}

func TestUnlinkCoverLetter_FromResume(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "j1")
	testutil.Job(t, s, "j1", "r1", "c1")
	testutil.CoverLetter(t, s, "c1", "r1", "j1")
	m := linker.New(s, models.KindResume, "r1")

	st := m.UnlinkCoverLetter(ctx, "c1")
	require.Empty(t, st.Error)
	assert.Empty(t, st.LinkedCoverLetters)
	assert.Empty(t, field(t, s, store.CoverLetters, "c1", store.FieldResumeID))
	assert.Empty(t, field(t, s, store.CoverLetters, "c1", store.FieldJobApplicationID))
	assert.Empty(t, field(t, s, store.JobApplications, "j1", store.FieldCoverLetterID))

	// Not linked here any more.
	st = m.UnlinkCoverLetter(ctx, "c1")
	assert.Empty(t, st.Error)
}

func TestUnlinkCoverLetter_FromJob(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "j1")
	testutil.Job(t, s, "j1", "r1", "c1")
	testutil.CoverLetter(t, s, "c1", "r1", "j1")

	st := linker.New(s, models.KindJobApplication, "j1").UnlinkCoverLetter(ctx, "c1")
	require.Empty(t, st.Error)
	assert.Empty(t, st.LinkedCoverLetters)
	assert.Empty(t, field(t, s, store.JobApplications, "j1", store.FieldCoverLetterID))
	assert.Empty(t, field(t, s, store.CoverLetters, "c1", store.FieldJobApplicationID))
	assert.Empty(t, field(t, s, store.CoverLetters, "c1", store.FieldResumeID))
}

func TestRefresh_ReportsRepairs(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "gone")
	rec := &recorder{}

	m := linker.New(s, models.KindResume, "r1", linker.WithNotifier(rec.notify))
	st := m.Activate(ctx)
	require.Empty(t, st.Error)
	assert.Nil(t, st.LinkedJob)
	assert.NotNil(t, st.LinkedCoverLetters)
	assert.Equal(t, []string{linker.EventLinksRepaired}, rec.types())

	m.Activate(ctx)
	assert.Len(t, rec.types(), 1)
}

func TestRefresh_MissingEntity(t *testing.T) {
	s := testutil.TestStore(t)
	st := linker.New(s, models.KindJobApplication, "nope").Refresh(context.Background())
	assert.Equal(t, linker.MsgFetchFailed, st.Error)
	assert.ErrorIs(t, st.Cause(), apperr.ErrNotFound)
}

func TestRegistry(t *testing.T) {
	s := testutil.TestStore(t)
	r := linker.NewRegistry(s)

	a := r.Manager(models.KindResume, "r1")
	assert.Same(t, a, r.Manager(models.KindResume, "r1"))
	assert.NotSame(t, a, r.Manager(models.KindCoverLetter, "r1"))
	assert.Equal(t, 2, r.Len())

	r.Forget(models.KindResume, "r1")
	assert.NotSame(t, a, r.Manager(models.KindResume, "r1"))
}

func TestRegistry_LookupMissingEntity(t *testing.T) {
	ctx := context.Background()
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "")
	r := linker.NewRegistry(s)

	_, err := r.Lookup(ctx, models.KindResume, "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = r.Lookup(ctx, models.Kind("folder"), "r1")
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	assert.Zero(t, r.Len())

	m, err := r.Lookup(ctx, models.KindResume, "r1")
	require.NoError(t, err)
	assert.Same(t, m, r.Manager(models.KindResume, "r1"))
	assert.False(t, r.ForgetMissing(ctx, models.KindResume, "r1"))
	assert.Equal(t, 1, r.Len())

	require.NoError(t, s.Delete(ctx, store.Resumes, "r1"))
	assert.True(t, r.ForgetMissing(ctx, models.KindResume, "r1"))
	assert.Zero(t, r.Len())
}

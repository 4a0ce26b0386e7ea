package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/careerlink/internal/linker"
	"github.com/starford/careerlink/internal/models"
	"github.com/starford/careerlink/internal/store"
	"github.com/starford/careerlink/internal/testutil"
)

type fakeJob struct {
	name     string
	schedule string
	runs     atomic.Int32
	block    chan struct{}
}

func (f *fakeJob) Name() string     { return f.name }
func (f *fakeJob) Schedule() string { return f.schedule }

func (f *fakeJob) Run(ctx context.Context) {
	f.runs.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
		}
	}
}

func TestSweepJobRepairsAndNotifies(t *testing.T) {
	s := testutil.TestStore(t)
	testutil.Resume(t, s, "r1", "gone")
	testutil.Resume(t, s, "r2", "")

	var mu sync.Mutex
	var events []linker.Event
	job := NewSweepJob(linker.NewAuditor(s, nil), "@every 5m", WithSweepNotifier(func(ev linker.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}))

	rep, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Audited)
	assert.Equal(t, 1, rep.Applied)
	assert.Empty(t, testutil.Field(t, s, store.Resumes, "r1", store.FieldJobApplicationID))

	require.Len(t, events, 1)
	assert.Equal(t, linker.EventLinksRepaired, events[0].Type)
	assert.Equal(t, models.KindResume, events[0].EntityType)
	assert.Equal(t, "r1", events[0].EntityID)
	assert.Equal(t, []linker.Category{linker.ResumeJobDangling}, events[0].Categories)
}

func TestSweepJobDryRun(t *testing.T) {
	s := testutil.TestStore(t)
	testutil.Job(t, s, "j1", "gone", "")

	notified := false
	job := NewSweepJob(linker.NewAuditor(s, nil), "@every 5m",
		WithDryRun(true),
		WithSweepNotifier(func(linker.Event) { notified = true }))

	rep, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, rep.Found, 1)
	assert.Zero(t, rep.Applied)
	assert.False(t, notified)
	assert.Equal(t, "gone", testutil.Field(t, s, store.JobApplications, "j1", store.FieldResumeID))
}

func TestRepairedEventsGroupsByEntity(t *testing.T) {
	found := []linker.Inconsistency{
		{Category: linker.JobCoverLetterDangling, EntityType: models.KindJobApplication, EntityID: "j1"},
		{Category: linker.ResumeJobDangling, EntityType: models.KindResume, EntityID: "r1"},
		{Category: linker.JobLacksResume, EntityType: models.KindJobApplication, EntityID: "j1"},
		{Category: linker.JobLacksResume, EntityType: models.KindJobApplication, EntityID: "j1"},
	}
	events := repairedEvents(found)
	require.Len(t, events, 2)
	assert.Equal(t, "j1", events[0].EntityID)
	assert.Equal(t, []linker.Category{linker.JobLacksResume, linker.JobCoverLetterDangling}, events[0].Categories)
	assert.Equal(t, "r1", events[1].EntityID)
}

func TestRunnerTriggerDoesNotOverlap(t *testing.T) {
	job := &fakeJob{name: "slow", block: make(chan struct{})}
	r, err := NewRunner(nil, job)
	require.NoError(t, err)

	ctx := context.Background()
	require.True(t, r.Trigger(ctx, "slow"))
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.True(t, r.Running("slow"))
	assert.False(t, r.Trigger(ctx, "slow"))
	assert.False(t, r.Trigger(ctx, "unknown"))

	close(job.block)
	require.Eventually(t, func() bool { return !r.Running("slow") }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestRunnerSchedules(t *testing.T) {
	job := &fakeJob{name: "tick", schedule: "@every 1s"}
	r, err := NewRunner(nil, job)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunnerRejectsBadSchedule(t *testing.T) {
	r, err := NewRunner(nil, &fakeJob{name: "bad", schedule: "every now and then"})
	require.NoError(t, err)
	assert.Error(t, r.Run(context.Background()))
}

func TestNewRunnerDuplicateName(t *testing.T) {
	_, err := NewRunner(nil, &fakeJob{name: "a"}, &fakeJob{name: "a"})
	assert.Error(t, err)
}

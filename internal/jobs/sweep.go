package jobs

import (
	"context"
	"log/slog"
	"slices"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/starford/careerlink/internal/linker"
	"github.com/starford/careerlink/internal/models"
)

// SweepJobName is the Runner name of the link sweep.
const SweepJobName = "link-sweep"

// SweepJob audits every entity in the store and, unless running dry,
// repairs what it finds.
type SweepJob struct {
	auditor  *linker.Auditor
	schedule string
	repair   bool
	notify   func(linker.Event)
	logger   *slog.Logger
}

// SweepOption configures a SweepJob.
type SweepOption func(*SweepJob)

// WithDryRun reports findings without repairing them.
func WithDryRun(dry bool) SweepOption {
	return func(j *SweepJob) { j.repair = !dry }
}

// WithSweepNotifier receives one links.repaired event per repaired entity.
func WithSweepNotifier(fn func(linker.Event)) SweepOption {
	return func(j *SweepJob) { j.notify = fn }
}

// WithSweepLogger sets the logger.
func WithSweepLogger(l *slog.Logger) SweepOption {
	return func(j *SweepJob) {
		if l != nil {
			j.logger = l
		}
	}
}

// NewSweepJob creates a sweep that runs on schedule.
func NewSweepJob(auditor *linker.Auditor, schedule string, opts ...SweepOption) *SweepJob {
	j := &SweepJob{
		auditor:  auditor,
		schedule: schedule,
		repair:   true,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *SweepJob) Name() string     { return SweepJobName }
func (j *SweepJob) Schedule() string { return j.schedule }

// Run performs one sweep, logging failures.
func (j *SweepJob) Run(ctx context.Context) {
	if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("link sweep failed", slog.String("error", err.Error()))
	}
}

// RunOnce performs one sweep and returns its report.
func (j *SweepJob) RunOnce(ctx context.Context) (linker.SweepReport, error) {
	start := time.Now()
	rep, err := j.auditor.Sweep(ctx, j.repair)
	if err != nil {
		return rep, err
	}
	j.logger.Debug("link sweep done",
		slog.Int("audited", rep.Audited),
		slog.Int("found", len(rep.Found)),
		slog.Duration("took", time.Since(start)))

	if j.repair && rep.Applied > 0 && j.notify != nil {
		for _, ev := range repairedEvents(rep.Found) {
			j.notify(ev)
		}
	}
	return rep, nil
}

type entityKey struct {
	kind models.Kind
	id   string
}

// repairedEvents groups findings by entity in the order they were found.
func repairedEvents(found []linker.Inconsistency) []linker.Event {
	var order []entityKey
	cats := make(map[entityKey]mapset.Set[linker.Category])
	for _, inc := range found {
		k := entityKey{inc.EntityType, inc.EntityID}
		set, ok := cats[k]
		if !ok {
			set = mapset.NewSet[linker.Category]()
			cats[k] = set
			order = append(order, k)
		}
		set.Add(inc.Category)
	}

	events := make([]linker.Event, 0, len(order))
	for _, k := range order {
		c := cats[k].ToSlice()
		slices.Sort(c)
		events = append(events, linker.Event{
			Type:       linker.EventLinksRepaired,
			EntityType: k.kind,
			EntityID:   k.id,
			Categories: c,
		})
	}
	return events
}

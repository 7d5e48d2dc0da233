package scheduler

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/backmassage/hlsladder/internal/planner"
)

// Kind distinguishes video tier jobs from audio track jobs.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusPending         Status = "pending"
	StatusRunning         Status = "running"
	StatusValidated       Status = "validated"
	StatusFallbackPending Status = "fallback-pending"
	StatusSucceeded       Status = "succeeded"
	StatusFailed          Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s == StatusSucceeded || s == StatusFailed }

// Strategy records how a job produced (or tried to produce) its output.
type Strategy string

const (
	StrategyCopy     Strategy = "copy"
	StrategyFallback Strategy = "fallback"
	StrategyEncode   Strategy = "encode"
)

var transitions = map[Status][]Status{
	StatusPending:         {StatusRunning, StatusFailed},
	StatusRunning:         {StatusValidated, StatusFallbackPending, StatusSucceeded, StatusFailed},
	StatusValidated:       {StatusSucceeded},
	StatusFallbackPending: {StatusRunning, StatusFailed},
}

// Job is one unit of scheduled work. A Job is owned by exactly one worker
// while it runs; Profile and Rendition are private copies.
type Job struct {
	ID       uuid.UUID
	Kind     Kind
	Tier     planner.Tier
	Track    int // audio: position in the descriptor's audio list; video: -1
	Name     string
	Profile  planner.EncodeProfile
	Scale    planner.Scale
	Status   Status
	Strategy Strategy
	Attempt  int
	Reason   string
	Elapsed  time.Duration

	// Bandwidth is the video bits/sec the manifest should advertise for
	// this job's output. Set by the executor on success.
	Bandwidth int64
}

// Transition moves the job to next, enforcing the lifecycle. Re-entering
// running from fallback-pending is allowed once, for video jobs only, and
// switches the job to the fallback strategy.
func (j *Job) Transition(next Status) error {
	allowed := false
	for _, s := range transitions[j.Status] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("job %s: invalid transition %s -> %s", j.Name, j.Status, next)
	}

	if j.Status == StatusFallbackPending && next == StatusRunning {
		if j.Kind != KindVideo || j.Attempt >= 2 {
			return fmt.Errorf("job %s: fallback retry not permitted", j.Name)
		}
		j.Strategy = StrategyFallback
	}
	if next == StatusRunning {
		j.Attempt++
	}
	j.Status = next
	return nil
}

// Fail moves the job to failed with reason. It is a no-op on a terminal job.
func (j *Job) Fail(reason string) {
	if j.Status.Terminal() {
		return
	}
	j.Reason = reason
	j.Status = StatusFailed
}

// Succeeded reports whether the job finished successfully.
func (j *Job) Succeeded() bool { return j.Status == StatusSucceeded }

// AudioRef identifies one source audio track for job construction.
type AudioRef struct {
	Position int // 0-based order among audio tracks
	Language string
}

// BuildJobs creates one video job per tier and one audio job per
// (track, tier) pair. Tiers are emitted in priority order.
func BuildJobs(ladder *planner.Ladder, audio []AudioRef) []*Job {
	var jobs []*Job
	for _, t := range ladder.Tiers {
		r := ladder.Renditions[t]
		strategy := StrategyEncode
		if r.Copy {
			strategy = StrategyCopy
		}
		jobs = append(jobs, &Job{
			ID:       uuid.New(),
			Kind:     KindVideo,
			Tier:     t,
			Track:    -1,
			Name:     planner.VideoName(t),
			Profile:  r.Profile,
			Scale:    r.Scale,
			Status:   StatusPending,
			Strategy: strategy,
		})
	}
	for _, a := range audio {
		for _, t := range ladder.Tiers {
			jobs = append(jobs, &Job{
				ID:       uuid.New(),
				Kind:     KindAudio,
				Tier:     t,
				Track:    a.Position,
				Name:     planner.AudioName(a.Position, a.Language, t),
				Profile:  ladder.Renditions[t].Profile,
				Status:   StatusPending,
				Strategy: StrategyEncode,
			})
		}
	}
	return jobs
}

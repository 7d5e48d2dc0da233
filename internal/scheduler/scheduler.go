// Package scheduler runs a package's video and audio jobs. Video tiers run
// sequentially or on a bounded worker pool; audio jobs run one at a time
// once every video job has finished. A failed job never cancels its
// siblings; the run's outcome is the conjunction of all job results.
package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/backmassage/hlsladder/internal/logging"
	"github.com/backmassage/hlsladder/internal/sysinfo"
)

// Executor performs the work of a single job. Implementations drive the
// job through its lifecycle and return whether it succeeded. The job is
// owned by the calling worker for the duration of the call.
type Executor interface {
	RunVideo(ctx context.Context, job *Job) bool
	RunAudio(ctx context.Context, job *Job) bool
}

// Scheduler coordinates the jobs of one package.
type Scheduler struct {
	Exec     Executor
	Parallel bool
	Workers  int // 0 = min(video jobs, logical CPUs)
	Log      *logging.Logger
}

// Report is the outcome of one Run.
type Report struct {
	Jobs    []*Job
	Success bool
	Elapsed time.Duration
}

// Video returns the video jobs in the order they were scheduled.
func (r Report) Video() []*Job { return r.filter(KindVideo) }

// Audio returns the audio jobs in the order they were scheduled.
func (r Report) Audio() []*Job { return r.filter(KindAudio) }

func (r Report) filter(k Kind) []*Job {
	var out []*Job
	for _, j := range r.Jobs {
		if j.Kind == k {
			out = append(out, j)
		}
	}
	return out
}

// Failed returns the jobs that did not succeed.
func (r Report) Failed() []*Job {
	var out []*Job
	for _, j := range r.Jobs {
		if !j.Succeeded() {
			out = append(out, j)
		}
	}
	return out
}

// Run executes jobs and waits for all of them. Jobs not yet started when
// ctx is cancelled are marked failed without running.
func (s *Scheduler) Run(ctx context.Context, jobs []*Job) Report {
	start := time.Now()
	log := s.Log
	if log == nil {
		log = logging.Discard()
	}

	var video, audio []*Job
	for _, j := range jobs {
		if j.Kind == KindVideo {
			video = append(video, j)
		} else {
			audio = append(audio, j)
		}
	}

	if s.Parallel && len(video) > 1 {
		workers := sysinfo.Workers(s.Workers, len(video))
		log.Info("Encoding %d video tiers with %d workers", len(video), workers)
		var g errgroup.Group
		g.SetLimit(workers)
		for _, j := range video {
			g.Go(func() error {
				s.runOne(ctx, log, j)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, j := range video {
			s.runOne(ctx, log, j)
		}
	}

	for _, j := range audio {
		s.runOne(ctx, log, j)
	}

	success := len(jobs) > 0
	for _, j := range jobs {
		if !j.Succeeded() {
			success = false
		}
	}
	return Report{Jobs: jobs, Success: success, Elapsed: time.Since(start)}
}

func (s *Scheduler) runOne(ctx context.Context, log *logging.Logger, j *Job) {
	jl := log.With("job", j.Name)
	if err := ctx.Err(); err != nil {
		j.Fail("cancelled before start")
		jl.Warn("Skipped %s: interrupted", j.Name)
		return
	}
	if err := j.Transition(StatusRunning); err != nil {
		j.Fail(err.Error())
		jl.Error("%v", err)
		return
	}

	start := time.Now()
	var ok bool
	switch j.Kind {
	case KindVideo:
		ok = s.Exec.RunVideo(ctx, j)
	default:
		ok = s.Exec.RunAudio(ctx, j)
	}
	j.Elapsed = time.Since(start)

	if !j.Status.Terminal() {
		if ok {
			if j.Status == StatusRunning || j.Status == StatusValidated {
				j.Status = StatusSucceeded
			} else {
				j.Fail("executor reported success from state " + string(j.Status))
			}
		} else {
			j.Fail(failReason(j))
		}
	}

	if j.Succeeded() {
		jl.Debug("%s finished (%s, attempt %d)", j.Name, j.Strategy, j.Attempt)
	} else {
		jl.Error("%s failed: %s", j.Name, j.Reason)
	}
}

func failReason(j *Job) string {
	if j.Reason != "" {
		return j.Reason
	}
	return string(j.Strategy) + " failed"
}

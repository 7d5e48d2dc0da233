package pipeline

// RunStats tracks aggregate counters and byte totals across a run.
type RunStats struct {
	Total            int
	Current          int
	Packaged         int
	Skipped          int
	Failed           int
	Interrupted      bool
	TotalInputBytes  int64
	TotalOutputBytes int64
}

// OK reports whether nothing failed and the run was not interrupted.
// Skipped packages do not count as failures.
func (s *RunStats) OK() bool { return s.Failed == 0 && !s.Interrupted }

// Ratio returns output size as a percentage of input size.
func (s *RunStats) Ratio() int64 {
	if s.TotalInputBytes <= 0 {
		return 0
	}
	return s.TotalOutputBytes * 100 / s.TotalInputBytes
}

package copier

// Result is the terminal record of one (model, target) pairing. Exactly
// one Result exists per pairing; it is never mutated after recording.
type Result struct {
	ModelID     string
	Target      string
	DestModelID string // set on success
	Reason      string // set on failure
}

// OK reports whether the pairing succeeded.
func (r Result) OK() bool { return r.Reason == "" }

// TargetOutcome is the per-target accounting of a run.
type TargetOutcome struct {
	Target    string
	Successes []Result
	Failures  []Result
}

// RunOutcome is the full accounting of one orchestration run, one
// TargetOutcome per selected target in selection order.
type RunOutcome struct {
	Source  string
	Suffix  string
	Targets []TargetOutcome
}

// Counts returns the aggregate success and failure totals.
func (r *RunOutcome) Counts() (succeeded, failed int) {
	for _, t := range r.Targets {
		succeeded += len(t.Successes)
		failed += len(t.Failures)
	}
	return succeeded, failed
}

// DestID computes the destination model id: the source id with the
// suffix appended verbatim. An empty suffix keeps the id unchanged.
func DestID(modelID, suffix string) string {
	return modelID + suffix
}

package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/everstacklabs/modelmigrate/internal/copier"
)

// Run is the persisted record of one copy run.
type Run struct {
	ID         string    `yaml:"id"`
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at"`
	Source     string    `yaml:"source"`
	Suffix     string    `yaml:"suffix,omitempty"`
	Succeeded  int       `yaml:"succeeded"`
	Failed     int       `yaml:"failed"`
	Targets    []Target  `yaml:"targets"`
}

// Target lists the succeeded and failed pairings for one target.
type Target struct {
	Name      string  `yaml:"name"`
	Successes []Entry `yaml:"successes,omitempty"`
	Failures  []Entry `yaml:"failures,omitempty"`
}

// Entry is one pairing's outcome.
type Entry struct {
	ModelID     string `yaml:"model_id"`
	DestModelID string `yaml:"dest_model_id,omitempty"`
	Reason      string `yaml:"reason,omitempty"`
}

// FromOutcome converts an orchestration outcome into a report, stamping
// a fresh run id.
func FromOutcome(out *copier.RunOutcome, started, finished time.Time) *Run {
	r := &Run{
		ID:         uuid.NewString(),
		StartedAt:  started,
		FinishedAt: finished,
		Source:     out.Source,
		Suffix:     out.Suffix,
	}
	r.Succeeded, r.Failed = out.Counts()

	for _, t := range out.Targets {
		rt := Target{Name: t.Target}
		for _, s := range t.Successes {
			rt.Successes = append(rt.Successes, Entry{ModelID: s.ModelID, DestModelID: s.DestModelID})
		}
		for _, f := range t.Failures {
			rt.Failures = append(rt.Failures, Entry{ModelID: f.ModelID, Reason: f.Reason})
		}
		r.Targets = append(r.Targets, rt)
	}
	return r
}

// Render produces the human-readable summary printed after a run. It
// always enumerates every pairing; a partial result is never silent.
func Render(r *Run) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Copy run %s (source: %s)\n", r.ID, r.Source)
	for _, t := range r.Targets {
		fmt.Fprintf(&b, "\nTarget %s: %d succeeded, %d failed\n", t.Name, len(t.Successes), len(t.Failures))
		for _, e := range t.Successes {
			fmt.Fprintf(&b, "  ok   %s -> %s\n", e.ModelID, e.DestModelID)
		}
		for _, e := range t.Failures {
			fmt.Fprintf(&b, "  FAIL %s: %s\n", e.ModelID, e.Reason)
		}
	}

	fmt.Fprintf(&b, "\nTotal: %d succeeded, %d failed (%s)\n",
		r.Succeeded, r.Failed, r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	return b.String()
}

// Write stores the run as a YAML artifact under dir and returns the
// file path.
func Write(dir string, r *Run) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report dir: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshaling report: %w", err)
	}

	path := filepath.Join(dir, "copy-"+r.ID+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}

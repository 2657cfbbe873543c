package report

import (
	"os"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/everstacklabs/modelmigrate/internal/copier"
)

func sampleOutcome() *copier.RunOutcome {
	return &copier.RunOutcome{
		Source: "prod-west",
		Suffix: "-copy",
		Targets: []copier.TargetOutcome{
			{
				Target: "prod-east",
				Successes: []copier.Result{
					{ModelID: "invoice-v1", Target: "prod-east", DestModelID: "invoice-v1-copy"},
				},
				Failures: []copier.Result{
					{ModelID: "receipt-v2", Target: "prod-east", Reason: "quota exceeded"},
				},
			},
			{
				Target: "dr-site",
				Failures: []copier.Result{
					{ModelID: "invoice-v1", Target: "dr-site", Reason: "credential unavailable: denied"},
					{ModelID: "receipt-v2", Target: "dr-site", Reason: "credential unavailable: denied"},
				},
			},
		},
	}
}

func TestFromOutcome(t *testing.T) {
	started := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	r := FromOutcome(sampleOutcome(), started, started.Add(90*time.Second))

	if r.ID == "" {
		t.Error("run id missing")
	}
	if r.Succeeded != 1 || r.Failed != 3 {
		t.Errorf("counts = %d/%d, want 1/3", r.Succeeded, r.Failed)
	}
	if len(r.Targets) != 2 {
		t.Fatalf("targets = %d, want 2", len(r.Targets))
	}
	if r.Targets[0].Successes[0].DestModelID != "invoice-v1-copy" {
		t.Errorf("success entry = %+v", r.Targets[0].Successes[0])
	}
	if r.Targets[1].Failures[0].Reason == "" {
		t.Error("failure entry lost its reason")
	}
}

func TestRender_EnumeratesEveryPairing(t *testing.T) {
	started := time.Now()
	r := FromOutcome(sampleOutcome(), started, started.Add(time.Minute))

	out := Render(r)

	for _, want := range []string{
		"invoice-v1 -> invoice-v1-copy",
		"FAIL receipt-v2: quota exceeded",
		"Target prod-east: 1 succeeded, 1 failed",
		"Target dr-site: 0 succeeded, 2 failed",
		"Total: 1 succeeded, 3 failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered report missing %q:\n%s", want, out)
		}
	}
}

func TestWrite_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	started := time.Now().UTC().Truncate(time.Second)
	r := FromOutcome(sampleOutcome(), started, started.Add(time.Minute))

	path, err := Write(dir, r)
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}

	var loaded Run
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("parsing artifact: %v", err)
	}
	if loaded.ID != r.ID {
		t.Errorf("ID = %q, want %q", loaded.ID, r.ID)
	}
	if loaded.Succeeded != 1 || loaded.Failed != 3 {
		t.Errorf("counts = %d/%d, want 1/3", loaded.Succeeded, loaded.Failed)
	}
	if len(loaded.Targets) != 2 {
		t.Errorf("targets = %d, want 2", len(loaded.Targets))
	}
}

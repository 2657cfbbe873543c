package copier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/everstacklabs/modelmigrate/internal/catalog"
	"github.com/everstacklabs/modelmigrate/internal/config"
	"github.com/everstacklabs/modelmigrate/internal/docintel"
)

// AdminAPI is the slice of the admin client the orchestrator needs.
type AdminAPI interface {
	AuthorizeCopy(ctx context.Context, route docintel.Route, destModelID, description string) (docintel.Authorization, error)
	CopyTo(ctx context.Context, route docintel.Route, sourceModelID string, auth docintel.Authorization) (*docintel.OperationHandle, error)
	Operation(ctx context.Context, location string) (*docintel.OperationStatus, error)
}

// SecretSource resolves a resource's API key.
type SecretSource interface {
	GetSecret(ctx context.Context, vaultURL, name string) (string, error)
}

// Selection is the operator's chosen subset: which models, which
// targets, and the suffix appended to destination ids.
type Selection struct {
	Models  []catalog.Model
	Suffix  string
	Targets []config.Resource
}

// Orchestrator copies every selected model to every selected target,
// one pairing at a time. Pairing failures are recorded, never raised;
// only a missing source credential aborts a run.
type Orchestrator struct {
	Secrets  SecretSource
	NewAdmin func(endpoint, key string) AdminAPI
	Poller   *Poller
}

// Run walks the cross-product of selection.Models and selection.Targets
// in order. Credentials are resolved once per resource; a target whose
// credential cannot be resolved gets a failure recorded for every
// selected model and the run moves on to the next target.
func (o *Orchestrator) Run(ctx context.Context, sel Selection, source config.Resource) (*RunOutcome, error) {
	srcKey, err := o.Secrets.GetSecret(ctx, source.VaultURL, source.SecretName)
	if err != nil {
		return nil, fmt.Errorf("resolving source credential: %w", err)
	}
	src := o.NewAdmin(source.Endpoint, srcKey)

	run := &RunOutcome{Source: source.Name, Suffix: sel.Suffix}

	for _, target := range sel.Targets {
		outcome := TargetOutcome{Target: target.Name}

		targetKey, err := o.Secrets.GetSecret(ctx, target.VaultURL, target.SecretName)
		if err != nil {
			slog.Error("target credential unavailable, skipping target", "target", target.Name, "error", err)
			for _, m := range sel.Models {
				outcome.Failures = append(outcome.Failures, Result{
					ModelID: m.ID,
					Target:  target.Name,
					Reason:  "credential unavailable: " + err.Error(),
				})
			}
			run.Targets = append(run.Targets, outcome)
			continue
		}
		tgt := o.NewAdmin(target.Endpoint, targetKey)

		for _, m := range sel.Models {
			res := o.copyOne(ctx, src, tgt, source, target, m, sel.Suffix)
			if res.OK() {
				outcome.Successes = append(outcome.Successes, res)
			} else {
				outcome.Failures = append(outcome.Failures, res)
			}
		}
		run.Targets = append(run.Targets, outcome)
	}

	return run, nil
}

// copyOne runs the authorize → initiate → poll handshake for a single
// pairing. The first failing step short-circuits the rest; a granted
// authorization left behind by a failed initiation expires server-side,
// so there is nothing to roll back.
func (o *Orchestrator) copyOne(ctx context.Context, src, tgt AdminAPI, source, target config.Resource, m catalog.Model, suffix string) Result {
	res := Result{ModelID: m.ID, Target: target.Name}

	if err := ctx.Err(); err != nil {
		res.Reason = "canceled: " + err.Error()
		return res
	}

	destID := DestID(m.ID, suffix)
	route := docintel.RouteFor(m.APIVersion)
	slog.Info("copy starting",
		"model", m.ID,
		"target", target.Name,
		"dest", destID,
		"dialect", route.PathPrefix)

	description := fmt.Sprintf("Copied from %s on %s", m.ID, source.Name)

	auth, err := tgt.AuthorizeCopy(ctx, route, destID, description)
	if err != nil {
		res.Reason = err.Error()
		return res
	}

	handle, err := src.CopyTo(ctx, route, m.ID, auth)
	if err != nil {
		res.Reason = err.Error()
		return res
	}

	// Polling uses the source client: the handle was issued by the
	// source resource and only its key can read it.
	outcome := o.Poller.Wait(ctx, src, handle)
	if !outcome.OK {
		res.Reason = outcome.Reason
		slog.Error("copy failed", "model", m.ID, "target", target.Name, "reason", res.Reason)
		return res
	}

	res.DestModelID = outcome.DestModelID
	if res.DestModelID == "" {
		res.DestModelID = destID
	}
	slog.Info("copy complete", "model", m.ID, "target", target.Name, "dest", res.DestModelID)
	return res
}

// Package identity propagates the host's detected network address to every
// place that caches it: the primary server row, secondary columns and
// generated text artifacts.
package identity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/alexisbeaulieu97/dialprov/internal/engine"
	"github.com/alexisbeaulieu97/dialprov/internal/logger"
	"github.com/alexisbeaulieu97/dialprov/internal/model"
	"github.com/alexisbeaulieu97/dialprov/internal/ports"
	"github.com/alexisbeaulieu97/dialprov/internal/probes"
	dperrors "github.com/alexisbeaulieu97/dialprov/pkg/errors"
)

// Fact keys produced by the identity stages.
const (
	StoredKey  = "identity:stored"
	DriftedKey = "identity:drifted"
)

// Defaults for the post-restart wait.
const (
	DefaultWait = 30 * time.Second
	DefaultPoll = 500 * time.Millisecond
)

// Options wires a Reconciler.
type Options struct {
	Store    ports.Store
	Host     ports.Host
	Services ports.ServiceManager
	Logger   *logger.Logger

	Primary ColumnTarget
	Columns []ColumnTarget
	Files   []FileTarget

	// Service is restarted after propagation if it was active.
	Service string
	Wait    time.Duration
	Poll    time.Duration
}

// Reconciler converges every identity target to the detected address.
type Reconciler struct {
	opts Options
	log  *logger.Logger
}

// NewReconciler validates targets and fills defaults.
func NewReconciler(opts Options) (*Reconciler, error) {
	if opts.Store == nil || opts.Host == nil || opts.Services == nil {
		return nil, errors.New("identity reconciler needs a store, a host and a service manager")
	}
	if err := opts.Primary.Validate(); err != nil {
		return nil, err
	}
	for _, t := range opts.Columns {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	for _, t := range opts.Files {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	if opts.Wait <= 0 {
		opts.Wait = DefaultWait
	}
	if opts.Poll <= 0 {
		opts.Poll = DefaultPoll
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Reconciler{opts: opts, log: log.With("component", "identity")}, nil
}

// Stored reads the primary value. found is false when the row (or the whole
// database) does not exist yet.
func (r *Reconciler) Stored(ctx context.Context) (string, bool, error) {
	q, args := r.opts.Primary.selectQuery()
	return r.opts.Store.Scalar(ctx, q, args...)
}

// Drifted lists targets not yet holding detected. When the primary already
// matches, the identity is considered converged and nothing else is read.
func (r *Reconciler) Drifted(ctx context.Context, detected string) ([]string, error) {
	stored, found, err := r.Stored(ctx)
	if err != nil {
		return nil, err
	}
	if !found || stored == detected {
		return nil, nil
	}

	var drifted []string
	for _, t := range r.opts.Columns {
		n, err := r.staleRows(ctx, t, stored)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			drifted = append(drifted, t.Name())
		}
	}
	for _, t := range r.opts.Files {
		content, err := r.readFile(t.Path)
		if err != nil {
			return nil, err
		}
		if content != nil && t.Stale(content, detected) > 0 {
			drifted = append(drifted, t.Name())
		}
	}
	return append(drifted, r.opts.Primary.Name()), nil
}

func (r *Reconciler) staleRows(ctx context.Context, t ColumnTarget, old string) (int64, error) {
	q, args := t.countQuery(old)
	value, found, err := r.opts.Store.Scalar(ctx, q, args...)
	if err != nil || !found {
		return 0, err
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", t.Name(), err)
	}
	return n, nil
}

func (r *Reconciler) readFile(path string) ([]byte, error) {
	content, err := r.opts.Host.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return content, err
}

// Result summarises one propagation.
type Result struct {
	Old       string
	New       string
	Updated   []string
	Rows      int64
	Restarted bool
}

// Propagate writes detected to every drifting target. Secondary targets are
// written first and the primary last, so an interrupted run still reads the
// old primary value on re-invocation and repeats the whole propagation.
func (r *Reconciler) Propagate(ctx context.Context, detected string) (Result, error) {
	stored, found, err := r.Stored(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Old: stored, New: detected}
	if !found {
		return res, dperrors.NewPreconditionError("identity", r.opts.Primary.Name()+"=<absent>", "database not provisioned")
	}
	if stored == detected {
		r.log.WithFields(map[string]any{"address": detected}).Info("identity already up to date")
		return res, nil
	}

	log := r.log.WithFields(map[string]any{"old": stored, "new": detected})
	for _, t := range r.opts.Columns {
		n, err := r.updateColumn(ctx, t, stored, detected)
		if err != nil {
			return res, err
		}
		if n > 0 {
			res.Rows += n
			res.Updated = append(res.Updated, t.Name())
			log.WithFields(map[string]any{"target": t.Name(), "rows": n}).Info("identity column updated")
		}
	}

	for _, t := range r.opts.Files {
		changed, err := r.rewriteFile(t, detected)
		if err != nil {
			return res, err
		}
		if changed > 0 {
			res.Updated = append(res.Updated, t.Name())
			log.WithFields(map[string]any{"target": t.Name(), "replacements": changed}).Info("identity file rewritten")
		}
	}

	n, err := r.updateColumn(ctx, r.opts.Primary, stored, detected)
	if err != nil {
		return res, err
	}
	res.Rows += n
	res.Updated = append(res.Updated, r.opts.Primary.Name())
	log.WithFields(map[string]any{"target": r.opts.Primary.Name(), "rows": n}).Info("primary identity updated")

	if r.opts.Service == "" {
		return res, nil
	}
	active, err := r.opts.Services.IsActive(ctx, r.opts.Service)
	if err != nil {
		return res, err
	}
	if !active {
		log.WithFields(map[string]any{"service": r.opts.Service}).Info("service inactive, restart skipped")
		return res, nil
	}
	if err := r.restart(ctx); err != nil {
		return res, err
	}
	res.Restarted = true
	return res, nil
}

func (r *Reconciler) updateColumn(ctx context.Context, t ColumnTarget, old, next string) (int64, error) {
	stmt, args := t.updateStatement(old, next)
	n, err := r.opts.Store.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", t.Name(), err)
	}
	return n, nil
}

func (r *Reconciler) rewriteFile(t FileTarget, next string) (int, error) {
	content, err := r.readFile(t.Path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", t.Path, err)
	}
	if content == nil {
		r.log.WithFields(map[string]any{"target": t.Path}).Debug("identity file absent, skipped")
		return 0, nil
	}
	rewritten, changed := t.Rewrite(content, next)
	if changed == 0 {
		return 0, nil
	}
	if err := r.opts.Host.WriteFile(t.Path, rewritten, 0o644); err != nil {
		return 0, err
	}
	return changed, nil
}

// restart bounces the service and polls until it is active again or the
// wait budget runs out.
func (r *Reconciler) restart(ctx context.Context) error {
	unit := r.opts.Service
	r.log.WithFields(map[string]any{"service": unit}).Info("restarting service")
	if err := r.opts.Services.Restart(ctx, unit); err != nil {
		return fmt.Errorf("restart %s: %w", unit, err)
	}

	deadline := time.Now().Add(r.opts.Wait)
	ticker := time.NewTicker(r.opts.Poll)
	defer ticker.Stop()
	for {
		active, err := r.opts.Services.IsActive(ctx, unit)
		if err == nil && active {
			r.log.WithFields(map[string]any{"service": unit}).Info("service active after restart")
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("service %s not active within %s after restart: %w", unit, r.opts.Wait, dperrors.NewTimeoutError("restart "+unit, r.opts.Wait))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SeedProbe detects the address once per run.
func SeedProbe(router ports.Router, destination string) engine.Probe {
	return probes.NetIdentity(router, destination)
}

// Stages returns the identity stages in order: detected address present,
// primary row present, every target converged.
func (r *Reconciler) Stages() []engine.Stage {
	detected := engine.NewProbe("identity:detected", func(_ context.Context, env model.FactSet) (model.Fact, error) {
		f, _ := env.Get(probes.IdentityKey)
		return model.String("identity:detected", f.Str, f.Present), nil
	})

	stored := engine.NewProbe(StoredKey, func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		value, found, err := r.Stored(ctx)
		if err != nil {
			return model.Fact{}, err
		}
		return model.String(StoredKey, value, found), nil
	}).WithTimeout(probes.StoreTimeout)

	drifted := engine.NewProbe(DriftedKey, func(ctx context.Context, env model.FactSet) (model.Fact, error) {
		names, err := r.Drifted(ctx, env.Str(probes.IdentityKey))
		if err != nil {
			return model.Fact{}, err
		}
		return model.Set(DriftedKey, names), nil
	}).WithTimeout(probes.StoreTimeout)

	return []engine.Stage{
		{
			Name:        "network-identity",
			Description: "detect the outbound-routable address",
			Probes:      []engine.Probe{detected},
			Guard: func(facts model.FactSet) (bool, string) {
				if !facts.Present("identity:detected") {
					return true, "no usable network identity"
				}
				return false, ""
			},
		},
		{
			Name:        "identity-primary",
			Description: "read the stored server address",
			Probes:      []engine.Probe{stored},
			Guard: func(facts model.FactSet) (bool, string) {
				if !facts.Present(StoredKey) {
					return true, r.opts.Primary.Name() + " has no row; database not provisioned"
				}
				return false, ""
			},
		},
		{
			Name:        "identity-propagate",
			Description: "write the detected address to every target",
			Probes:      []engine.Probe{drifted},
			Guard:       engine.RequireEmpty(DriftedKey),
			Action: &engine.Action{Name: "propagate-identity", Fn: func(ctx context.Context, env, _ model.FactSet) error {
				_, err := r.Propagate(ctx, env.Str(probes.IdentityKey))
				return err
			}},
		},
	}
}

// Pipeline is the update-identity pipeline.
func (r *Reconciler) Pipeline(name string, router ports.Router, destination string) engine.Pipeline {
	return engine.Pipeline{
		Name:   name,
		Seed:   []engine.Probe{SeedProbe(router, destination)},
		Stages: r.Stages(),
	}
}

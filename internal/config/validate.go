package config

import (
	"fmt"

	dperrors "github.com/alexisbeaulieu97/dialprov/pkg/errors"
)

// Validate performs schema and cross-field validation on the profile.
func Validate(p *Profile) error {
	if p == nil {
		return dperrors.NewValidationError("profile", "profile is nil", nil)
	}

	if err := validatorInstance().Struct(p); err != nil {
		return convertValidationError(err)
	}

	jobIDs := make(map[string]struct{}, len(p.Cron.Jobs))
	for i, job := range p.Cron.Jobs {
		if _, dup := jobIDs[job.ID]; dup {
			return dperrors.NewValidationError(fmt.Sprintf("cron.jobs[%d].id", i), fmt.Sprintf("duplicate cron job id %q", job.ID), nil)
		}
		jobIDs[job.ID] = struct{}{}
	}

	sockets := make(map[string]struct{}, len(p.Ports))
	for i, port := range p.Ports {
		key := fmt.Sprintf("%d/%s", port.Port, port.Proto)
		if _, dup := sockets[key]; dup {
			return dperrors.NewValidationError(fmt.Sprintf("ports[%d]", i), fmt.Sprintf("port %s declared twice", key), nil)
		}
		sockets[key] = struct{}{}
	}

	primary := p.IdentityPrimary()
	if err := primary.Validate(); err != nil {
		return dperrors.NewValidationError("identity.primary", err.Error(), err)
	}
	targets := map[string]struct{}{primary.Name(): {}}
	for i, col := range p.IdentityColumns() {
		if _, dup := targets[col.Name()]; dup {
			return dperrors.NewValidationError(fmt.Sprintf("identity.columns[%d]", i), fmt.Sprintf("target %s declared twice", col.Name()), nil)
		}
		targets[col.Name()] = struct{}{}
	}

	return nil
}

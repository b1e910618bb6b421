package roles

import (
	"context"

	"github.com/rs/zerolog/log"

	"gatehouse/internal/platform/models"
)

// Outcome tags the result of a role lookup. Denied and Unavailable are kept
// distinct on purpose: fallback to local metadata is only ever triggered by
// Unavailable, never by an explicit denial or by "authenticated but no role".
type Outcome int

const (
	OutcomeFound Outcome = iota
	OutcomeNone
	OutcomeDenied
	OutcomeUnavailable
)

const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

type Resolution struct {
	Outcome Outcome
	Slug    string
	Source  string
}

// Subject is what a role lookup acts on: the caller's bearer credential for
// the remote authority, and the stored identity for the local one.
type Subject struct {
	BearerToken string
	Identity    *models.Identity
}

type RoleSource interface {
	Resolve(ctx context.Context, subject Subject) Resolution
}

// Resolver tries the remote authority first and falls back to local
// metadata only when the remote service is unreachable. The fallback keeps
// the system operable through an outage; it can never grant more than the
// local metadata already encodes.
type Resolver struct {
	remote RoleSource
	local  RoleSource
}

func NewResolver(remote, local RoleSource) *Resolver {
	return &Resolver{remote: remote, local: local}
}

func (r *Resolver) Resolve(ctx context.Context, subject Subject) Resolution {
	if r.remote != nil {
		res := r.remote.Resolve(ctx, subject)
		if res.Outcome != OutcomeUnavailable {
			return res
		}
		log.Warn().Msg("role resolution falling back to local metadata")
	}
	return r.local.Resolve(ctx, subject)
}

package roles

import (
	"context"
	"errors"

	"gatehouse/internal/platform/identity"
)

// RemoteRoleSource resolves against the external identity service.
type RemoteRoleSource struct {
	client *identity.Client
}

func NewRemoteRoleSource(client *identity.Client) *RemoteRoleSource {
	return &RemoteRoleSource{client: client}
}

func (s *RemoteRoleSource) Resolve(ctx context.Context, subject Subject) Resolution {
	slug, err := s.client.ValidateUser(ctx, subject.BearerToken)
	switch {
	case err == nil && slug != "":
		return Resolution{Outcome: OutcomeFound, Slug: slug, Source: SourceRemote}
	case err == nil:
		// Authenticated, but no role in this application. Not an error.
		return Resolution{Outcome: OutcomeNone, Source: SourceRemote}
	case errors.Is(err, identity.ErrNotAuthorized):
		return Resolution{Outcome: OutcomeDenied, Source: SourceRemote}
	case errors.Is(err, identity.ErrUnavailable):
		return Resolution{Outcome: OutcomeUnavailable, Source: SourceRemote}
	default:
		return Resolution{Outcome: OutcomeUnavailable, Source: SourceRemote}
	}
}

// LocalMetadataRoleSource reads the role stored on the identity row.
type LocalMetadataRoleSource struct{}

func NewLocalMetadataRoleSource() *LocalMetadataRoleSource {
	return &LocalMetadataRoleSource{}
}

func (s *LocalMetadataRoleSource) Resolve(_ context.Context, subject Subject) Resolution {
	if subject.Identity == nil || subject.Identity.MetadataRole == "" {
		return Resolution{Outcome: OutcomeNone, Source: SourceLocal}
	}
	return Resolution{Outcome: OutcomeFound, Slug: subject.Identity.MetadataRole, Source: SourceLocal}
}

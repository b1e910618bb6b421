package roles

import "gatehouse/internal/platform/models"

// IsSuperadmin is a pure predicate computed fresh per request; role can
// change between requests, so the result is never cached. The central-slug
// match only counts when the slug actually came from the remote authority --
// a local fallback during an outage cannot mint superadmin unless the local
// metadata pair already says so.
func IsSuperadmin(identity *models.Identity, res Resolution, superadminSlug string) bool {
	if identity != nil &&
		identity.MetadataType == models.IdentityTypeSuperadmin &&
		identity.MetadataRole == models.IdentityTypeSuperadmin {
		return true
	}
	return res.Outcome == OutcomeFound && res.Source == SourceRemote && res.Slug == superadminSlug
}

package features

import (
	"gatehouse/internal/platform/models"
)

// SuperadminSlug is gated purely by the superadmin predicate. It is never
// satisfied by feature membership, regardless of the effective set.
const SuperadminSlug = "superadmin"

// Registry is the static feature catalog: slug/id mapping plus the two-level
// parent table. Holding a parent slug implies holding every child slug.
type Registry struct {
	slugToID map[string]string
	idToSlug map[string]string
	parent   map[string]string // child slug -> parent slug
	allIDs   []string
}

func NewRegistry(features []models.Feature) *Registry {
	r := &Registry{
		slugToID: make(map[string]string),
		idToSlug: make(map[string]string),
		parent:   make(map[string]string),
	}
	for _, f := range features {
		r.slugToID[f.Slug] = f.ID
		r.idToSlug[f.ID] = f.Slug
		r.allIDs = append(r.allIDs, f.ID)
	}
	for _, f := range features {
		if f.ParentID != "" {
			if parentSlug, ok := r.idToSlug[f.ParentID]; ok {
				r.parent[f.Slug] = parentSlug
			}
		}
	}
	return r
}

func (r *Registry) IDForSlug(slug string) (string, bool) {
	id, ok := r.slugToID[slug]
	return id, ok
}

func (r *Registry) SlugForID(id string) (string, bool) {
	slug, ok := r.idToSlug[id]
	return slug, ok
}

func (r *Registry) AllIDs() []string {
	return r.allIDs
}

// Set is an effective capability set: either everything (superadmin) or an
// explicit id set.
type Set struct {
	All bool
	ids map[string]bool
}

func NewSet(ids []string) Set {
	s := Set{ids: make(map[string]bool, len(ids))}
	for _, id := range ids {
		s.ids[id] = true
	}
	return s
}

func AllSet() Set {
	return Set{All: true}
}

func (s Set) Contains(id string) bool {
	if s.All {
		return true
	}
	return s.ids[id]
}

func (s Set) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}

// Effective computes the capability set for a tenant/role pair: the
// intersection of the tenant's enabled features and the role's entitled
// features, never their union. An empty tenant feature list reads as "all
// features enabled". Superadmin callers bypass this via AllSet at the call
// site, not here, so impersonation can force the emulated computation.
func Effective(registry *Registry, site *models.TenantSite, role *models.Role) Set {
	tenantIDs := site.FeatureIDs
	if len(tenantIDs) == 0 {
		tenantIDs = registry.AllIDs()
	}
	tenantSet := make(map[string]bool, len(tenantIDs))
	for _, id := range tenantIDs {
		tenantSet[id] = true
	}

	var effective []string
	if role != nil {
		for _, slug := range role.FeatureSlugs {
			id, ok := registry.IDForSlug(slug)
			if !ok {
				continue
			}
			if tenantSet[id] {
				effective = append(effective, id)
			}
		}
	}
	return NewSet(effective)
}

// CanAccess reports whether the effective set satisfies a required feature
// slug, directly or through the slug's registered parent.
func CanAccess(registry *Registry, effective Set, requiredSlug string) bool {
	if requiredSlug == SuperadminSlug {
		return false
	}
	if effective.All {
		return true
	}
	if id, ok := registry.IDForSlug(requiredSlug); ok && effective.Contains(id) {
		return true
	}
	if parentSlug, ok := registry.parent[requiredSlug]; ok {
		if parentID, ok := registry.IDForSlug(parentSlug); ok && effective.Contains(parentID) {
			return true
		}
	}
	return false
}

// ViewAs is the request-scoped impersonation override. When present, the
// gate evaluates under the emulated tenant and role even for a real
// superadmin; the real superadmin status only matters for exiting.
type ViewAs struct {
	TenantID string `json:"tenant_id"`
	RoleSlug string `json:"role_slug"`
}

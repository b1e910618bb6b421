package features

import "strings"

// routeFeature maps an admin path prefix to the feature slug required to
// enter it. Ordered most specific first; first match wins. Paths with no
// match (the dashboard landing page among them) are always allowed, so a
// denied caller always has a safe redirect target.
type routeFeature struct {
	Prefix string
	Slug   string
}

var routeFeatures = []routeFeature{
	{"/admin/membership-codes", "membership"},
	{"/admin/mags", "membership"},
	{"/admin/crm/contacts", "crm_contacts"},
	{"/admin/crm", "crm"},
	{"/admin/content/galleries", "content_galleries"},
	{"/admin/content/events", "content_events"},
	{"/admin/content", "content"},
	{"/admin/settings/integrations", "settings_integrations"},
	{"/admin/settings", "settings"},
	{"/admin/roles", SuperadminSlug},
	{"/admin/tenants", SuperadminSlug},
	{"/admin/tenant-sites", SuperadminSlug},
	{"/admin/identities", SuperadminSlug},
}

// RequiredFeature returns the feature slug guarding a path, if any.
func RequiredFeature(path string) (string, bool) {
	for _, rf := range routeFeatures {
		if strings.HasPrefix(path, rf.Prefix) {
			return rf.Slug, true
		}
	}
	return "", false
}

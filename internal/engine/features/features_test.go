package features

import (
	"testing"

	"gatehouse/internal/platform/models"
)

func testRegistry() *Registry {
	return NewRegistry([]models.Feature{
		{ID: "f_membership", Slug: "membership"},
		{ID: "f_crm", Slug: "crm"},
		{ID: "f_crm_contacts", Slug: "crm_contacts", ParentID: "f_crm"},
		{ID: "f_content", Slug: "content"},
		{ID: "f_content_galleries", Slug: "content_galleries", ParentID: "f_content"},
		{ID: "f_settings", Slug: "settings"},
	})
}

func TestEffective_Intersection(t *testing.T) {
	registry := testRegistry()

	site := &models.TenantSite{
		ID:         "tnt_1",
		FeatureIDs: []string{"f_membership", "f_crm", "f_content"},
	}
	role := &models.Role{
		Slug:         "editor",
		FeatureSlugs: []string{"crm", "content", "settings"},
	}

	effective := Effective(registry, site, role)

	// Intersection, never union: settings is entitled to the role but not
	// enabled for the tenant; membership is enabled but not entitled.
	if !effective.Contains("f_crm") || !effective.Contains("f_content") {
		t.Errorf("Expected crm and content in effective set, got %v", effective.IDs())
	}
	if effective.Contains("f_settings") {
		t.Error("settings should not be effective: tenant does not enable it")
	}
	if effective.Contains("f_membership") {
		t.Error("membership should not be effective: role does not hold it")
	}
}

func TestEffective_EmptyTenantListMeansAll(t *testing.T) {
	registry := testRegistry()

	site := &models.TenantSite{ID: "tnt_1"}
	role := &models.Role{Slug: "editor", FeatureSlugs: []string{"settings", "membership"}}

	effective := Effective(registry, site, role)

	if !effective.Contains("f_settings") || !effective.Contains("f_membership") {
		t.Errorf("Empty tenant feature list should enable everything, got %v", effective.IDs())
	}
}

func TestEffective_NilRole(t *testing.T) {
	registry := testRegistry()
	site := &models.TenantSite{ID: "tnt_1", FeatureIDs: []string{"f_crm"}}

	effective := Effective(registry, site, nil)

	if effective.Contains("f_crm") {
		t.Error("Caller with no role should have an empty effective set")
	}
}

func TestEffective_UnknownRoleSlugIgnored(t *testing.T) {
	registry := testRegistry()
	site := &models.TenantSite{ID: "tnt_1"}
	role := &models.Role{Slug: "editor", FeatureSlugs: []string{"nonexistent", "crm"}}

	effective := Effective(registry, site, role)

	if !effective.Contains("f_crm") {
		t.Error("Known slug should survive an unknown sibling")
	}
	if len(effective.IDs()) != 1 {
		t.Errorf("Expected 1 effective id, got %v", effective.IDs())
	}
}

func TestCanAccess_SuperadminSlugNeverSatisfied(t *testing.T) {
	registry := testRegistry()

	if CanAccess(registry, AllSet(), SuperadminSlug) {
		t.Error("superadmin must not be satisfiable even by the all-set")
	}
	if CanAccess(registry, NewSet([]string{"f_crm"}), SuperadminSlug) {
		t.Error("superadmin must not be satisfiable by feature membership")
	}
}

func TestCanAccess_ParentImpliesChild(t *testing.T) {
	registry := testRegistry()

	effective := NewSet([]string{"f_crm"})
	if !CanAccess(registry, effective, "crm_contacts") {
		t.Error("Holding the parent should grant the child")
	}

	// The other direction does not hold.
	childOnly := NewSet([]string{"f_crm_contacts"})
	if CanAccess(registry, childOnly, "crm") {
		t.Error("Holding a child should not grant the parent")
	}
}

func TestCanAccess_AllSet(t *testing.T) {
	registry := testRegistry()

	if !CanAccess(registry, AllSet(), "membership") {
		t.Error("All-set should grant any regular feature")
	}
	if CanAccess(registry, NewSet(nil), "membership") {
		t.Error("Empty set should grant nothing")
	}
}

func TestRequiredFeature(t *testing.T) {
	tests := []struct {
		path  string
		slug  string
		gated bool
	}{
		{"/admin/membership-codes/batches", "membership", true},
		{"/admin/mags", "membership", true},
		{"/admin/crm/contacts/123", "crm_contacts", true},
		{"/admin/crm", "crm", true},
		{"/admin/content/galleries/g1", "content_galleries", true},
		{"/admin/content/pages", "content", true},
		{"/admin/settings/integrations", "settings_integrations", true},
		{"/admin/settings", "settings", true},
		{"/admin/roles/editor/features", SuperadminSlug, true},
		{"/admin/tenant-sites/tnt_1/features", SuperadminSlug, true},
		{"/admin/identities/idn_1/role", SuperadminSlug, true},
		{"/admin/dashboard", "", false},
		{"/members/redeem-code", "", false},
	}

	for _, tt := range tests {
		slug, gated := RequiredFeature(tt.path)
		if gated != tt.gated || slug != tt.slug {
			t.Errorf("RequiredFeature(%q) = (%q, %v), want (%q, %v)", tt.path, slug, gated, tt.slug, tt.gated)
		}
	}
}

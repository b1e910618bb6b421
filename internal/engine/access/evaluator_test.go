package access

import (
	"testing"

	"gatehouse/internal/platform/models"
)

func member(held ...string) Caller {
	groups := make(map[string]bool, len(held))
	for _, g := range held {
		groups[g] = true
	}
	return Caller{
		Authenticated: true,
		ContactID:     "idn_1",
		Type:          models.IdentityTypeMember,
		HeldGroups:    groups,
	}
}

func TestEvaluate(t *testing.T) {
	anonymous := Caller{}
	admin := Caller{Authenticated: true, ContactID: "idn_a", Type: models.IdentityTypeAdmin, Admin: true}

	tests := []struct {
		name     string
		policy   models.ContentPolicy
		caller   Caller
		allowed  bool
		redirect bool
		message  string
	}{
		{
			name:    "public always allowed",
			policy:  models.ContentPolicy{AccessLevel: models.AccessPublic},
			caller:  anonymous,
			allowed: true,
		},
		{
			name:    "blank access level reads as public",
			policy:  models.ContentPolicy{},
			caller:  anonymous,
			allowed: true,
		},
		{
			name:    "members allows a signed-in member",
			policy:  models.ContentPolicy{AccessLevel: models.AccessMembers, VisibilityMode: models.VisibilityMessage},
			caller:  member(),
			allowed: true,
		},
		{
			name:    "members denies anonymous with message",
			policy:  models.ContentPolicy{AccessLevel: models.AccessMembers, VisibilityMode: models.VisibilityMessage},
			caller:  anonymous,
			allowed: false,
			message: DefaultRestrictedMessage,
		},
		{
			name: "group gate allows a holder",
			policy: models.ContentPolicy{
				AccessLevel:     models.AccessGroupGated,
				RequiredGroupID: "mag_vip",
				VisibilityMode:  models.VisibilityMessage,
			},
			caller:  member("mag_vip"),
			allowed: true,
		},
		{
			name: "group gate denies a non-holder with the configured message",
			policy: models.ContentPolicy{
				AccessLevel:       models.AccessGroupGated,
				RequiredGroupID:   "mag_vip",
				VisibilityMode:    models.VisibilityMessage,
				RestrictedMessage: "VIP members only.",
			},
			caller:  member("mag_other"),
			allowed: false,
			message: "VIP members only.",
		},
		{
			name: "group gate admits an admin without the group",
			policy: models.ContentPolicy{
				AccessLevel:     models.AccessGroupGated,
				RequiredGroupID: "mag_vip",
			},
			caller:  admin,
			allowed: true,
		},
		{
			name: "hidden redirects anonymous to sign-in",
			policy: models.ContentPolicy{
				AccessLevel:    models.AccessMembers,
				VisibilityMode: models.VisibilityHidden,
			},
			caller:   anonymous,
			allowed:  false,
			redirect: true,
		},
		{
			name: "hidden shows the message to an authenticated non-holder",
			policy: models.ContentPolicy{
				AccessLevel:     models.AccessGroupGated,
				RequiredGroupID: "mag_vip",
				VisibilityMode:  models.VisibilityHidden,
			},
			caller:  member(),
			allowed: false,
			message: DefaultRestrictedMessage,
		},
		{
			name:    "unknown access level denies",
			policy:  models.ContentPolicy{AccessLevel: "secret"},
			caller:  admin,
			allowed: false,
			message: DefaultRestrictedMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.policy, tt.caller)
			if d.Allowed != tt.allowed {
				t.Errorf("Allowed = %v, want %v", d.Allowed, tt.allowed)
			}
			if d.RedirectToSignIn != tt.redirect {
				t.Errorf("RedirectToSignIn = %v, want %v", d.RedirectToSignIn, tt.redirect)
			}
			if !tt.allowed && !tt.redirect && d.RestrictedMessage != tt.message {
				t.Errorf("RestrictedMessage = %q, want %q", d.RestrictedMessage, tt.message)
			}
		})
	}
}

func TestEvaluate_RevokedMembershipStopsGranting(t *testing.T) {
	policy := models.ContentPolicy{
		AccessLevel:     models.AccessGroupGated,
		RequiredGroupID: "mag_vip",
		VisibilityMode:  models.VisibilityMessage,
	}

	if !Evaluate(policy, member("mag_vip")).Allowed {
		t.Fatal("Holder should be allowed")
	}
	// The caller is rebuilt each request, so a revoked grant simply is not
	// in HeldGroups anymore.
	if Evaluate(policy, member()).Allowed {
		t.Error("Caller without the group must be denied")
	}
}

func TestFilterMedia(t *testing.T) {
	items := []models.MediaItem{
		{ID: "m1"},
		{ID: "m2", GroupTags: []string{"mag_vip"}},
		{ID: "m3", GroupTags: []string{"mag_vip", "mag_crew"}},
		{ID: "m4", GroupTags: []string{"mag_crew"}},
	}

	got := FilterMedia(items, member("mag_vip"))
	want := map[string]bool{"m1": true, "m2": true, "m3": true}
	if len(got) != len(want) {
		t.Fatalf("Expected %d items, got %d", len(want), len(got))
	}
	for _, item := range got {
		if !want[item.ID] {
			t.Errorf("Unexpected item %s in filtered list", item.ID)
		}
	}

	// Admins see everything.
	admin := Caller{Authenticated: true, Admin: true}
	if len(FilterMedia(items, admin)) != 4 {
		t.Error("Admin should see all items")
	}

	// No held groups: only untagged items survive.
	got = FilterMedia(items, member())
	if len(got) != 1 || got[0].ID != "m1" {
		t.Errorf("Expected only the untagged item, got %v", got)
	}
}

package access

import "gatehouse/internal/platform/models"

// DefaultRestrictedMessage is shown when a gated item has no configured
// message of its own.
const DefaultRestrictedMessage = "This content is available to members only."

// Caller is the request-scoped view of who is asking. Built per request;
// nothing here is cached across requests, so a revoked membership stops
// granting access on the very next evaluation.
type Caller struct {
	Authenticated bool
	ContactID     string
	Type          string
	Admin         bool
	HeldGroups    map[string]bool
}

func (c Caller) holds(groupID string) bool {
	return c.HeldGroups[groupID]
}

// Decision is the rendering outcome for one gated item. When Allowed is
// false the item is never reported as missing: an unentitled caller sees
// the title plus the restricted message. Collapsing Forbidden into NotFound
// would hide whether gating or absence was the cause, and the distinction
// is deliberately kept visible.
type Decision struct {
	Allowed           bool
	VisibilityMode    string
	RestrictedMessage string
	RedirectToSignIn  bool
}

// Evaluate applies an item's access policy to the caller.
func Evaluate(policy models.ContentPolicy, caller Caller) Decision {
	if allowed(policy, caller) {
		return Decision{Allowed: true}
	}

	d := Decision{
		Allowed:        false,
		VisibilityMode: policy.VisibilityMode,
	}

	switch policy.VisibilityMode {
	case models.VisibilityHidden:
		if !caller.Authenticated {
			// Anonymous callers get sent to sign-in with a return path.
			d.RedirectToSignIn = true
			return d
		}
		// Authenticated but unentitled: same restricted presentation as
		// message mode, never a silent 404.
		d.VisibilityMode = models.VisibilityMessage
		d.RestrictedMessage = restrictedMessage(policy)
	default:
		d.VisibilityMode = models.VisibilityMessage
		d.RestrictedMessage = restrictedMessage(policy)
	}
	return d
}

func allowed(policy models.ContentPolicy, caller Caller) bool {
	switch policy.AccessLevel {
	case models.AccessPublic, "":
		return true
	case models.AccessMembers:
		if !caller.Authenticated {
			return false
		}
		return caller.Type == models.IdentityTypeMember || caller.Admin
	case models.AccessGroupGated:
		if !caller.Authenticated {
			return false
		}
		if caller.Admin {
			return true
		}
		return caller.holds(policy.RequiredGroupID)
	default:
		return false
	}
}

func restrictedMessage(policy models.ContentPolicy) string {
	if policy.RestrictedMessage != "" {
		return policy.RestrictedMessage
	}
	return DefaultRestrictedMessage
}

// FilterMedia narrows a gallery's item list to what the caller may see.
// Untagged items inherit the gallery's (already passed) policy; tagged items
// require at least one tag among the caller's held groups. The gallery is
// not gated on its strictest item.
func FilterMedia(items []models.MediaItem, caller Caller) []models.MediaItem {
	visible := make([]models.MediaItem, 0, len(items))
	for _, item := range items {
		if len(item.GroupTags) == 0 || caller.Admin {
			visible = append(visible, item)
			continue
		}
		for _, tag := range item.GroupTags {
			if caller.holds(tag) {
				visible = append(visible, item)
				break
			}
		}
	}
	return visible
}

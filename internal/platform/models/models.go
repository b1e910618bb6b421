package models

// Identity is created at signup by the identity provider sync and mutated by
// admin actions. The metadata role/type pair is the local fallback used when
// the identity service is unreachable.
type Identity struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	MetadataType string `json:"metadata_type"`
	MetadataRole string `json:"metadata_role"`
	TenantID     string `json:"tenant_id,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

const (
	IdentityTypeMember     = "member"
	IdentityTypeAdmin      = "admin"
	IdentityTypeSuperadmin = "superadmin"
)

type Role struct {
	Slug         string   `json:"slug"`
	Label        string   `json:"label"`
	FeatureSlugs []string `json:"feature_slugs"`
}

// TenantSite is a row in the tenant registry. An empty FeatureIDs list means
// every feature is enabled, not none.
type TenantSite struct {
	ID                string   `json:"id"`
	SchemaName        string   `json:"schema_name"`
	Name              string   `json:"name"`
	FeatureIDs        []string `json:"feature_ids"`
	MembershipEnabled bool     `json:"membership_enabled"`
	SiteMode          string   `json:"site_mode"`
	Locked            bool     `json:"locked"`
	CreatedAt         int64    `json:"created_at"`
	UpdatedAt         int64    `json:"updated_at"`
}

const (
	SiteModeLive       = "live"
	SiteModeComingSoon = "coming_soon"
)

// Feature is one node of the two-level feature hierarchy. Holding the parent
// slug implies holding every child slug.
type Feature struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	ParentID string `json:"parent_id,omitempty"`
}

// AccessGroup is a named entitlement (MAG) a contact can hold.
type AccessGroup struct {
	ID        string `json:"id"`
	UID       string `json:"uid"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

const (
	AccessGroupActive   = "active"
	AccessGroupArchived = "archived"
)

// GroupMembership joins a contact to an access group. Grants are idempotent;
// revocation flips status rather than deleting the row.
type GroupMembership struct {
	GroupID   string `json:"group_id"`
	ContactID string `json:"contact_id"`
	Status    string `json:"status"`
	GrantedAt int64  `json:"granted_at"`
	RevokedAt *int64 `json:"revoked_at,omitempty"`
}

const (
	MembershipActive  = "active"
	MembershipRevoked = "revoked"
)

// CodeBatch is the unit of code issuance. For single_use batches the
// redeemable units are the owned MembershipCode rows; for multi_use the
// batch itself is redeemed and UseCount accumulates.
type CodeBatch struct {
	ID        string  `json:"id"`
	GroupID   string  `json:"group_id"`
	Name      string  `json:"name"`
	UseType   string  `json:"use_type"`
	CodeHash  string  `json:"-"`
	Code      string  `json:"code,omitempty"`
	MaxUses   *int    `json:"max_uses,omitempty"`
	UseCount  int     `json:"use_count"`
	Status    string  `json:"status"`
	ExpiresAt *int64  `json:"expires_at,omitempty"`
	CreatedBy string  `json:"created_by"`
	CreatedAt int64   `json:"created_at"`
	UpdatedAt int64   `json:"updated_at"`
}

const (
	UseTypeSingle = "single_use"
	UseTypeMulti  = "multi_use"

	BatchOpen    = "open"
	BatchExpired = "expired"
)

type MembershipCode struct {
	ID                 string `json:"id"`
	BatchID            string `json:"batch_id"`
	CodeHash           string `json:"-"`
	Code               string `json:"code,omitempty"`
	Status             string `json:"status"`
	RedeemedByMemberID string `json:"redeemed_by_member_id,omitempty"`
	RedeemedAt         *int64 `json:"redeemed_at,omitempty"`
	CreatedAt          int64  `json:"created_at"`
}

const (
	CodeOpen     = "open"
	CodeRedeemed = "redeemed"
)

type Redemption struct {
	ID         string `json:"id"`
	BatchID    string `json:"batch_id"`
	ContactID  string `json:"contact_id"`
	RedeemedAt int64  `json:"redeemed_at"`
}

// ContentPolicy is attached to any gated entity in a tenant database.
type ContentPolicy struct {
	AccessLevel       string `json:"access_level"`
	RequiredGroupID   string `json:"required_group_id,omitempty"`
	VisibilityMode    string `json:"visibility_mode"`
	RestrictedMessage string `json:"restricted_message,omitempty"`
}

const (
	AccessPublic     = "public"
	AccessMembers    = "members"
	AccessGroupGated = "mag"

	VisibilityHidden  = "hidden"
	VisibilityMessage = "message"
)

type Page struct {
	ID     string        `json:"id"`
	Slug   string        `json:"slug"`
	Title  string        `json:"title"`
	Body   string        `json:"body"`
	Policy ContentPolicy `json:"policy"`
}

type Gallery struct {
	ID     string        `json:"id"`
	Slug   string        `json:"slug"`
	Title  string        `json:"title"`
	Policy ContentPolicy `json:"policy"`
}

// MediaItem may carry its own access-group tags on top of the gallery policy.
type MediaItem struct {
	ID        string   `json:"id"`
	GalleryID string   `json:"gallery_id"`
	URL       string   `json:"url"`
	Caption   string   `json:"caption,omitempty"`
	GroupTags []string `json:"group_tags,omitempty"`
}

// RelayToken hands an elevated session through a redirect. Read-once.
type RelayToken struct {
	Token         string `json:"-"`
	CookiePayload string `json:"-"`
	ExpiresAt     int64  `json:"expires_at"`
	ConsumedAt    *int64 `json:"consumed_at,omitempty"`
	CreatedAt     int64  `json:"created_at"`
}

// MFAFactor is a TOTP enrollment. The secret never leaves the server after
// the initial provisioning response.
type MFAFactor struct {
	ID          string `json:"id"`
	IdentityID  string `json:"identity_id"`
	Secret      string `json:"-"`
	Label       string `json:"label"`
	ConfirmedAt *int64 `json:"confirmed_at,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

type RecoveryCode struct {
	ID         string `json:"id"`
	IdentityID string `json:"identity_id"`
	CodeHash   string `json:"-"`
	UsedAt     *int64 `json:"used_at,omitempty"`
}

package models

import "strings"

// InviteType distinguishes agency invitations from buyer-client invitations.
type InviteType string

const (
	InviteTypeAgent  InviteType = "agent"
	InviteTypeClient InviteType = "client"
)

func (t InviteType) Valid() bool {
	switch t {
	case InviteTypeAgent, InviteTypeClient:
		return true
	}
	return false
}

// ContactType returns the CRM contact flavour created for an invitee of this type.
func (t InviteType) ContactType() ContactType {
	switch t {
	case InviteTypeAgent:
		return ContactTypeAgency
	case InviteTypeClient:
		return ContactTypeClient
	}
	return ContactTypeLead
}

// PortalRole is the role carried by an invite and the account it activates.
type PortalRole string

const (
	RolePortalAgentAdmin  PortalRole = "portal_agent_admin"
	RolePortalAgentMember PortalRole = "portal_agent_member"
	RolePortalClient      PortalRole = "portal_client"
)

func (r PortalRole) Valid() bool {
	switch r {
	case RolePortalAgentAdmin, RolePortalAgentMember, RolePortalClient:
		return true
	}
	return false
}

// InviteType reports the only invite type compatible with the role.
func (r PortalRole) InviteType() InviteType {
	switch r {
	case RolePortalAgentAdmin, RolePortalAgentMember:
		return InviteTypeAgent
	case RolePortalClient:
		return InviteTypeClient
	}
	return ""
}

// Family groups roles for content audience and document visibility checks.
func (r PortalRole) Family() RoleFamily {
	switch r {
	case RolePortalAgentAdmin, RolePortalAgentMember:
		return RoleFamilyAgent
	case RolePortalClient:
		return RoleFamilyClient
	}
	return ""
}

// DefaultScope is the membership scope granted on activation.
func (r PortalRole) DefaultScope() AccessScope {
	switch r {
	case RolePortalAgentAdmin:
		return AccessScopeFull
	case RolePortalAgentMember:
		return AccessScopeReadWrite
	case RolePortalClient:
		return AccessScopeRead
	}
	return AccessScopeRead
}

// RoleFamily is either agent or client.
type RoleFamily string

const (
	RoleFamilyAgent  RoleFamily = "agent"
	RoleFamilyClient RoleFamily = "client"
)

type InviteStatus string

const (
	InviteStatusPending InviteStatus = "pending"
	InviteStatusUsed    InviteStatus = "used"
	InviteStatusExpired InviteStatus = "expired"
	InviteStatusRevoked InviteStatus = "revoked"
	InviteStatusBlocked InviteStatus = "blocked"
)

func (s InviteStatus) Valid() bool {
	switch s {
	case InviteStatusPending, InviteStatusUsed, InviteStatusExpired, InviteStatusRevoked, InviteStatusBlocked:
		return true
	}
	return false
}

type AccountStatus string

const (
	AccountStatusPending AccountStatus = "pending"
	AccountStatusActive  AccountStatus = "active"
	AccountStatusBlocked AccountStatus = "blocked"
	AccountStatusRevoked AccountStatus = "revoked"
)

func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusPending, AccountStatusActive, AccountStatusBlocked, AccountStatusRevoked:
		return true
	}
	return false
}

type AccessScope string

const (
	AccessScopeRead      AccessScope = "read"
	AccessScopeReadWrite AccessScope = "read_write"
	AccessScopeFull      AccessScope = "full"
)

func (s AccessScope) Valid() bool {
	switch s {
	case AccessScopeRead, AccessScopeReadWrite, AccessScopeFull:
		return true
	}
	return false
}

// AllowsWrite reports whether the scope permits lead and visit submissions.
func (s AccessScope) AllowsWrite() bool {
	switch s {
	case AccessScopeReadWrite, AccessScopeFull:
		return true
	case AccessScopeRead:
		return false
	}
	return false
}

type MembershipStatus string

const (
	MembershipStatusActive  MembershipStatus = "active"
	MembershipStatusPaused  MembershipStatus = "paused"
	MembershipStatusRevoked MembershipStatus = "revoked"
)

func (s MembershipStatus) Valid() bool {
	switch s {
	case MembershipStatusActive, MembershipStatusPaused, MembershipStatusRevoked:
		return true
	}
	return false
}

type RecordType string

const (
	RecordTypeProject RecordType = "project"
	RecordTypeUnit    RecordType = "unit"
)

type ContactType string

const (
	ContactTypeAgency ContactType = "agency"
	ContactTypeClient ContactType = "client"
	ContactTypeLead   ContactType = "lead"
)

type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusDiscarded LeadStatus = "discarded"
)

// LeadDiscardDuplicatePortal marks leads discarded because the contact was already submitted.
const LeadDiscardDuplicatePortal = "duplicate_portal_submission"

// LeadSourcePortal tags leads created through the portal.
const LeadSourcePortal = "portal"

type AttributionStatus string

const (
	AttributionPendingReview     AttributionStatus = "pending_review"
	AttributionAttributed        AttributionStatus = "attributed"
	AttributionRejectedDuplicate AttributionStatus = "rejected_duplicate"
	AttributionExistingClient    AttributionStatus = "existing_client"
	AttributionManualReview      AttributionStatus = "manual_review"
)

func (s AttributionStatus) Valid() bool {
	switch s {
	case AttributionPendingReview, AttributionAttributed, AttributionRejectedDuplicate,
		AttributionExistingClient, AttributionManualReview:
		return true
	}
	return false
}

// TimelineReceived is the neutral timeline marker for accepted submissions.
const TimelineReceived = "received"

type VisitMode string

const (
	VisitModeProposalSlots VisitMode = "proposal_slots"
	VisitModeDirectBooking VisitMode = "direct_booking"
)

func (m VisitMode) Valid() bool {
	switch m {
	case VisitModeProposalSlots, VisitModeDirectBooking:
		return true
	}
	return false
}

type VisitStatus string

const (
	VisitStatusRequested VisitStatus = "requested"
	VisitStatusConfirmed VisitStatus = "confirmed"
	VisitStatusDeclined  VisitStatus = "declined"
	VisitStatusDone      VisitStatus = "done"
	VisitStatusNoShow    VisitStatus = "no_show"
	VisitStatusCancelled VisitStatus = "cancelled"
)

func (s VisitStatus) Valid() bool {
	switch s {
	case VisitStatusRequested, VisitStatusConfirmed, VisitStatusDeclined,
		VisitStatusDone, VisitStatusNoShow, VisitStatusCancelled:
		return true
	}
	return false
}

// RequiresConfirmedSlot reports whether entering the status needs a confirmed slot.
func (s VisitStatus) RequiresConfirmedSlot() bool {
	switch s {
	case VisitStatusConfirmed, VisitStatusDone, VisitStatusNoShow:
		return true
	case VisitStatusRequested, VisitStatusDeclined, VisitStatusCancelled:
		return false
	}
	return false
}

// ContentAudience controls which role family sees a project content block.
type ContentAudience string

const (
	AudienceAgent  ContentAudience = "agent"
	AudienceClient ContentAudience = "client"
	AudienceBoth   ContentAudience = "both"
)

func (a ContentAudience) VisibleTo(family RoleFamily) bool {
	switch a {
	case AudienceBoth:
		return family == RoleFamilyAgent || family == RoleFamilyClient
	case AudienceAgent:
		return family == RoleFamilyAgent
	case AudienceClient:
		return family == RoleFamilyClient
	}
	return false
}

// DocumentVisibility controls exposure of project documents. crm_only never leaves the CRM.
type DocumentVisibility string

const (
	VisibilityCRMOnly DocumentVisibility = "crm_only"
	VisibilityAgent   DocumentVisibility = "agent"
	VisibilityClient  DocumentVisibility = "client"
	VisibilityBoth    DocumentVisibility = "both"
)

func (v DocumentVisibility) VisibleTo(family RoleFamily) bool {
	switch v {
	case VisibilityCRMOnly:
		return false
	case VisibilityBoth:
		return family == RoleFamilyAgent || family == RoleFamilyClient
	case VisibilityAgent:
		return family == RoleFamilyAgent
	case VisibilityClient:
		return family == RoleFamilyClient
	}
	return false
}

type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusApproved  CommissionStatus = "approved"
	CommissionStatusPaid      CommissionStatus = "paid"
	CommissionStatusCancelled CommissionStatus = "cancelled"
)

// AccessEventType names the facts appended to the portal access log.
type AccessEventType string

const (
	EventInviteIssued         AccessEventType = "invite_issued"
	EventInviteRevoked        AccessEventType = "invite_revoked"
	EventCodeFail             AccessEventType = "code_fail"
	EventBlocked              AccessEventType = "blocked"
	EventSignupOK             AccessEventType = "signup_ok"
	EventSignupFail           AccessEventType = "signup_fail"
	EventLoginOK              AccessEventType = "login_ok"
	EventLoginFail            AccessEventType = "login_fail"
	EventLeadSubmitted        AccessEventType = "lead_submitted"
	EventDuplicateDetected    AccessEventType = "duplicate_detected"
	EventVisitRequested       AccessEventType = "visit_requested"
	EventVisitConfirmed       AccessEventType = "visit_confirmed"
	EventMembershipGranted    AccessEventType = "membership_granted"
	EventMembershipUpdated    AccessEventType = "membership_updated"
	EventAccountStatusChanged AccessEventType = "account_status_changed"
	EventActivationAnomaly    AccessEventType = "activation_anomaly"
)

// NormalizeEmail lowercases and trims an email address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips formatting characters, keeping a leading plus sign.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

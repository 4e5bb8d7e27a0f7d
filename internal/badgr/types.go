package badgr

import (
	"encoding/json"
	"strings"
	"time"
)

// RoleStaff is the role assigned to users that are provisioned into the issuer.
const RoleStaff = "staff"

// envelope is the v2 response wrapper: {"status": {...}, "result": [...]}
type envelope[T any] struct {
	Status struct {
		Success     bool   `json:"success"`
		Description string `json:"description"`
	} `json:"status"`
	Result []T `json:"result"`
}

// Issuer is an issuing organization.
type Issuer struct {
	EntityType  string       `json:"entityType"`
	EntityID    string       `json:"entityId"`
	OpenBadgeID string       `json:"openBadgeId"`
	CreatedAt   time.Time    `json:"createdAt"`
	CreatedBy   string       `json:"createdBy"`
	Name        string       `json:"name"`
	Image       string       `json:"image,omitempty"`
	Email       string       `json:"email"`
	Description string       `json:"description"`
	URL         string       `json:"url"`
	Staff       []StaffEntry `json:"staff"`
}

// StaffEntry is a member of an issuer's staff list.
type StaffEntry struct {
	UserProfile *UserProfile `json:"userProfile,omitempty"`
	User        string       `json:"user"`
	Role        string       `json:"role"`
}

// UserProfile is the account profile of a credentialing user.
type UserProfile struct {
	EntityType  string      `json:"entityType"`
	EntityID    string      `json:"entityId"`
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	Emails      []UserEmail `json:"emails"`
	URL         []string    `json:"url"`
	Telephone   []string    `json:"telephone"`
	BadgrDomain string      `json:"badgrDomain"`
}

// HasEmail reports whether any of the profile's emails equals email, ignoring case.
func (p *UserProfile) HasEmail(email string) bool {
	if p == nil {
		return false
	}
	for _, e := range p.Emails {
		if strings.EqualFold(e.Email, email) {
			return true
		}
	}
	return false
}

// PrimaryEmail returns the email flagged as primary.
func (p *UserProfile) PrimaryEmail() (string, bool) {
	if p == nil {
		return "", false
	}
	for _, e := range p.Emails {
		if e.Primary && e.Email != "" {
			return e.Email, true
		}
	}
	return "", false
}

type UserEmail struct {
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	Primary  bool   `json:"primary"`
}

// BadgeClass is a badge definition within an issuer.
type BadgeClass struct {
	EntityType        string      `json:"entityType"`
	EntityID          string      `json:"entityId"`
	OpenBadgeID       string      `json:"openBadgeId"`
	CreatedAt         time.Time   `json:"createdAt"`
	CreatedBy         string      `json:"createdBy"`
	Issuer            string      `json:"issuer"`
	IssuerOpenBadgeID string      `json:"issuerOpenBadgeId"`
	Name              string      `json:"name"`
	Image             string      `json:"image"`
	Description       string      `json:"description"`
	CriteriaURL       string      `json:"criteriaUrl"`
	CriteriaNarrative string      `json:"criteriaNarrative"`
	Alignments        []Alignment `json:"alignments"`
	Tags              []string    `json:"tags"`
	Expires           *Expiration `json:"expires,omitempty"`
}

type Alignment struct {
	TargetName        string `json:"targetName"`
	TargetURL         string `json:"targetUrl"`
	TargetDescription string `json:"targetDescription"`
	TargetFramework   string `json:"targetFramework"`
	TargetCode        string `json:"targetCode"`
}

type Expiration struct {
	Amount   json.Number `json:"amount"`
	Duration string      `json:"duration"`
}

// AccessToken is an access token issued by the credentialing platform to an account.
type AccessToken struct {
	EntityType  string       `json:"entityType"`
	EntityID    string       `json:"entityId"`
	Application *Application `json:"application,omitempty"`
	Scope       string       `json:"scope"`
	Expires     time.Time    `json:"expires"`
	Created     time.Time    `json:"created"`
}

type Application struct {
	Name       string `json:"name"`
	Image      string `json:"image"`
	WebsiteURL string `json:"website_url"`
	ClientID   string `json:"clientId"`
}

// Value is a JSON-LD node as returned by the v1 earner endpoints.
type Value struct {
	Type  string `json:"type,omitempty"`
	Value string `json:"@value"`
}

// EarnedBadge is the raw backpack entry of an earned badge.
type EarnedBadge struct {
	JSON struct {
		Badge struct {
			Name         Value `json:"name"`
			Image        Value `json:"image"`
			Description  Value `json:"description"`
			CriteriaText Value `json:"criteria_text"`
			Issuer       struct {
				ID          string `json:"id"`
				Name        Value  `json:"name"`
				Description Value  `json:"description"`
				Email       Value  `json:"email"`
			} `json:"issuer"`
		} `json:"badge"`
		IssuedOn Value `json:"issuedOn"`
	} `json:"json"`
	Image string `json:"image"`
}

// EarnedBadgeView is the simplified projection of an earned badge.
type EarnedBadgeView struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURI    string    `json:"imageUri"`
	AwardedBy   string    `json:"awardedBy"`
	AwardedOn   time.Time `json:"awardedOn"`
}

// View projects the raw entry. An unparsable issue date yields the zero time.
func (b *EarnedBadge) View() EarnedBadgeView {
	awardedOn, _ := time.Parse(time.RFC3339, b.JSON.IssuedOn.Value)
	return EarnedBadgeView{
		Name:        b.JSON.Badge.Name.Value,
		Description: b.JSON.Badge.Description.Value,
		ImageURI:    b.Image,
		AwardedBy:   b.JSON.Badge.Issuer.Name.Value,
		AwardedOn:   awardedOn,
	}
}

// AssertionDetail is the batch award request.
type AssertionDetail struct {
	IssuerID           string      `json:"issuer"`
	BadgeClassID       string      `json:"badge_class"`
	CreateNotification bool        `json:"create_notification"`
	Assertions         []Assertion `json:"assertions"`
}

type Assertion struct {
	RecipientIdentifier string `json:"recipient_identifier"`
	Narrative           string `json:"narrative,omitempty"`
}

type addStaffRequest struct {
	Action string `json:"action"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

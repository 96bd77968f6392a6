package entities

import (
	"strings"
	"time"
)

// Restrictions is the closed usage policy attached to a credit unit.
// Empty allow-lists mean the dimension is unrestricted.
type Restrictions struct {
	AllowedServiceTypes []string `json:"allowed_service_types,omitempty"`
	AllowedDepartments  []string `json:"allowed_departments,omitempty"`
	MaxUses             *int     `json:"max_uses,omitempty"`
	Transferable        bool     `json:"transferable"`
}

// PermitsService reports whether the policy allows the given service type
// and department
func (r Restrictions) PermitsService(serviceType, department string) bool {
	if len(r.AllowedServiceTypes) > 0 && !containsFold(r.AllowedServiceTypes, serviceType) {
		return false
	}
	if len(r.AllowedDepartments) > 0 && !containsFold(r.AllowedDepartments, department) {
		return false
	}
	return true
}

// MergeRestrictions combines a funding credit's policy with the policy
// requested for a gift, keeping whichever is stricter on every dimension.
func MergeRestrictions(source, requested Restrictions) Restrictions {
	merged := Restrictions{
		AllowedServiceTypes: intersectAllowList(source.AllowedServiceTypes, requested.AllowedServiceTypes),
		AllowedDepartments:  intersectAllowList(source.AllowedDepartments, requested.AllowedDepartments),
		// Re-gifting is opt-in on the outgoing policy; the funding credit
		// being transferable does not make the gift transferable.
		Transferable: requested.Transferable,
	}
	merged.MaxUses = minMaxUses(source.MaxUses, requested.MaxUses)
	return merged
}

func intersectAllowList(a, b []string) []string {
	if len(a) == 0 {
		return append([]string(nil), b...)
	}
	if len(b) == 0 {
		return append([]string(nil), a...)
	}
	var out []string
	for _, v := range a {
		if containsFold(b, v) {
			out = append(out, v)
		}
	}
	return out
}

func minMaxUses(a, b *int) *int {
	if a == nil {
		return b
	}
	if b == nil || *a < *b {
		v := *a
		return &v
	}
	v := *b
	return &v
}

func containsFold(list []string, value string) bool {
	for _, v := range list {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

// ServiceContext describes what a spend is paying for. SourceTypes, when
// set, restricts which credit categories may fund the spend.
type ServiceContext struct {
	ServiceType   string       `json:"type"`
	Department    string       `json:"department"`
	AppointmentID string       `json:"appointment_id,omitempty"`
	SourceTypes   []CreditType `json:"source_types,omitempty"`
}

// AllowsSource reports whether the context permits funding from the given
// credit type. An empty SourceTypes list permits every type.
func (c ServiceContext) AllowsSource(t CreditType) bool {
	if len(c.SourceTypes) == 0 {
		return true
	}
	for _, st := range c.SourceTypes {
		if st == t {
			return true
		}
	}
	return false
}

// Credit is a discrete unit of spendable value. Each unit carries its own
// expiry and restriction policy; exhausted credits are kept for audit.
type Credit struct {
	ID              string       `json:"id" db:"id"`
	WalletID        string       `json:"wallet_id" db:"wallet_id"`
	Type            CreditType   `json:"type" db:"type"`
	Amount          int64        `json:"amount" db:"amount"`
	RemainingAmount int64        `json:"remaining_amount" db:"remaining_amount"`
	Uses            int          `json:"uses" db:"uses"`
	ExpiresAt       *time.Time   `json:"expires_at,omitempty" db:"expires_at"`
	SourceRef       string       `json:"source_ref,omitempty" db:"source_ref"`
	Restrictions    Restrictions `json:"restrictions" db:"restrictions"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

// Expired reports whether the credit has expired as of now
func (c *Credit) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// Exhausted reports whether the credit has no remaining value
func (c *Credit) Exhausted() bool {
	return c.RemainingAmount <= 0
}

// UsesExhausted reports whether the credit's max-use policy has been reached
func (c *Credit) UsesExhausted() bool {
	return c.Restrictions.MaxUses != nil && c.Uses >= *c.Restrictions.MaxUses
}

// EligibleFor reports whether the credit may fund a spend in the given
// context at the evaluation instant
func (c *Credit) EligibleFor(svc ServiceContext, now time.Time) bool {
	if c.Exhausted() || c.Expired(now) || c.UsesExhausted() {
		return false
	}
	if !svc.AllowsSource(c.Type) {
		return false
	}
	return c.Restrictions.PermitsService(svc.ServiceType, svc.Department)
}

// Clone returns a deep copy of the credit
func (c *Credit) Clone() *Credit {
	cp := *c
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		cp.ExpiresAt = &t
	}
	if c.Restrictions.MaxUses != nil {
		v := *c.Restrictions.MaxUses
		cp.Restrictions.MaxUses = &v
	}
	cp.Restrictions.AllowedServiceTypes = append([]string(nil), c.Restrictions.AllowedServiceTypes...)
	cp.Restrictions.AllowedDepartments = append([]string(nil), c.Restrictions.AllowedDepartments...)
	return &cp
}

// CreditSelection is one prioritizer decision: consume Amount from the
// credit identified by CreditID
type CreditSelection struct {
	CreditID string     `json:"credit_id"`
	Type     CreditType `json:"type"`
	Amount   int64      `json:"amount"`
}

// CreditSpec describes a credit grant
type CreditSpec struct {
	UserID       string       `json:"user_id"`
	Type         CreditType   `json:"type"`
	Amount       int64        `json:"amount"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	SourceRef    string       `json:"source_ref,omitempty"`
	Restrictions Restrictions `json:"restrictions"`
}

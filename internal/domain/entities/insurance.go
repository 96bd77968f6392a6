package entities

import (
	"time"
)

// PackageType is the insurance scheme a profile belongs to
type PackageType string

const (
	PackageTypeBHCPF   PackageType = "BHCPF"
	PackageTypeFSSHIP  PackageType = "FSSHIP"
	PackageTypeVGF     PackageType = "VGF"
	PackageTypeGIFSHIP PackageType = "GIFSHIP"
)

// Valid reports whether t is a known package type
func (t PackageType) Valid() bool {
	switch t {
	case PackageTypeBHCPF, PackageTypeFSSHIP, PackageTypeVGF, PackageTypeGIFSHIP:
		return true
	}
	return false
}

// InsuranceProfile tracks a user's coverage under one policy. UsedAmount is
// only ever mutated inside a ledger transaction (reservation at spend time)
// so it cannot exceed the annual limit.
type InsuranceProfile struct {
	ID                 string      `json:"id" db:"id"`
	UserID             string      `json:"user_id" db:"user_id"`
	PolicyNumber       string      `json:"policy_number" db:"policy_number"`
	PackageType        PackageType `json:"package_type" db:"package_type"`
	CoveragePercentage int         `json:"coverage_percentage" db:"coverage_percentage"`
	AnnualLimit        int64       `json:"annual_limit" db:"annual_limit"`
	UsedAmount         int64       `json:"used_amount" db:"used_amount"`
	LastVerifiedAt     time.Time   `json:"last_verified_at" db:"last_verified_at"`
	Active             bool        `json:"active" db:"active"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at" db:"updated_at"`
}

// Headroom returns the unreserved portion of the annual limit
func (p *InsuranceProfile) Headroom() int64 {
	if p.UsedAmount >= p.AnnualLimit {
		return 0
	}
	return p.AnnualLimit - p.UsedAmount
}

// VerifiedWithin reports whether the last verification is no older than the
// given freshness window as of now
func (p *InsuranceProfile) VerifiedWithin(window time.Duration, now time.Time) bool {
	if p.LastVerifiedAt.IsZero() {
		return false
	}
	return now.Sub(p.LastVerifiedAt) <= window
}

// Clone returns a deep copy of the profile
func (p *InsuranceProfile) Clone() *InsuranceProfile {
	cp := *p
	return &cp
}

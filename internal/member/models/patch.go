package models

import (
	"strings"
	"time"

	dErrors "policardmed/pkg/domain-errors"
)

// Patch is a partial update. Nil fields are left untouched. ID, CPF, the plan
// window and CreatedAt are not part of the edit surface.
type Patch struct {
	PrimaryMemberName *string
	Email             *string
	Phone             *string
	Address           *string
	PlanType          *PlanType
	NumberOfLives     *int
	Dependents        *[]Dependent
	PaymentStatus     *PaymentStatus
	IsActive          *bool
	UpdatedAt         time.Time
}

// Normalize trims text fields and drops incomplete dependents.
func (p *Patch) Normalize() {
	trim := func(s *string) {
		if s != nil {
			v := strings.TrimSpace(*s)
			*s = v
		}
	}
	trim(p.PrimaryMemberName)
	trim(p.Email)
	trim(p.Phone)
	trim(p.Address)
	if p.Dependents != nil {
		deps := NormalizeDependents(*p.Dependents)
		p.Dependents = &deps
	}
}

// Validate checks the fields present in the patch against member invariants.
func (p Patch) Validate() error {
	if p.PrimaryMemberName != nil && *p.PrimaryMemberName == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "primary member name cannot be empty")
	}
	if p.PlanType != nil && !p.PlanType.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "plan type must be one of consulta, desconto_consulta, desconto_completo")
	}
	if p.NumberOfLives != nil && (*p.NumberOfLives < MinLives || *p.NumberOfLives > MaxLives) {
		return dErrors.New(dErrors.CodeInvariantViolation, "number of lives must be between 1 and 6")
	}
	if p.PaymentStatus != nil && !p.PaymentStatus.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "payment status must be em_dia or em_debito")
	}
	return nil
}

// IsEmpty reports a patch that would change nothing.
func (p Patch) IsEmpty() bool {
	return p.PrimaryMemberName == nil && p.Email == nil && p.Phone == nil && p.Address == nil &&
		p.PlanType == nil && p.NumberOfLives == nil && p.Dependents == nil &&
		p.PaymentStatus == nil && p.IsActive == nil
}

// Apply writes the present fields onto m. Stores use it to keep a single
// definition of what a patch means.
func (m *Member) Apply(p Patch) {
	if p.PrimaryMemberName != nil {
		m.PrimaryMemberName = *p.PrimaryMemberName
	}
	if p.Email != nil {
		m.Email = *p.Email
	}
	if p.Phone != nil {
		m.Phone = *p.Phone
	}
	if p.Address != nil {
		m.Address = *p.Address
	}
	if p.PlanType != nil {
		m.PlanDetails.Type = *p.PlanType
	}
	if p.NumberOfLives != nil {
		m.PlanDetails.NumberOfLives = *p.NumberOfLives
	}
	if p.Dependents != nil {
		m.Dependents = append([]Dependent{}, (*p.Dependents)...)
	}
	if p.PaymentStatus != nil {
		m.PaymentStatus = *p.PaymentStatus
	}
	if p.IsActive != nil {
		m.IsActive = *p.IsActive
	}
	if !p.UpdatedAt.IsZero() {
		m.UpdatedAt = p.UpdatedAt
	}
}

// PaymentStatusPatch is the single-field patch written by the payment toggle.
func PaymentStatusPatch(status PaymentStatus, now time.Time) Patch {
	return Patch{PaymentStatus: &status, UpdatedAt: now}
}

// DependentsPatch replaces the dependents sequence.
func DependentsPatch(deps []Dependent, now time.Time) Patch {
	out := append([]Dependent{}, deps...)
	return Patch{Dependents: &out, UpdatedAt: now}
}

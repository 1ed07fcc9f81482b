package models

import (
	"strings"
	"time"

	id "policardmed/pkg/domain"
	dErrors "policardmed/pkg/domain-errors"
)

// PlanDuration is the fixed plan length: 365 days counted in seconds, with no
// calendar or leap-year awareness.
const PlanDuration = 365 * 24 * time.Hour

// CollectionName is the logical collection holding every member document.
const CollectionName = "policardmed_members"

// CollectionPath is the deployment-scoped location of the member collection.
func CollectionPath(appID string) string {
	return "/artifacts/" + appID + "/public/data/" + CollectionName
}

// Member is the aggregate root for a primary policyholder.
//
// Invariants:
//   - PrimaryMemberName and CPF are non-empty
//   - CPF is unique across members and immutable after creation
//   - PlanDetails.Type is a known tier and NumberOfLives is within [1,6]
//   - PlanEndDate = PlanStartDate + PlanDuration, fixed at creation
//   - CreatedAt is immutable after construction
//
// Dependents carry no uniqueness constraint; completeness of each entry is
// enforced when it is added, not by the stores.
type Member struct {
	ID                id.MemberID   `json:"id"`
	PrimaryMemberName string        `json:"primaryMemberName"`
	CPF               string        `json:"cpf"`
	Email             string        `json:"email"`
	Phone             string        `json:"phone"`
	Address           string        `json:"address"`
	PlanDetails       PlanDetails   `json:"planDetails"`
	Dependents        []Dependent   `json:"dependents"`
	PlanStartDate     time.Time     `json:"planStartDate"`
	PlanEndDate       time.Time     `json:"planEndDate"`
	PaymentStatus     PaymentStatus `json:"paymentStatus"`
	IsActive          bool          `json:"isActive"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// NewMemberParams is the admin-supplied part of a new member.
type NewMemberParams struct {
	PrimaryMemberName string
	CPF               string
	Email             string
	Phone             string
	Address           string
	Plan              PlanDetails
	Dependents        []Dependent
}

// NewMember validates params and derives the creation-time state: the plan
// window starts at now, payment is current and the member is active.
func NewMember(p NewMemberParams, now time.Time) (*Member, error) {
	name := strings.TrimSpace(p.PrimaryMemberName)
	cpf := strings.TrimSpace(p.CPF)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "primary member name cannot be empty")
	}
	if cpf == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "cpf cannot be empty")
	}
	if err := validatePlan(p.Plan.Type, p.Plan.NumberOfLives); err != nil {
		return nil, err
	}
	return &Member{
		PrimaryMemberName: name,
		CPF:               cpf,
		Email:             strings.TrimSpace(p.Email),
		Phone:             strings.TrimSpace(p.Phone),
		Address:           strings.TrimSpace(p.Address),
		PlanDetails:       p.Plan,
		Dependents:        NormalizeDependents(p.Dependents),
		PlanStartDate:     now,
		PlanEndDate:       now.Add(PlanDuration),
		PaymentStatus:     PaymentCurrent,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func validatePlan(t PlanType, lives int) error {
	if !t.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "plan type must be one of consulta, desconto_consulta, desconto_completo")
	}
	if lives < MinLives || lives > MaxLives {
		return dErrors.New(dErrors.CodeInvariantViolation, "number of lives must be between 1 and 6")
	}
	return nil
}

// Clone returns a deep copy; snapshot operations never alias stored state.
func (m *Member) Clone() *Member {
	if m == nil {
		return nil
	}
	c := *m
	if m.Dependents != nil {
		c.Dependents = append([]Dependent(nil), m.Dependents...)
	}
	return &c
}

// IsCurrent reports an active member whose plan has not ended at now.
func (m *Member) IsCurrent(now time.Time) bool {
	return m.IsActive && m.PlanEndDate.After(now)
}

// IsExpiringSoon reports a current member whose plan ends within the next
// ExpiringWindowDays calendar days.
func (m *Member) IsExpiringSoon(now time.Time) bool {
	return m.IsCurrent(now) && !m.PlanEndDate.After(ExpiringWindowEnd(now))
}

// StartedInMonthOf reports whether the plan started in now's calendar month.
func (m *Member) StartedInMonthOf(now time.Time) bool {
	if m.PlanStartDate.IsZero() {
		return false
	}
	start := m.PlanStartDate.In(now.Location())
	return start.Year() == now.Year() && start.Month() == now.Month()
}

func (m *Member) IsDefaulting() bool {
	return m.PaymentStatus == PaymentDelinquent
}

package handler

import (
	"strings"
	"time"

	"policardmed/internal/member/models"
	dErrors "policardmed/pkg/domain-errors"
)

// CreateMemberRequest is the body of POST /admin/members.
type CreateMemberRequest struct {
	PrimaryMemberName string             `json:"primaryMemberName" validate:"required,max=200"`
	CPF               string             `json:"cpf" validate:"required,max=32"`
	Email             string             `json:"email" validate:"max=254"`
	Phone             string             `json:"phone" validate:"max=32"`
	Address           string             `json:"address" validate:"max=500"`
	PlanDetails       PlanRequest        `json:"planDetails"`
	Dependents        []DependentRequest `json:"dependents" validate:"max=50,dive"`
}

type PlanRequest struct {
	Type          string `json:"type" validate:"required,oneof=consulta desconto_consulta desconto_completo"`
	NumberOfLives int    `json:"numberOfLives" validate:"min=1,max=6"`
}

type DependentRequest struct {
	Name         string `json:"name" validate:"max=200"`
	Relationship string `json:"relationship" validate:"max=100"`
}

func (r *CreateMemberRequest) Normalize() {
	r.PrimaryMemberName = strings.TrimSpace(r.PrimaryMemberName)
	r.CPF = strings.TrimSpace(r.CPF)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Address = strings.TrimSpace(r.Address)
}

// Validate rejects values that only become empty once trimmed.
func (r *CreateMemberRequest) Validate() error {
	if r.PrimaryMemberName == "" {
		return dErrors.New(dErrors.CodeValidation, "primaryMemberName is required")
	}
	if r.CPF == "" {
		return dErrors.New(dErrors.CodeValidation, "cpf is required")
	}
	return nil
}

func (r *CreateMemberRequest) ToParams() models.NewMemberParams {
	return models.NewMemberParams{
		PrimaryMemberName: r.PrimaryMemberName,
		CPF:               r.CPF,
		Email:             r.Email,
		Phone:             r.Phone,
		Address:           r.Address,
		Plan: models.PlanDetails{
			Type:          models.PlanType(r.PlanDetails.Type),
			NumberOfLives: r.PlanDetails.NumberOfLives,
		},
		Dependents: toDependents(r.Dependents),
	}
}

// UpdateMemberRequest is the body of PATCH /admin/members/{id}. Absent fields
// are left unchanged. cpf is not accepted.
type UpdateMemberRequest struct {
	PrimaryMemberName *string             `json:"primaryMemberName" validate:"omitempty,max=200"`
	Email             *string             `json:"email" validate:"omitempty,max=254"`
	Phone             *string             `json:"phone" validate:"omitempty,max=32"`
	Address           *string             `json:"address" validate:"omitempty,max=500"`
	PlanDetails       *PlanPatchRequest   `json:"planDetails"`
	Dependents        *[]DependentRequest `json:"dependents" validate:"omitempty,max=50,dive"`
	PaymentStatus     *string             `json:"paymentStatus" validate:"omitempty,oneof=em_dia em_debito"`
	IsActive          *bool               `json:"isActive"`
	CPF               *string             `json:"cpf"`
}

type PlanPatchRequest struct {
	Type          *string `json:"type" validate:"omitempty,oneof=consulta desconto_consulta desconto_completo"`
	NumberOfLives *int    `json:"numberOfLives" validate:"omitempty,min=1,max=6"`
}

func (r *UpdateMemberRequest) Normalize() {
	trim := func(s *string) {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
	trim(r.PrimaryMemberName)
	trim(r.Email)
	trim(r.Phone)
	trim(r.Address)
}

func (r *UpdateMemberRequest) Validate() error {
	if r.CPF != nil {
		return dErrors.New(dErrors.CodeValidation, "cpf cannot be changed")
	}
	if r.PrimaryMemberName != nil && *r.PrimaryMemberName == "" {
		return dErrors.New(dErrors.CodeValidation, "primaryMemberName cannot be empty")
	}
	return nil
}

// ToPatch builds the domain patch stamped with now.
func (r *UpdateMemberRequest) ToPatch(now time.Time) models.Patch {
	p := models.Patch{
		PrimaryMemberName: r.PrimaryMemberName,
		Email:             r.Email,
		Phone:             r.Phone,
		Address:           r.Address,
		IsActive:          r.IsActive,
		UpdatedAt:         now,
	}
	if r.PlanDetails != nil {
		if r.PlanDetails.Type != nil {
			t := models.PlanType(*r.PlanDetails.Type)
			p.PlanType = &t
		}
		p.NumberOfLives = r.PlanDetails.NumberOfLives
	}
	if r.Dependents != nil {
		deps := toDependents(*r.Dependents)
		p.Dependents = &deps
	}
	if r.PaymentStatus != nil {
		status := models.PaymentStatus(*r.PaymentStatus)
		p.PaymentStatus = &status
	}
	return p
}

// AddDependentRequest is the body of POST /admin/members/{id}/dependents.
// Blank values are accepted and result in no change.
type AddDependentRequest struct {
	Name         string `json:"name" validate:"max=200"`
	Relationship string `json:"relationship" validate:"max=100"`
}

func (r *AddDependentRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Relationship = strings.TrimSpace(r.Relationship)
}

func (r *AddDependentRequest) Validate() error { return nil }

func toDependents(in []DependentRequest) []models.Dependent {
	out := make([]models.Dependent, 0, len(in))
	for _, d := range in {
		out = append(out, models.Dependent{Name: d.Name, Relationship: d.Relationship})
	}
	return out
}

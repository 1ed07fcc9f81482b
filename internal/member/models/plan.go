package models

import (
	"encoding/json"
)

// PlanType is one of the three discount-card tiers.
type PlanType string

const (
	PlanConsulta         PlanType = "consulta"
	PlanDescontoConsulta PlanType = "desconto_consulta"
	PlanDescontoCompleto PlanType = "desconto_completo"
)

// UnknownPlanName is shown for plan types outside the known tiers.
const UnknownPlanName = "Plano Desconhecido"

const (
	MinLives = 1
	MaxLives = 6
)

var planNames = map[PlanType]string{
	PlanConsulta:         "Cartão Consulta",
	PlanDescontoConsulta: "Cartão Desconto - Só Consultas",
	PlanDescontoCompleto: "Cartão Desconto - Consultas e Exames",
}

// KnownPlanTypes lists the tiers in display order.
func KnownPlanTypes() []PlanType {
	return []PlanType{PlanConsulta, PlanDescontoConsulta, PlanDescontoCompleto}
}

func (t PlanType) IsValid() bool {
	_, ok := planNames[t]
	return ok
}

// DerivePlanName maps a plan type to its display name. Total: unknown types
// yield UnknownPlanName.
func DerivePlanName(t PlanType) string {
	if name, ok := planNames[t]; ok {
		return name
	}
	return UnknownPlanName
}

// PlanDetails is the plan assignment of a member. The display name is not
// stored; it is derived from Type whenever it is read.
type PlanDetails struct {
	Type          PlanType `json:"type"`
	NumberOfLives int      `json:"numberOfLives"`
}

func (p PlanDetails) Name() string {
	return DerivePlanName(p.Type)
}

// Lives returns the covered lives, counting a missing value as one.
func (p PlanDetails) Lives() int {
	if p.NumberOfLives < MinLives {
		return 1
	}
	return p.NumberOfLives
}

// MarshalJSON adds the derived name so clients keep receiving planDetails.name.
func (p PlanDetails) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type          PlanType `json:"type"`
		Name          string   `json:"name"`
		NumberOfLives int      `json:"numberOfLives"`
	}{
		Type:          p.Type,
		Name:          p.Name(),
		NumberOfLives: p.NumberOfLives,
	})
}

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "policardmed/pkg/domain-errors"
)

type MemberSuite struct {
	suite.Suite
	now time.Time
}

func TestMemberSuite(t *testing.T) {
	suite.Run(t, new(MemberSuite))
}

func (s *MemberSuite) SetupTest() {
	s.now = time.Date(2025, time.March, 15, 10, 30, 0, 0, time.UTC)
}

func (s *MemberSuite) validParams() NewMemberParams {
	return NewMemberParams{
		PrimaryMemberName: "Maria Souza",
		CPF:               "123.456.789-00",
		Email:             "maria@example.com",
		Plan:              PlanDetails{Type: PlanDescontoCompleto, NumberOfLives: 3},
	}
}

func (s *MemberSuite) TestNewMember() {
	s.Run("derives creation state", func() {
		m, err := NewMember(s.validParams(), s.now)
		s.Require().NoError(err)

		s.True(m.IsActive)
		s.Equal(PaymentCurrent, m.PaymentStatus)
		s.Equal(s.now, m.PlanStartDate)
		s.Equal(s.now, m.CreatedAt)
		s.Equal(int64(365*86400), m.PlanEndDate.Unix()-m.PlanStartDate.Unix())
		s.NotNil(m.Dependents)
	})

	s.Run("plan end ignores leap years", func() {
		leap := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
		m, err := NewMember(s.validParams(), leap)
		s.Require().NoError(err)
		s.Equal(time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC), m.PlanEndDate)
	})

	s.Run("trims name and cpf", func() {
		p := s.validParams()
		p.PrimaryMemberName = "  Maria  "
		p.CPF = " 111 "
		m, err := NewMember(p, s.now)
		s.Require().NoError(err)
		s.Equal("Maria", m.PrimaryMemberName)
		s.Equal("111", m.CPF)
	})

	s.Run("drops incomplete dependents", func() {
		p := s.validParams()
		p.Dependents = []Dependent{{Name: "Ana", Relationship: "filha"}, {Name: " ", Relationship: "filho"}}
		m, err := NewMember(p, s.now)
		s.Require().NoError(err)
		s.Equal([]Dependent{{Name: "Ana", Relationship: "filha"}}, m.Dependents)
	})

	cases := []struct {
		name   string
		mutate func(*NewMemberParams)
	}{
		{"empty name", func(p *NewMemberParams) { p.PrimaryMemberName = "   " }},
		{"empty cpf", func(p *NewMemberParams) { p.CPF = "" }},
		{"unknown plan type", func(p *NewMemberParams) { p.Plan.Type = "premium" }},
		{"zero lives", func(p *NewMemberParams) { p.Plan.NumberOfLives = 0 }},
		{"seven lives", func(p *NewMemberParams) { p.Plan.NumberOfLives = 7 }},
	}
	for _, tc := range cases {
		s.Run("rejects "+tc.name, func() {
			p := s.validParams()
			tc.mutate(&p)
			m, err := NewMember(p, s.now)
			s.Nil(m)
			s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}
}

func (s *MemberSuite) TestClone() {
	m, err := NewMember(s.validParams(), s.now)
	s.Require().NoError(err)
	m.Dependents = []Dependent{{Name: "Ana", Relationship: "filha"}}

	c := m.Clone()
	c.Dependents[0].Name = "Bia"
	s.Equal("Ana", m.Dependents[0].Name)
}

func (s *MemberSuite) TestJSONCarriesDerivedPlanName() {
	m, err := NewMember(s.validParams(), s.now)
	s.Require().NoError(err)

	raw, err := json.Marshal(m)
	s.Require().NoError(err)

	var decoded struct {
		PlanDetails map[string]any `json:"planDetails"`
	}
	s.Require().NoError(json.Unmarshal(raw, &decoded))
	s.Equal("Cartão Desconto - Consultas e Exames", decoded.PlanDetails["name"])
	s.Equal("desconto_completo", decoded.PlanDetails["type"])
}

func (s *MemberSuite) TestCollectionPath() {
	s.Equal("/artifacts/default-policardmed-app/public/data/policardmed_members", CollectionPath("default-policardmed-app"))
}

func TestDerivePlanName(t *testing.T) {
	cases := map[PlanType]string{
		PlanConsulta:         "Cartão Consulta",
		PlanDescontoConsulta: "Cartão Desconto - Só Consultas",
		PlanDescontoCompleto: "Cartão Desconto - Consultas e Exames",
		"":                   UnknownPlanName,
		"CONSULTA":           UnknownPlanName,
		"gold":               UnknownPlanName,
	}
	for in, want := range cases {
		if got := DerivePlanName(in); got != want {
			t.Errorf("DerivePlanName(%q) = %q, want %q", in, got, want)
		}
		if got := DerivePlanName(in); got != DerivePlanName(in) {
			t.Errorf("DerivePlanName(%q) not stable", in)
		}
	}
}

func TestPaymentToggleIsInvolution(t *testing.T) {
	for _, st := range []PaymentStatus{PaymentCurrent, PaymentDelinquent} {
		if got := st.Toggled().Toggled(); got != st {
			t.Errorf("%s toggled twice = %s", st, got)
		}
	}
	if got := PaymentStatus("").Toggled(); got != PaymentCurrent {
		t.Errorf("unknown status toggled = %s, want em_dia", got)
	}
}

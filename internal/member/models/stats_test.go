package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var statsNow = time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)

func TestComputeDashboardStats(t *testing.T) {
	t.Run("empty list is all zero", func(t *testing.T) {
		assert.Equal(t, Stats{}, ComputeDashboardStats(nil, statsNow))
		assert.Equal(t, Stats{}, ComputeDashboardStats([]*Member{}, statsNow))
	})

	t.Run("active and inactive scenario", func(t *testing.T) {
		members := []*Member{
			{
				IsActive:      true,
				PlanEndDate:   statsNow.AddDate(0, 0, 10),
				PaymentStatus: PaymentDelinquent,
				PlanDetails:   PlanDetails{Type: PlanConsulta, NumberOfLives: 2},
			},
			{
				IsActive:      false,
				PlanEndDate:   statsNow.AddDate(0, 0, 5),
				PaymentStatus: PaymentCurrent,
				PlanDetails:   PlanDetails{Type: PlanConsulta, NumberOfLives: 4},
			},
		}
		got := ComputeDashboardStats(members, statsNow)
		assert.Equal(t, 1, got.ActiveMembers)
		assert.Equal(t, 2, got.TotalLives)
		assert.Equal(t, 1, got.ExpiringSoon)
		assert.Equal(t, 1, got.Defaulting)
		assert.Equal(t, PlanDistribution{Consulta: 1}, got.PlanDistribution)
	})

	t.Run("expired plans are not active", func(t *testing.T) {
		members := []*Member{
			{IsActive: true, PlanEndDate: statsNow, PlanDetails: PlanDetails{Type: PlanConsulta, NumberOfLives: 1}},
			{IsActive: true, PlanEndDate: statsNow.Add(-time.Hour), PlanDetails: PlanDetails{Type: PlanConsulta, NumberOfLives: 1}},
		}
		got := ComputeDashboardStats(members, statsNow)
		assert.Zero(t, got.ActiveMembers)
		assert.Zero(t, got.ExpiringSoon)
	})

	t.Run("expiring window is inclusive at thirty days", func(t *testing.T) {
		members := []*Member{
			{IsActive: true, PlanEndDate: statsNow.AddDate(0, 0, 30)},
			{IsActive: true, PlanEndDate: statsNow.AddDate(0, 0, 30).Add(time.Second)},
		}
		got := ComputeDashboardStats(members, statsNow)
		assert.Equal(t, 2, got.ActiveMembers)
		assert.Equal(t, 1, got.ExpiringSoon)
	})

	t.Run("missing lives count as one and unknown types are not bucketed", func(t *testing.T) {
		members := []*Member{
			{IsActive: true, PlanEndDate: statsNow.AddDate(1, 0, 0), PlanDetails: PlanDetails{Type: "gold"}},
			{IsActive: true, PlanEndDate: statsNow.AddDate(1, 0, 0), PlanDetails: PlanDetails{Type: PlanDescontoConsulta, NumberOfLives: 6}},
		}
		got := ComputeDashboardStats(members, statsNow)
		assert.Equal(t, 2, got.ActiveMembers)
		assert.Equal(t, 7, got.TotalLives)
		assert.Equal(t, PlanDistribution{DescontoConsulta: 1}, got.PlanDistribution)
	})

	t.Run("new this month and defaulting ignore active flag", func(t *testing.T) {
		members := []*Member{
			{IsActive: false, PlanStartDate: statsNow.AddDate(0, 0, -5), PaymentStatus: PaymentDelinquent},
			{IsActive: false, PlanStartDate: statsNow.AddDate(-1, 0, 0), PaymentStatus: PaymentCurrent},
			{IsActive: true, PlanStartDate: time.Date(2025, time.May, 31, 23, 0, 0, 0, time.UTC)},
		}
		got := ComputeDashboardStats(members, statsNow)
		assert.Equal(t, 1, got.NewThisMonth)
		assert.Equal(t, 1, got.Defaulting)
	})
}

func TestFilterReportMatchesStats(t *testing.T) {
	members := []*Member{
		{ID: "a", IsActive: true, PlanStartDate: statsNow, PlanEndDate: statsNow.AddDate(0, 0, 3), PaymentStatus: PaymentDelinquent},
		{ID: "b", IsActive: false, PlanStartDate: statsNow.AddDate(0, -2, 0), PlanEndDate: statsNow.AddDate(0, 10, 0), PaymentStatus: PaymentCurrent},
		{ID: "c", IsActive: true, PlanStartDate: statsNow.AddDate(-1, 0, 0), PlanEndDate: statsNow.AddDate(0, 0, -1), PaymentStatus: PaymentDelinquent},
	}
	stats := ComputeDashboardStats(members, statsNow)

	assert.Len(t, FilterReport(members, ReportDefaulting, statsNow), stats.Defaulting)
	assert.Len(t, FilterReport(members, ReportExpiringSoon, statsNow), stats.ExpiringSoon)
	assert.Len(t, FilterReport(members, ReportNewThisMonth, statsNow), stats.NewThisMonth)

	inactive := FilterReport(members, ReportInactive, statsNow)
	assert.Len(t, inactive, len(members)-stats.ActiveMembers)
	assert.Equal(t, "b", inactive[0].ID.String())
}

func TestParseReportKind(t *testing.T) {
	k, err := ParseReportKind("expiring_soon")
	assert.NoError(t, err)
	assert.Equal(t, ReportExpiringSoon, k)

	_, err = ParseReportKind("everything")
	assert.Error(t, err)
}

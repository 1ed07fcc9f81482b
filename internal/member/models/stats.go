package models

import "time"

// ExpiringWindowDays is the look-ahead used for "expiring soon".
const ExpiringWindowDays = 30

// ExpiringWindowEnd is now plus ExpiringWindowDays calendar days.
func ExpiringWindowEnd(now time.Time) time.Time {
	return now.AddDate(0, 0, ExpiringWindowDays)
}

// PlanDistribution counts current members per known plan type. Members whose
// stored type is not one of the three tiers are not counted in any bucket.
type PlanDistribution struct {
	Consulta         int `json:"consulta"`
	DescontoConsulta int `json:"desconto_consulta"`
	DescontoCompleto int `json:"desconto_completo"`
}

func (d *PlanDistribution) add(t PlanType) {
	switch t {
	case PlanConsulta:
		d.Consulta++
	case PlanDescontoConsulta:
		d.DescontoConsulta++
	case PlanDescontoCompleto:
		d.DescontoCompleto++
	}
}

// Stats are the dashboard aggregates over one member snapshot.
type Stats struct {
	ActiveMembers    int              `json:"activeMembers"`
	TotalLives       int              `json:"totalLives"`
	NewThisMonth     int              `json:"newThisMonth"`
	ExpiringSoon     int              `json:"expiringSoon"`
	Defaulting       int              `json:"defaulting"`
	PlanDistribution PlanDistribution `json:"planDistribution"`
}

// ComputeDashboardStats aggregates members in a single pass:
//   - ActiveMembers, TotalLives and PlanDistribution count current members
//     (active and plan end after now)
//   - NewThisMonth counts plans started in now's month regardless of status
//   - ExpiringSoon counts current members ending within ExpiringWindowDays
//   - Defaulting counts em_debito members regardless of status
//
// Nothing is cached; callers recompute from each snapshot.
func ComputeDashboardStats(members []*Member, now time.Time) Stats {
	var s Stats
	windowEnd := ExpiringWindowEnd(now)
	for _, m := range members {
		if m == nil {
			continue
		}
		if m.IsCurrent(now) {
			s.ActiveMembers++
			s.TotalLives += m.PlanDetails.Lives()
			s.PlanDistribution.add(m.PlanDetails.Type)
			if !m.PlanEndDate.After(windowEnd) {
				s.ExpiringSoon++
			}
		}
		if m.IsDefaulting() {
			s.Defaulting++
		}
		if m.StartedInMonthOf(now) {
			s.NewThisMonth++
		}
	}
	return s
}

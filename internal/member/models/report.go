package models

import (
	"time"

	dErrors "policardmed/pkg/domain-errors"
)

// ReportKind selects one of the admin report listings.
type ReportKind string

const (
	ReportDefaulting   ReportKind = "defaulting"
	ReportExpiringSoon ReportKind = "expiring_soon"
	ReportNewThisMonth ReportKind = "new_this_month"
	ReportInactive     ReportKind = "inactive"
)

func ParseReportKind(raw string) (ReportKind, error) {
	switch k := ReportKind(raw); k {
	case ReportDefaulting, ReportExpiringSoon, ReportNewThisMonth, ReportInactive:
		return k, nil
	}
	return "", dErrors.New(dErrors.CodeBadRequest, "unknown report kind")
}

// FilterReport returns the members matching kind, in snapshot order. The
// predicates are the ones behind the dashboard counters, so a report's length
// always equals the matching statistic ("inactive" lists members that are not
// current).
func FilterReport(members []*Member, kind ReportKind, now time.Time) []*Member {
	out := make([]*Member, 0)
	for _, m := range members {
		if m == nil {
			continue
		}
		var match bool
		switch kind {
		case ReportDefaulting:
			match = m.IsDefaulting()
		case ReportExpiringSoon:
			match = m.IsExpiringSoon(now)
		case ReportNewThisMonth:
			match = m.StartedInMonthOf(now)
		case ReportInactive:
			match = !m.IsCurrent(now)
		}
		if match {
			out = append(out, m)
		}
	}
	return out
}

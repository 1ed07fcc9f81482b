package handler

import (
	"time"

	"policardmed/internal/member/models"
)

type MemberListResponse struct {
	Members []*models.Member `json:"members"`
	Count   int              `json:"count"`
}

type DashboardResponse struct {
	models.Stats
	GeneratedAt time.Time `json:"generatedAt"`
}

type ReportResponse struct {
	Kind        models.ReportKind `json:"kind"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Count       int               `json:"count"`
	Members     []*models.Member  `json:"members"`
}

func toMemberList(members []*models.Member) *MemberListResponse {
	if members == nil {
		members = []*models.Member{}
	}
	return &MemberListResponse{Members: members, Count: len(members)}
}

package service

import "github.com/darmiel/badgebot/internal/badgr"

// TeamMember is a people picker entry.
type TeamMember struct {
	Content string `json:"content"`
	Header  string `json:"header"`
}

type AllBadgesResponse struct {
	AllBadges     []badgr.BadgeClass `json:"allBadges"`
	UserBadgrRole string             `json:"userBadgrRole"`
}

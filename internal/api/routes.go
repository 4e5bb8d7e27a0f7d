package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/icanhazbadges"
	MetricsRoute     = "/metrics"

	MessagesRoute = "/api/messages"

	ResourceStringsRoute = "/api/resource/resourcestrings"

	BadgesParent      = "/api/badges/"
	TeamMembersRoute  = BadgesParent + "teammembers"
	AllBadgesRoute    = BadgesParent + "allbadges"
	EarnedBadgesRoute = BadgesParent + "earnedbadges"
	AwardBadgeRoute   = BadgesParent + "awardbadge"

	AdminParent      = "/api/admin/"
	ListAuditsRoute  = AdminParent + "audits"
	ListTasksRoute   = AdminParent + "tasks"
	TriggerTaskRoute = AdminParent + "tasks/{name}/trigger"
	LogsForTaskRoute = AdminParent + "tasks/{name}/logs"
)

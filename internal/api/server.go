package api

import (
	"context"
	"net/http"

	"github.com/darmiel/badgebot/internal/api/middleware"
	"github.com/darmiel/badgebot/internal/audit"
	"github.com/darmiel/badgebot/internal/bot"
	"github.com/darmiel/badgebot/internal/botframework"
	"github.com/darmiel/badgebot/internal/core"
	"github.com/darmiel/badgebot/internal/obs"
	"github.com/darmiel/badgebot/internal/service"
	"github.com/darmiel/badgebot/internal/tasks"
)

type BotHandler interface {
	Handle(ctx context.Context, activity *botframework.Activity) *botframework.InvokeResponse
}

type ActivityVerifier interface {
	VerifyRequest(r *http.Request) error
}

type TokenValidator interface {
	middleware.CallerValidator
	middleware.AdminValidator
}

type TaskManager interface {
	ListStatus() []tasks.TaskStatus
	Trigger(name string) error
	GetLogs(name string) ([]tasks.LogEntry, error)
}

type Server struct {
	badges   *service.BadgeService
	bot      BotHandler
	verifier ActivityVerifier
	tokens   TokenValidator
	strings  *bot.Strings
	auditor  core.Auditor

	taskManager TaskManager
}

func NewServer(
	badges *service.BadgeService,
	botHandler BotHandler,
	verifier ActivityVerifier,
	tokens TokenValidator,
	strings *bot.Strings,
	auditor core.Auditor,
	taskManager TaskManager,
) *Server {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	if taskManager == nil {
		taskManager = tasks.NewManager(0)
	}
	if strings == nil {
		strings = bot.NewStrings(nil)
	}
	return &Server{
		badges:   badges,
		bot:      botHandler,
		verifier: verifier,
		tokens:   tokens,
		strings:  strings,
		auditor:  auditor,

		taskManager: taskManager,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)
	mux.Handle("GET "+MetricsRoute, obs.Handler())
	mux.HandleFunc("GET "+ResourceStringsRoute, s.handleResourceStrings)

	// bot framework channel, authenticated by the activity verifier
	mux.HandleFunc("POST "+MessagesRoute, s.handleMessages)

	// task module routes
	badgeMux := http.NewServeMux()
	badgeMux.HandleFunc("GET "+TeamMembersRoute, s.handleTeamMembers)
	badgeMux.HandleFunc("GET "+AllBadgesRoute, s.handleAllBadges)
	badgeMux.HandleFunc("GET "+EarnedBadgesRoute, s.handleEarnedBadges)
	badgeMux.HandleFunc("POST "+AwardBadgeRoute, s.handleAwardBadge)
	mux.Handle(BadgesParent, middleware.CallerAuth(s.tokens)(badgeMux))

	// admin routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET "+ListAuditsRoute, s.handleAdminAudit)
	adminMux.HandleFunc("GET "+ListTasksRoute, s.handleListTasks)
	adminMux.HandleFunc("POST "+TriggerTaskRoute, s.handleTriggerTask)
	adminMux.HandleFunc("GET "+LogsForTaskRoute, s.handleLogsForTask)
	mux.Handle(AdminParent, middleware.AdminAuth(s.tokens)(adminMux))

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				obs.Instrument(mux))))
}

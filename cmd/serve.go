package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/badgebot/internal/api"
	"github.com/darmiel/badgebot/internal/apitoken"
	"github.com/darmiel/badgebot/internal/audit"
	"github.com/darmiel/badgebot/internal/bot"
	"github.com/darmiel/badgebot/internal/botframework"
	"github.com/darmiel/badgebot/internal/broker"
	"github.com/darmiel/badgebot/internal/buildinfo"
	"github.com/darmiel/badgebot/internal/obs"
	"github.com/darmiel/badgebot/internal/policy"
	"github.com/darmiel/badgebot/internal/reconcile"
	"github.com/darmiel/badgebot/internal/roster"
	"github.com/darmiel/badgebot/internal/service"
	"github.com/darmiel/badgebot/internal/state"
	"github.com/darmiel/badgebot/internal/tasks"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the BadgeBot server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := f.LoadServerConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Listen = addr
		}

		obs.Init(buildinfo.Version, buildinfo.CommitHash)

		log.Info().Msg("Initializing credentialing backend...")
		backend, err := f.NewBackend(ctx, cfg)
		if err != nil {
			return err
		}

		log.Info().Msg("Initializing bot framework clients...")
		appClient := botframework.NewAppClient(ctx, cfg.Bot)
		connector := botframework.NewConnector(appClient)
		tokenService := botframework.NewTokenService(cfg.Bot.TokenServiceURL, cfg.Bot.AppID, appClient)
		verifier := botframework.NewVerifier(ctx, cfg.Bot)
		if verifier.Disabled() {
			log.Warn().Msg("channel authentication is disabled, do not use this in production")
		}

		users := broker.NewUserBroker(tokenService, cfg.Bot.ConnectionName)
		rosterCache := roster.New(connector, cfg.Roster.TTL, cfg.Roster.PageSize)

		auditor, err := audit.New(cfg.Audit)
		if err != nil {
			return fmt.Errorf("creating auditor: %w", err)
		}
		defer func() {
			if err := auditor.Close(); err != nil {
				log.Warn().Err(err).Msg("closing auditor")
			}
		}()

		reconciler := reconcile.NewReconciler(backend.Badgr, backend.Org, users, auditor)

		tokens, err := apitoken.NewIssuer(cfg.Token.SecurityKey, cfg.AppBaseURL, cfg.Token.Expiry)
		if err != nil {
			return fmt.Errorf("creating token issuer: %w", err)
		}

		awardPolicy, err := policy.Compile(cfg.AwardPolicy.Expr)
		if err != nil {
			return fmt.Errorf("compiling award policy: %w", err)
		}

		store, err := state.New(cfg.State)
		if err != nil {
			return fmt.Errorf("opening state store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("closing state store")
			}
		}()

		strings := bot.NewStrings(cfg.Resources)
		handler := bot.NewHandler(bot.Options{
			AppBaseURL:     cfg.AppBaseURL,
			TenantID:       cfg.TenantID,
			ConnectionName: cfg.Bot.ConnectionName,
			BadgrBaseURL:   cfg.Badgr.BaseURL,
		}, bot.Deps{
			Sender:        connector,
			SignIn:        tokenService,
			Users:         users,
			Roster:        rosterCache,
			Reconciler:    reconciler,
			Org:           backend.Org,
			Tokens:        tokens,
			Conversations: state.NewConversations(store),
			Strings:       strings,
		})

		badges := service.NewBadgeService(
			backend.Badgr,
			users,
			reconciler,
			backend.Org,
			rosterCache,
			awardPolicy,
			auditor,
		)

		taskManager := tasks.NewManager(cfg.Tasks.Timeout)
		defer taskManager.Close()
		taskManager.Register(tasks.BackendCheckTask, max(cfg.Tasks.BackendCheckInterval, 0),
			tasks.BackendCheck(backend.Owner, backend.Org))
		taskManager.Register(tasks.RosterFlushTask, 0, tasks.RosterFlush(rosterCache))

		// setup server
		srv := api.NewServer(badges, handler, verifier, tokens, strings, auditor, taskManager)

		server := &http.Server{
			Addr:              cfg.Listen,
			Handler:           srv.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Info().Msgf("Starting server on %s...", cfg.Listen)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	f.bindConfigFlag(serveCmd.Flags())

	serveCmd.Flags().String("addr", "", "address to listen on (overrides listen from the config)")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"synq/backend/internal/audit"
	"synq/backend/internal/config"
	healthhandler "synq/backend/internal/health/handler"
	identityhandler "synq/backend/internal/identity/handler"
	"synq/backend/internal/identity/service"
	"synq/backend/internal/logging"
	"synq/backend/internal/mail"
	"synq/backend/internal/platform/httpx"
	"synq/backend/internal/platform/rbac"
	"synq/backend/internal/policy/engine"
	"synq/backend/internal/security"
	"synq/backend/internal/server"
	"synq/backend/internal/session"
	"synq/backend/internal/telemetry"
	telemetryotel "synq/backend/internal/telemetry/otel"
	"synq/backend/internal/telemetry/producer"
	userhandler "synq/backend/internal/user/handler"
	waitlisthandler "synq/backend/internal/waitlist/handler"
)

const siteName = "Synq"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logging.New(os.Stdout, cfg.IsProduction())
	if err := run(cfg, log); err != nil {
		log.Error(context.Background(), "server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint: cfg.OTLPEndpoint,
		Insecure: cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()
	metrics, err := telemetry.NewAuthMetrics(providers.MeterProvider)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	emitters := telemetry.Fanout{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	var publisher producer.Producer
	kafkaProducer, err := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.AuthEventsTopic)
	if err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	if kafkaProducer != nil {
		publisher = kafkaProducer
		emitters = append(emitters, publisher)
		log.Info(ctx, "auth events publishing to kafka", "topic", cfg.AuthEventsTopic)
	}
	auditLogger := audit.NewLogger(emitters, httpx.ClientIP, log)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info(ctx, "credential store ready", "driver", cfg.DatabaseDriver)

	tokens, err := newTokenProvider(cfg, log)
	if err != nil {
		return err
	}

	sender, err := newSender(cfg, log)
	if err != nil {
		return err
	}

	issuer, err := service.NewMagicLinkIssuer(st.users, sender, cfg.MagicLinkBaseURL, cfg.MagicLinkTTL(), log, auditLogger, metrics)
	if err != nil {
		return err
	}
	verifier, err := service.NewMagicLinkVerifier(st.users, tokens, log, auditLogger, metrics)
	if err != nil {
		return err
	}
	sessions, err := service.NewSessionService(st.users, tokens, log, auditLogger, metrics)
	if err != nil {
		return err
	}

	policy, err := engine.LoadPolicyFile(cfg.PolicyFile)
	if err != nil {
		return err
	}
	evaluator, err := engine.NewOPAEvaluator(ctx, policy, cfg.AdminEmailList())
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	checker := healthhandler.NewChecker(st.pinger, evaluator)
	cookies := session.NewCookiePolicy(cfg.IsProduction(), cfg.CookieSameSite, cfg.CookieDomain, cfg.RefreshTTL())
	handler := server.NewHTTPHandler(server.Handlers{
		Auth:          identityhandler.NewAuthHandler(issuer, verifier, sessions, tokens, cookies, log),
		Users:         userhandler.NewHandler(sessions, log),
		Waitlist:      waitlisthandler.NewHandler(st.waitlist, log),
		Health:        healthhandler.NewHTTPHandler(checker, log),
		Session:       session.NewMiddleware(tokens, sessions, cookies, log),
		WaitlistGuard: rbac.RequireAccess(evaluator, sessions, engine.ActionWaitlistList, log),
	}, server.HTTPOptions{
		CORSOrigins: cfg.CORSOrigins(),
		HSTS:        cfg.IsProduction(),
		Instrument:  true,
		Log:         log,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	errCh := make(chan error, 2)
	go func() {
		log.Info(ctx, "HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()

	var grpcServer *grpc.Server
	if cfg.HealthGRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.HealthGRPCAddr)
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		grpcServer = server.NewGRPCServer(checker, log)
		go func() {
			log.Info(ctx, "gRPC health server listening", "addr", cfg.HealthGRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc serve: %w", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down...")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "http shutdown", "error", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	// Audit events are emitted asynchronously; let them finish before the exporters close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "otel shutdown", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Warn(shutdownCtx, "kafka close", "error", err)
		}
	}
	if err := st.close(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "store close", "error", err)
	}
	log.Info(shutdownCtx, "server stopped")
	return serveErr
}

// newTokenProvider loads explicit signing keys, derives them from JWT_MASTER_SECRET, or generates
// ephemeral keys in development.
func newTokenProvider(cfg *config.Config, log logging.Logger) (*security.TokenProvider, error) {
	var access, refresh security.SigningKey
	var err error
	switch {
	case cfg.JWTAccessSecret != "":
		if access, err = security.LoadSigningKey(cfg.JWTAccessSecret, cfg.JWTAccessPublicKey); err != nil {
			return nil, fmt.Errorf("access key: %w", err)
		}
		if refresh, err = security.LoadSigningKey(cfg.JWTRefreshSecret, cfg.JWTRefreshPublicKey); err != nil {
			return nil, fmt.Errorf("refresh key: %w", err)
		}
	case cfg.JWTMasterSecret != "":
		if access, refresh, err = security.DeriveSigningKeys([]byte(cfg.JWTMasterSecret), cfg.JWTIssuer); err != nil {
			return nil, fmt.Errorf("derive keys: %w", err)
		}
	default:
		if access, refresh, err = security.GenerateSigningKeys(); err != nil {
			return nil, fmt.Errorf("generate keys: %w", err)
		}
		log.Warn(context.Background(), "no JWT keys configured; using ephemeral keys, sessions end on restart")
	}
	return security.NewTokenProvider(access, refresh, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())
}

func newSender(cfg *config.Config, log logging.Logger) (mail.Sender, error) {
	composer, err := mail.NewComposer(cfg.MailFrom, siteName, "", cfg.MagicLinkTTL())
	if err != nil {
		return nil, err
	}
	switch cfg.MailDriver {
	case config.MailDriverSMTP:
		return mail.NewSMTPSender(composer, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	case config.MailDriverHTTP:
		return mail.NewHTTPSender(composer, cfg.MailAPIURL, cfg.MailAPIKey)
	default:
		return mail.NewOutbox(composer, cfg.MagicLinkTTL(), log), nil
	}
}

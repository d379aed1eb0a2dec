// Command bouncer runs the Bouncer HTTP API.
//
// Usage:
//
//	bouncer [serve] [--no-migrate]
//	bouncer migrate
//	bouncer checkin --event ID --owner ID
//
// @title Bouncer API
// @version 1.0
// @description Event RSVPs, ticketing, QR check-in and bulk email for organizers.
// @BasePath /
// @securityDefinitions.apikey SessionCookie
// @in cookie
// @name bouncer_session
package main

import (
	"bufio"
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/pflag"

	"bouncer/config"
	_ "bouncer/docs"
	"bouncer/internal/adapters/auth"
	"bouncer/internal/adapters/email"
	"bouncer/internal/adapters/google"
	"bouncer/internal/adapters/storage"
	"bouncer/internal/autosave"
	"bouncer/internal/checkin"
	"bouncer/internal/clock"
	httpdelivery "bouncer/internal/delivery/http"
	"bouncer/internal/delivery/http/controllers"
	"bouncer/internal/delivery/http/middleware"
	"bouncer/internal/domain"
	"bouncer/internal/repository/postgres"
	"bouncer/internal/services"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := config.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "serve":
		flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
		noMigrate := flags.Bool("no-migrate", false, "skip schema migrations on startup")
		if err := flags.Parse(args); err != nil {
			return err
		}
		return serve(ctx, cfg, logger, !*noMigrate)
	case "migrate":
		db, err := openDB(ctx, cfg.DBUrl)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied")
		return nil
	case "checkin":
		flags := pflag.NewFlagSet("checkin", pflag.ContinueOnError)
		eventID := flags.String("event", "", "event to check guests into")
		ownerID := flags.String("owner", "", "user id of the event owner")
		window := flags.Duration("window", checkin.DisplayWindow, "how long each result stays on screen")
		if err := flags.Parse(args); err != nil {
			return err
		}
		if *eventID == "" || *ownerID == "" {
			return errors.New("checkin: --event and --owner are required")
		}
		return runCheckin(ctx, cfg, logger, *eventID, *ownerID, *window, os.Stdin, os.Stdout)
	default:
		return fmt.Errorf("unknown command %q (want serve, migrate or checkin)", command)
	}
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) error {
	db, err := openDB(ctx, cfg.DBUrl)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to postgres")

	if migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	clk := clock.Real()
	timeout := cfg.RequestTimeout

	// Repositories
	eventRepo := postgres.NewEventRepository(db)
	ticketRepo := postgres.NewTicketRepository(db)
	rsvpRepo := postgres.NewRSVPRepository(db)
	profileRepo := postgres.NewProfileRepository(db)

	var tx domain.TxReserver
	if cfg.ReservationMode == "transaction" {
		tx, _ = rsvpRepo.(domain.TxReserver)
	}

	// Adapters
	tokens := auth.NewJWTIssuer(cfg.JWTSecret)
	sealer, err := auth.NewSecretboxSealer(cfg.TokenEncryptionKey)
	if err != nil {
		return err
	}
	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.EmailProvider,
		FromAddress: cfg.EmailFromAddress,
		FromName:    cfg.EmailFromName,
		SES: email.SESConfig{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretKey,
		},
		MailerSendAPIKey: cfg.MailerSendAPIKey,
	}, logger)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	renderer := email.NewTemplateRenderer()

	googleCfg := google.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	}
	httpClient := &http.Client{Timeout: timeout}

	var (
		store domain.ObjectStore
		files http.Handler
	)
	switch cfg.StorageProvider {
	case "s3":
		store = storage.NewS3Store(storage.S3Config{
			Bucket:          cfg.StorageBucket,
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.StorageEndpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretKey,
		})
	default:
		secret := sha256.Sum256(append([]byte("payment-proofs:"), cfg.TokenEncryptionKey...))
		disk, err := storage.NewDiskStore(cfg.StorageDir, cfg.PublicURL, secret[:])
		if err != nil {
			return err
		}
		store, files = disk, disk
	}

	// Services
	emailService := services.NewEmailService(mailer, renderer, logger)
	eventService := services.NewEventService(eventRepo, ticketRepo, rsvpRepo, clk, timeout)
	draftService := services.NewTicketDraftService(eventService, eventRepo, clk, autosave.DefaultDelay, logger, timeout)
	reservationService := services.NewReservationService(eventRepo, ticketRepo, rsvpRepo, tx, emailService, cfg.PublicURL, clk, logger, timeout)
	proofService := services.NewPaymentProofService(eventRepo, rsvpRepo, store, clk, timeout)
	messagingService := services.NewMessagingService(eventRepo, rsvpRepo, profileRepo,
		google.NewGmailSessions(googleCfg, httpClient), sealer, renderer, logger, timeout)
	authService := services.NewAuthService(
		google.NewIdentityProvider(googleCfg, httpClient),
		google.NewGrantProvider(googleCfg, cfg.GmailRedirectURL, httpClient),
		profileRepo, tokens, tokens, sealer,
		services.AuthConfig{SessionTTL: cfg.SessionTTL, RefreshTTL: cfg.RefreshTTL},
		clk, logger, timeout)
	profileService := services.NewProfileService(profileRepo, eventRepo, rsvpRepo, eventService, logger, timeout)

	// Controllers
	secure := cfg.Environment == "production"
	c := httpdelivery.Controllers{
		Events: controllers.NewEventController(logger, eventService, draftService),
		Guests: controllers.NewGuestController(logger, eventService, proofService),
		RSVPs:  controllers.NewRSVPController(logger, reservationService, proofService),
		Email:  controllers.NewEmailController(logger, messagingService),
		Auth: controllers.NewAuthController(logger, authService, controllers.AuthCookieConfig{
			Secure:     secure,
			SessionTTL: cfg.SessionTTL,
			RefreshTTL: cfg.RefreshTTL,
		}),
		Profile: controllers.NewProfileController(logger, profileService, secure),
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx)

	router := httpdelivery.NewRouter(c, httpdelivery.RouterConfig{
		Logger:         logger,
		Verifier:       tokens,
		Limiter:        limiter,
		AllowedOrigins: cfg.AllowedOrigins,
		ProtectedPaths: cfg.ProtectedPaths,
		Files:          files,
		StaticDir:      cfg.StaticDir,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Environment, "reservation_mode", cfg.ReservationMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// runCheckin reads one scanned payload per line from in and reports each result on out.
func runCheckin(ctx context.Context, cfg *config.Config, logger *slog.Logger, eventID, ownerID string, window time.Duration, in io.Reader, out io.Writer) error {
	db, err := openDB(ctx, cfg.DBUrl)
	if err != nil {
		return err
	}
	defer db.Close()

	events := services.NewEventService(postgres.NewEventRepository(db), postgres.NewTicketRepository(db),
		postgres.NewRSVPRepository(db), clock.Real(), cfg.RequestTimeout)
	guestIDs, err := events.GuestIDs(ctx, eventID, ownerID)
	if err != nil {
		return fmt.Errorf("load guests: %w", err)
	}
	logger.Info("scanner ready", "event_id", eventID, "guests", len(guestIDs))

	scanner := checkin.NewScanner(clock.Real(), guestIDs, window, func(s checkin.State) {
		logger.Debug("scanner state", "state", s)
	})

	lines := bufio.NewScanner(in)
	for lines.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		payload := strings.TrimSpace(lines.Text())
		if payload == "" {
			continue
		}
		scanner.Start()
		res, err := scanner.Scan(payload)
		if errors.Is(err, checkin.ErrBusy) {
			fmt.Fprintln(out, "busy: wait for the previous result to clear")
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%s\n", res.State, res.Payload)
	}
	return lines.Err()
}

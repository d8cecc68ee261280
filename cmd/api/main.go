package main

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BaoThanh22042004/library-api/internal/app"
	"github.com/BaoThanh22042004/library-api/internal/clock"
	"github.com/BaoThanh22042004/library-api/internal/config"
	"github.com/BaoThanh22042004/library-api/internal/notify"
	"github.com/BaoThanh22042004/library-api/internal/storage/postgres"
	transporthttp "github.com/BaoThanh22042004/library-api/internal/transport/http"
	"github.com/BaoThanh22042004/library-api/internal/worker"
	"github.com/BaoThanh22042004/library-api/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := log.Default()
	loadEnvFile(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect to db: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		log.Fatalf("db ping: %v", err)
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	clk := clock.NewSystem()

	authSvc := app.NewAuthService(
		postgres.NewUserRepository(pool),
		clk,
		cfg.JWTSecret,
		app.WithTokenTTLs(cfg.JWTTTL, cfg.ResetTokenTTL, cfg.VerifyTokenTTL),
	)
	catalogSvc := app.NewCatalogService(
		postgres.NewCatalogRepository(pool),
		clk,
		app.WithReplacementFine(cfg.ReplacementFineCents),
	)
	loanSvc := app.NewLoanService(
		postgres.NewLoanRepository(pool),
		clk,
		app.WithLoanPolicy(time.Duration(cfg.LoanPeriodDays)*24*time.Hour, cfg.MaxRenewals, cfg.MaxActiveLoans),
		app.WithFinePolicy(cfg.FineRateCents, cfg.FineCapCents),
		app.WithPickupWindow(cfg.PickupWindow),
	)
	reservationSvc := app.NewReservationService(
		postgres.NewReservationRepository(pool),
		clk,
		app.WithReservationPolicy(cfg.ReservationLimit, cfg.PickupWindow),
	)
	fineSvc := app.NewFineService(postgres.NewFineRepository(pool), clk)
	auditSvc := app.NewAuditService(postgres.NewAuditRepository(pool))

	var sender app.Sender
	if cfg.AMQPURL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("connect to amqp: %v", err)
		}
		defer func() { _ = amqpNotifier.Close() }()
		sender = amqpNotifier
		logger.Printf("notifications publishing to amqp exchange %s", cfg.AMQPExchange)
	} else {
		sender = notify.NewLogNotifier(logger)
		logger.Printf("WARN: AMQP_URL not set, notifications go to the log")
	}
	notificationSvc := app.NewNotificationService(postgres.NewNotificationRepository(pool), clk, sender)

	admin, created, err := authSvc.BootstrapLibrarian(startupCtx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		log.Fatalf("bootstrap librarian: %v", err)
	}
	if created {
		logger.Printf("created librarian account %s", admin.Email)
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	sweeper := worker.NewSweeper(loanSvc, reservationSvc, notificationSvc, authSvc, cfg.SweepInterval, logger)
	go sweeper.Run(sweepCtx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/auth/register", transporthttp.HandleRegister(authSvc))
	mux.Handle("/auth/login", transporthttp.HandleLogin(authSvc))
	mux.Handle("/auth/password-reset", transporthttp.HandlePasswordReset(authSvc))
	mux.Handle("/auth/password-reset/", transporthttp.HandlePasswordReset(authSvc))
	mux.Handle("/auth/verify-email", transporthttp.HandleVerifyEmail(authSvc))
	mux.Handle("/users/", transporthttp.HandlePromote(authSvc))
	mux.Handle("/books", transporthttp.HandleBooks(catalogSvc, catalogSvc))
	mux.Handle("/books/", transporthttp.HandleBook(catalogSvc, catalogSvc))
	mux.Handle("/categories", transporthttp.HandleCategories(catalogSvc))
	mux.Handle("/copies/", transporthttp.HandleCopyCondition(catalogSvc))
	mux.Handle("/loans", transporthttp.HandleLoans(loanSvc))
	mux.Handle("/loans/", loanActionHandler(loanSvc))
	mux.Handle("/reservations", transporthttp.HandleReservations(reservationSvc))
	mux.Handle("/reservations/", transporthttp.HandleReservation(reservationSvc))
	mux.Handle("/fines", transporthttp.HandleFines(fineSvc))
	mux.Handle("/fines/", transporthttp.HandleFineSettle(fineSvc))
	mux.Handle("/members/", transporthttp.HandleMemberFines(fineSvc))
	mux.Handle("/notifications", transporthttp.HandleNotifications(notificationSvc))
	mux.Handle("/notifications/", transporthttp.HandleNotificationRead(notificationSvc))
	mux.Handle("/audit", transporthttp.HandleAudit(auditSvc))
	mux.Handle("/", transporthttp.NotFoundHandler())

	corsOrigins := parseCSV(cfg.CORSOrigins)
	handler := transporthttp.RequestLogger(
		transporthttp.Authenticate(authSvc, transporthttp.CORS(corsOrigins, mux)),
		logger,
	)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	log.Printf("api listening on :%s", cfg.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
	case <-stopCtx.Done():
		log.Printf("shutdown signal received, stopping server")
	}

	stopSweeper()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("server shutdown error: %v", err)
	}
	log.Printf("server stopped")
}

// loanActionHandler routes /loans/{id}/renew and /loans/{id}/return.
func loanActionHandler(svc *app.LoanService) http.Handler {
	renew := transporthttp.HandleLoanRenew(svc)
	ret := transporthttp.HandleLoanReturn(svc)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/return") {
			ret(w, r)
			return
		}
		renew(w, r)
	})
}

func parseCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func loadEnvFile(logger *log.Logger) {
	path, err := findEnvFile()
	if err != nil {
		logger.Printf("WARN: failed to locate .env: %v", err)
		return
	}
	if path == "" {
		return
	}

	file, err := os.Open(path)
	if err != nil {
		logger.Printf("WARN: failed to open %s: %v", path, err)
		return
	}
	if err := parseEnvFile(logger, file); err != nil {
		logger.Printf("WARN: failed to load %s: %v", path, err)
	} else {
		logger.Printf("loaded env from %s", path)
	}
	_ = file.Close()
}

func findEnvFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for i := 0; i < 6; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

func parseEnvFile(logger *log.Logger, file *os.File) error {
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		value = trimQuotes(value)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			logger.Printf("WARN: failed to set %s from env file", key)
		}
	}
	return scanner.Err()
}

func trimQuotes(value string) string {
	if len(value) < 2 {
		return value
	}
	if (value[0] == '"' && value[len(value)-1] == '"') ||
		(value[0] == '\'' && value[len(value)-1] == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"courtside/internal/api"
	"courtside/internal/attendance"
	"courtside/internal/auth"
	"courtside/internal/balance"
	"courtside/internal/config"
	"courtside/internal/logging"
	"courtside/internal/mailer"
	"courtside/internal/memstore"
	"courtside/internal/queue"
	"courtside/internal/reminder"
	"courtside/internal/store"
	"courtside/internal/students"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env)
	defer func() { _ = logger.Sync() }()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

// stores bundles the persistence backends picked by configuration.
type stores struct {
	students   students.Store
	attendance attendance.Store
	accounts   auth.Store
	balance    *balance.Calculator
	health     map[string]api.HealthCheck
	closers    []func() error
}

func run(cfg config.App, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range st.closers {
			_ = c()
		}
	}()

	var redisClient *store.Redis
	if cfg.SessionBackend == "redis" || (cfg.ReminderDelivery == "queue" && cfg.QueueBackend == "redis") {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		st.health["redis"] = redisClient.Healthy
	}

	var sessions attendance.SessionStore
	if cfg.SessionBackend == "redis" {
		sessions = attendance.NewRedisSessionStore(redisClient.Client, "courtside:edit:", cfg.EditSessionTTL)
	} else {
		sessions = attendance.NewMemorySessionStore(cfg.EditSessionTTL)
	}

	mail, err := mailer.New(cfg.MailBackend, cfg.ResendAPIKey, cfg.MailFrom, cfg.MailFunctionURL, logger)
	if err != nil {
		return err
	}

	reminderSender := mail
	if cfg.ReminderDelivery == "queue" {
		var q queue.Queue
		if cfg.QueueBackend == "redis" {
			q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
		} else {
			mem := queue.NewInMemory(64)
			q = mem
			// Nothing outside this process can read an in-memory queue.
			go func() {
				if err := mailer.Run(ctx, mem, mail, logger); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("in-process mail worker stopped", zap.Error(err))
				}
			}()
		}
		reminderSender = mailer.NewQueueSender(q)
	}

	loc := cfg.Location()
	notifier := reminder.NewNotifier(st.students, reminderSender, cfg.ReminderDelivery, logger)
	attendanceSvc := attendance.NewService(st.attendance, sessions, attendance.NewEditor(loc), st.balance, notifier, logger)
	authSvc := auth.NewService(st.accounts, mail, auth.Options{
		Issuer:           cfg.JWTIssuer,
		SigningKey:       cfg.JWTSigningKey,
		AccessTTL:        cfg.AccessTTL,
		RefreshTTL:       cfg.RefreshTTL,
		ResetTTL:         cfg.ResetTTL,
		AllowAdminSignup: cfg.AllowAdminSignup,
		ResetURL:         cfg.ResetURL,
	}, logger)

	router := api.NewRouter(api.Deps{
		Logger:          logger,
		Auth:            authSvc,
		Students:        students.NewService(st.students, logger),
		Attendance:      attendanceSvc,
		Balance:         st.balance,
		SigningKey:      cfg.JWTSigningKey,
		Issuer:          cfg.JWTIssuer,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Production:      cfg.Production(),
		Location:        loc,
		Health:          st.health,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("port", cfg.HTTPPort),
			zap.String("store", cfg.StoreBackend),
			zap.String("sessions", cfg.SessionBackend),
			zap.String("mail", cfg.MailBackend),
			zap.String("reminders", cfg.ReminderDelivery),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}

func openStores(ctx context.Context, cfg config.App, logger *zap.Logger) (*stores, error) {
	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("using in-memory store, data is lost on restart")
		mem := memstore.New()
		return &stores{
			students:   mem,
			attendance: mem,
			accounts:   mem,
			balance:    balance.NewCalculator(mem, mem),
			health:     map[string]api.HealthCheck{},
		}, nil
	case "postgres":
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if cfg.MigrateOnStart {
			if err := store.Migrate(ctx, db.Client, logger); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		studentRepo := students.NewRepository(db.Client)
		attendanceRepo := attendance.NewRepository(db.Client)
		return &stores{
			students:   studentRepo,
			attendance: attendanceRepo,
			accounts:   auth.NewRepository(db.Client),
			balance:    balance.NewCalculator(studentRepo, attendanceRepo),
			health:     map[string]api.HealthCheck{"db": db.Healthy},
			closers:    []func() error{db.Close},
		}, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

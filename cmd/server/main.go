package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/config"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/domain"
	apphttp "github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/http"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/repository/sqlite"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/service"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/storage"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/timer"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if strings.TrimSpace(cfg.Auth.AdminPassword) == "" {
		logger.Fatalf("admin password is required")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	sessionRepo := sqlite.NewSessionRepository(db)
	timerRepo := sqlite.NewTimerRepository(db)

	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}
	if err := sessionRepo.Init(ctx); err != nil {
		logger.Fatalf("init session repository: %v", err)
	}
	if err := timerRepo.Init(ctx); err != nil {
		logger.Fatalf("init timer repository: %v", err)
	}

	userService := service.NewUserService(userRepo)
	sessionService := service.NewSessionService(userRepo, sessionRepo, cfg.Session.DailyLimit)
	timerService := service.NewTimerService(userRepo, timerRepo)

	authService, err := service.NewAuthService(
		cfg.Auth.AdminPassword,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute,
	)
	if err != nil {
		logger.Fatalf("setup auth: %v", err)
	}

	if cfg.Seed.Demo {
		seedDemoUsers(ctx, userService, logger)
	}

	manager := timer.NewManager(timer.Config{
		TickInterval:   time.Duration(cfg.Timer.TickIntervalSeconds) * time.Second,
		GatewayTimeout: time.Duration(cfg.Timer.GatewayTimeoutSeconds) * time.Second,
		Logger:         logger,
	}, sessionService, timerService)

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		userService,
		sessionService,
		timerService,
		authService,
		manager,
		storageSvc,
		storage.ArchiveOptions{
			Bucket:    cfg.Storage.Bucket,
			KeyPrefix: cfg.Storage.KeyPrefix,
		},
		logger,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	manager.Shutdown()

	logger.Info("bye")
}

// buildStorage wires the optional S3 export archive. An empty bucket leaves
// archiving disabled.
func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		logger.Info("export archiving disabled (no storage bucket configured)")
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("archiving exports to s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}

func seedDemoUsers(ctx context.Context, users service.UserService, logger *logrus.Logger) {
	demo := []struct{ name, code string }{
		{"John Doe", "ABCD1234"},
		{"Jane Doe", "EFGH5678"},
	}
	for _, u := range demo {
		if _, err := users.Register(ctx, u.name, u.code); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			logger.Warnf("seed user %s: %v", u.code, err)
			continue
		}
		logger.Infof("seeded demo user %s", u.code)
	}
}

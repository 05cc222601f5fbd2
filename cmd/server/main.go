// Command binqr-server starts the BinQR gRPC API and the web tier.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/binqr/internal/config"
	"github.com/and161185/binqr/internal/limiter"
	"github.com/and161185/binqr/internal/migrate"
	"github.com/and161185/binqr/internal/repository/postgres"
	"github.com/and161185/binqr/internal/rpc"
	grpcserver "github.com/and161185/binqr/internal/server/grpc"
	"github.com/and161185/binqr/internal/server/web"
	"github.com/and161185/binqr/internal/service"
	"github.com/and161185/binqr/internal/telemetry"
	"github.com/and161185/binqr/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations and serves gRPC and HTTP until signalled.
func main() {
	cfg, err := config.Load[config.Server]()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	// Flags override the environment.
	flag.StringVar(&cfg.GRPCAddr, "addr", cfg.GRPCAddr, "gRPC listen address")
	flag.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "web listen address (empty disables)")
	flag.StringVar(&cfg.DSN, "dsn", cfg.DSN, "PostgreSQL DSN")
	flag.StringVar(&cfg.JWTKey, "jwt-key", cfg.JWTKey, "HS256 signing key (required)")
	flag.DurationVar(&cfg.AccessTTL, "access-ttl", cfg.AccessTTL, "access token TTL")
	flag.DurationVar(&cfg.RefreshTTL, "refresh-ttl", cfg.RefreshTTL, "refresh token TTL")
	flag.StringVar(&cfg.TLSCert, "tls-cert", cfg.TLSCert, "TLS certificate (PEM)")
	flag.StringVar(&cfg.TLSKey, "tls-key", cfg.TLSKey, "TLS private key (PEM)")
	flag.StringVar(&cfg.BootstrapCode, "bootstrap-code", cfg.BootstrapCode, "invite code seeded while no account exists")
	flag.BoolVar(&cfg.Dev, "dev", cfg.Dev, "enable server reflection and development logging")
	flag.Parse()

	logger, _ := zap.NewProduction()
	if cfg.Dev {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.GRPCAddr),
		zap.String("httpAddr", cfg.HTTPAddr),
	)

	if err := cfg.Validate(); err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "binqr-server", version, cfg.OTelEndpoint)
	if err != nil {
		logger.Fatal("telemetry", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	sessionRepo := postgres.NewSessionRepo(db)
	inviteRepo := postgres.NewInviteRepo(db)
	locationRepo := postgres.NewLocationRepo(db)
	boxRepo := postgres.NewBoxRepo(db)

	lim := limiter.NewPG(db.Pool, 15*time.Minute, 5, 15*time.Minute)

	// Services
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMailer(service.NewLogMailer(logger, cfg.BaseURL)),
		service.WithRefreshTTL(cfg.RefreshTTL),
		service.WithInviteTTL(cfg.InviteTTL),
		service.WithInitialInvites(cfg.InitialInvites),
	}
	authSvc := service.NewAuthService(userRepo, sessionRepo, token.NewManager([]byte(cfg.JWTKey), cfg.AccessTTL), lim, opts...)
	inviteSvc := service.NewInviteService(inviteRepo, userRepo, opts...)
	locationSvc := service.NewLocationService(locationRepo, opts...)
	boxSvc := service.NewBoxService(boxRepo, locationRepo, opts...)

	if inv, seeded, err := inviteSvc.Bootstrap(ctx, cfg.BootstrapCode); err != nil {
		logger.Fatal("bootstrap invite", zap.Error(err))
	} else if seeded {
		logger.Info("no accounts yet, seeded invite", zap.String("code", inv.Code), zap.Time("expiresAt", inv.ExpiresAt))
	}

	// gRPC server with interceptors
	grpcOpts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.AuthUnary(authSvc),
		),
	}
	if cfg.TLS() {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		grpcOpts = append(grpcOpts, grpc.Creds(creds))
	} else {
		logger.Warn("TLS disabled, serving plaintext")
	}
	s := grpc.NewServer(grpcOpts...)

	// App service
	app := grpcserver.New(authSvc, inviteSvc, locationSvc, boxSvc, logger)
	rpc.RegisterServer(s, app)

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	if cfg.Dev {
		reflection.Register(s)
	}

	// Listen
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening (gRPC)", zap.String("addr", cfg.GRPCAddr), zap.Bool("tls", cfg.TLS()))
		errCh <- s.Serve(lis)
	}()

	var httpSrv *http.Server
	if cfg.HTTPAddr != "" {
		webSrv := web.New(authSvc, inviteSvc, locationSvc, boxSvc,
			web.WithLogger(logger),
			web.WithSecureCookies(cfg.TLS()),
			web.WithRefreshTTL(cfg.RefreshTTL),
		)
		httpSrv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           webSrv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("listening (HTTP)", zap.String("addr", cfg.HTTPAddr))
			var err error
			if cfg.TLS() {
				err = httpSrv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
			} else {
				err = httpSrv.ListenAndServe()
			}
			if !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	// Wait for stop
	select {
	case <-ctx.Done():
		hs.Shutdown()
		if httpSrv != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = httpSrv.Shutdown(sctx)
			cancel()
		}
		// graceful shutdown
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

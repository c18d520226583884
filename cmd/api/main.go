package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"notabene.org/internal/auth"
	"notabene.org/internal/config"
	"notabene.org/internal/httpapi"
	"notabene.org/internal/obs"
	"notabene.org/internal/records"
	"notabene.org/internal/store"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("NOTABENE_CONFIG"), "path to config file (optional, env fallback)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var db *sql.DB
	if cfg.DB.DSN == "" {
		log.Printf("db.dsn is not configured; requests will fail until it is set and /readyz reports not ready")
	} else {
		db, err = sql.Open("pgx", cfg.DB.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
		db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	}

	hasher := auth.NewCredentialHasher()
	signer, err := auth.NewTokenSigner(auth.SignerConfig{
		Secret:     cfg.Auth.Secret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		AccessTTL:  cfg.Auth.AccessTTL(),
		RefreshTTL: cfg.Auth.RefreshTTL(),
	})
	if err != nil {
		log.Fatalf("token signer: %v", err)
	}

	registry, err := auth.DefaultPermissionRegistry()
	if err != nil {
		log.Fatalf("permission registry: %v", err)
	}

	binder := store.NewBinder()
	authUoW := func() auth.UnitOfWork { return store.NewCoordinator(db, binder) }
	recordsUoW := func() records.UnitOfWork { return store.NewCoordinator(db, binder) }

	sessions, err := auth.NewSessionService(hasher, signer, authUoW)
	if err != nil {
		log.Fatalf("session service: %v", err)
	}
	accounts, err := auth.NewAccountService(hasher, registry, authUoW)
	if err != nil {
		log.Fatalf("account service: %v", err)
	}
	recordSvc, err := records.NewService(recordsUoW)
	if err != nil {
		log.Fatalf("record service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, httpapi.Deps{
		Verifier: signer,
		Sessions: sessions,
		Accounts: accounts,
		Records:  recordSvc,
	}, httpapi.Options{
		RateBurst:     cfg.HTTP.RateBurst,
		RatePerSecond: cfg.HTTP.RatePerSecond,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	log.Printf("Starting notabene-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	grpcSrv, healthSrv := httpapi.NewGRPCServer()
	if cfg.GRPC.Address != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Address)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		log.Printf("gRPC health on %s", cfg.GRPC.Address)
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Printf("grpc serve: %v", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	grpcSrv.GracefulStop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

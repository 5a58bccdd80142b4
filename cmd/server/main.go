package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"certledger/internal/anchor"
	certcache "certledger/internal/certificate/cache"
	certhandler "certledger/internal/certificate/handler"
	certmetrics "certledger/internal/certificate/metrics"
	certservice "certledger/internal/certificate/service"
	certstore "certledger/internal/certificate/store"
	issuerhandler "certledger/internal/issuer/handler"
	issuerservice "certledger/internal/issuer/service"
	issuerstore "certledger/internal/issuer/store"
	jwttoken "certledger/internal/jwt_token"
	"certledger/internal/platform/config"
	"certledger/internal/platform/httpserver"
	"certledger/internal/platform/logger"
	platformredis "certledger/internal/platform/redis"
	httptransport "certledger/internal/transport/http"
	audit "certledger/pkg/platform/audit"
	auditpublisher "certledger/pkg/platform/audit/publisher"
	kafkasink "certledger/pkg/platform/audit/sink/kafka"
	auditmemory "certledger/pkg/platform/audit/store/memory"
	auditpostgres "certledger/pkg/platform/audit/store/postgres"
)

// main wires dependencies from config and keeps the server lifecycle
// small. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	// Stores: postgres when configured, in-memory otherwise.
	var (
		issuers    issuerservice.Store
		certs      certservice.Store
		auditStore audit.Store
	)
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		if err := db.PingContext(context.Background()); err != nil {
			log.Error("ping postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		issuers = issuerstore.NewPostgres(db)
		certs = certstore.NewPostgres(db)
		auditStore = auditpostgres.New(db)
	} else {
		log.Warn("no postgres URL configured, using in-memory stores")
		issuers = issuerstore.NewInMemory()
		certs = certstore.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
	}

	// Audit trail: durable store always, Kafka sink when brokers are set.
	publisherOpts := []auditpublisher.Option{auditpublisher.WithLogger(log)}
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := kafkasink.New(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("connect kafka audit sink", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		publisherOpts = append(publisherOpts, auditpublisher.WithSink(sink))
	}
	auditor := auditpublisher.NewPublisher(auditStore, publisherOpts...)
	defer auditor.Close()

	// Anchor ledger backed by a local bbolt file.
	ledger, err := anchor.OpenBolt(cfg.AnchorLedgerPath)
	if err != nil {
		log.Error("open anchor ledger", "path", cfg.AnchorLedgerPath, "error", err)
		os.Exit(1)
	}
	defer ledger.Close()

	issuerSvc := issuerservice.New(issuers,
		issuerservice.WithAuditEmitter(auditor),
		issuerservice.WithLogger(log),
	)

	certOpts := []certservice.Option{
		certservice.WithAuditEmitter(auditor),
		certservice.WithMetrics(certmetrics.New()),
		certservice.WithLogger(log),
	}
	if cfg.RedisURL != "" {
		redisClient, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			log.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		certOpts = append(certOpts,
			certservice.WithVerdictCache(certcache.NewRedis(redisClient.Client, config.VerdictCacheTTL)))
	}
	certSvc := certservice.New(certs, issuerSvc, ledger, certOpts...)

	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, "certledger", "certledger-issuers")

	router := httptransport.NewRouter(httptransport.Deps{
		Issuers:      issuerhandler.New(issuerSvc, certSvc, tokens, log),
		Certificates: certhandler.New(certSvc, ledger, log),
		Tokens:       tokens,
		AdminToken:   cfg.AdminToken,
		Logger:       log,
	})
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting certledger", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

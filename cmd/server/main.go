package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	adminhandler "kycdesk/internal/admin/handler"
	adminservice "kycdesk/internal/admin/service"
	adminstore "kycdesk/internal/admin/store"
	revocation "kycdesk/internal/auth/store/revocation"
	jwttoken "kycdesk/internal/jwt_token"
	kychandler "kycdesk/internal/kyc/handler"
	kycmetrics "kycdesk/internal/kyc/metrics"
	kycservice "kycdesk/internal/kyc/service"
	clientstore "kycdesk/internal/kyc/store/client"
	codestore "kycdesk/internal/kyc/store/code"
	"kycdesk/internal/ledger"
	"kycdesk/internal/ledger/sheets"
	"kycdesk/internal/platform/config"
	"kycdesk/internal/platform/httpserver"
	"kycdesk/internal/platform/logger"
	"kycdesk/internal/platform/metrics"
	"kycdesk/internal/platform/middleware"
	"kycdesk/internal/platform/postgres"
	"kycdesk/internal/platform/redis"
	httptransport "kycdesk/internal/transport/http"
	"kycdesk/internal/upload"
	uploadhandler "kycdesk/internal/upload/handler"
	"kycdesk/internal/upload/sink/drive"
	"kycdesk/internal/upload/sink/local"
	"kycdesk/pkg/platform/middleware/metadata"
)

const housekeepingInterval = 10 * time.Minute

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.Load(slog.Default())
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	codes   kycservice.CodeStore
	clients kycservice.ClientStore
	admins  adminservice.Store
	tx      kycservice.TxRunner
}

type revocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.UsesDevSigningKey() {
		log.Warn("JWT_SIGNING_KEY not set, using development key")
	}

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	st := buildStores(db)

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	trl := buildRevocationList(db, redisClient, log)

	jwt := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)

	pipeline, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}

	kycOpts := []kycservice.Option{
		kycservice.WithLogger(log),
		kycservice.WithMetrics(kycmetrics.New()),
		kycservice.WithRevoker(trl),
		kycservice.WithFolderProvisioner(pipeline),
		kycservice.WithCodeTTL(cfg.Codes.TTL),
		kycservice.WithClientTokenTTL(cfg.Auth.ClientTokenTTL),
		kycservice.WithMaxIssueRetries(cfg.Codes.MaxRetries),
	}
	mirror, err := buildLedger(ctx, cfg, log)
	if err != nil {
		return err
	}
	if mirror != nil {
		kycOpts = append(kycOpts, kycservice.WithLedger(mirror))
	}
	kyc := kycservice.New(st.codes, st.clients, st.tx, jwt, kycOpts...)

	admins := adminservice.New(st.admins, jwt,
		adminservice.WithLogger(log),
		adminservice.WithTokenTTL(cfg.Auth.AdminTokenTTL),
	)
	if err := admins.Bootstrap(ctx, cfg.Bootstrap.Name, cfg.Bootstrap.Email, cfg.Bootstrap.Password); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	trust, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Metrics:        metrics.New(),
		Tokens:         jwttoken.NewJWTServiceAdapter(jwt),
		Revocations:    trl,
		AuthLimiter:    limiter,
		TrustedProxies: trust,
		KYC:            kychandler.New(kyc, log, kychandler.WithCookie(cfg.Auth.ClientTokenTTL, cfg.Auth.CookieSecure)),
		Uploads:        uploadhandler.New(kyc, pipeline, log),
		Admin:          adminhandler.New(admins, log),
		OpsToken:       cfg.Auth.OpsToken,
		HealthChecks:   healthChecks(db, redisClient),
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting kycdesk", "addr", cfg.Server.Addr, "upload_sink", cfg.Upload.Sink)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(housekeepingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				limiter.Sweep()
				if p, ok := trl.(*revocation.PostgresTRL); ok {
					if n, err := p.PurgeExpired(gctx); err != nil {
						log.Warn("failed to purge token revocations", "error", err)
					} else if n > 0 {
						log.Info("purged token revocations", "count", n)
					}
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func openDatabase(ctx context.Context, cfg config.Config, log *slog.Logger) (*sql.DB, error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		return nil, nil
	}
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func buildStores(db *sql.DB) stores {
	if db == nil {
		return stores{
			codes:   codestore.NewInMemory(),
			clients: clientstore.NewInMemory(),
			admins:  adminstore.NewInMemory(),
			tx:      kycservice.NewInMemoryTx(),
		}
	}
	return stores{
		codes:   codestore.NewPostgres(db),
		clients: clientstore.NewPostgres(db),
		admins:  adminstore.NewPostgres(db),
		tx:      newKYCPostgresTx(db),
	}
}

func buildRevocationList(db *sql.DB, client *redis.Client, log *slog.Logger) revocationList {
	switch {
	case client != nil:
		return revocation.NewRedisTRL(client.Client)
	case db != nil:
		return revocation.NewPostgresTRL(db, nil)
	default:
		log.Warn("no redis or database configured, revocations are kept in memory")
		return revocation.NewInMemoryTRL(nil)
	}
}

func googleOptions(cfg config.Google) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(cfg.Scopes...)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return opts
}

func buildPipeline(ctx context.Context, cfg config.Config, log *slog.Logger) (*upload.Pipeline, error) {
	var sink upload.Sink
	switch cfg.Upload.Sink {
	case "drive":
		s, err := drive.New(ctx, cfg.Google.RootFolderID, googleOptions(cfg.Google)...)
		if err != nil {
			return nil, fmt.Errorf("drive sink: %w", err)
		}
		sink = s
	case "local":
		s, err := local.New(cfg.Upload.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("local sink: %w", err)
		}
		sink = s
	default:
		return nil, fmt.Errorf("unknown UPLOAD_SINK %q", cfg.Upload.Sink)
	}

	stager, err := upload.NewStager(cfg.Upload.TmpDir)
	if err != nil {
		return nil, err
	}
	return upload.NewPipeline(sink, stager,
		upload.WithLogger(log),
		upload.WithMetrics(upload.NewMetrics()),
		upload.WithRemoteTimeout(cfg.Upload.RemoteCallTimeout),
	), nil
}

func buildLedger(ctx context.Context, cfg config.Config, log *slog.Logger) (*ledger.Mirror, error) {
	if cfg.Ledger.SpreadsheetID == "" {
		log.Warn("LEDGER_SPREADSHEET_ID not set, status ledger disabled")
		return nil, nil
	}
	backend, err := sheets.New(ctx, cfg.Ledger.SpreadsheetID, cfg.Ledger.SheetName, googleOptions(cfg.Google)...)
	if err != nil {
		return nil, fmt.Errorf("sheets ledger: %w", err)
	}
	return ledger.NewMirror(backend,
		ledger.WithTimeout(cfg.Ledger.Timeout),
		ledger.WithLogger(log),
	), nil
}

func healthChecks(db *sql.DB, client *redis.Client) map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if client != nil {
		checks["redis"] = client.Health
	}
	return checks
}

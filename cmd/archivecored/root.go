package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"archivecore.io/core/internal/archive"
	"archivecore.io/core/internal/authcore"
	"archivecore.io/core/internal/config"
	"archivecore.io/core/internal/domain"
	"archivecore.io/core/internal/hooks"
	"archivecore.io/core/internal/hooks/queue"
	"archivecore.io/core/internal/httpapi"
	"archivecore.io/core/internal/merge"
	"archivecore.io/core/internal/metadb"
	"archivecore.io/core/internal/obs"
	"archivecore.io/core/internal/qcqueue"
	"archivecore.io/core/internal/ratelimit"
	"archivecore.io/core/internal/storage"
	"archivecore.io/core/internal/storage/fsbackend"
	"archivecore.io/core/internal/storage/s3backend"
)

// version is stamped at link time via -ldflags; left as a plain
// default here since the module carries no build-info wiring of its
// own yet.
var version = "dev"

var cfgFile string

// dirtyDrainInterval and auditCleanupInterval pace the two background
// sweeps that have no dedicated config knob of their own; the session
// sweep's interval comes from cfg.Sessions.CleanupIntervalHours and
// the audit sweep's retention window from cfg.Audit.RetentionDays.
const (
	dirtyDrainInterval   = time.Minute
	auditCleanupInterval = 24 * time.Hour
)

// RootCmd is the archivecored entrypoint: it loads configuration, wires
// every subsystem in dependency order, and serves the HTTP API until a
// shutdown signal arrives (§9 "Global singletons").
var RootCmd = &cobra.Command{
	Use:   "archivecored",
	Short: "Serves the scanned-document archive's routing, QC, and storage API",
	Run:   runServer,
}

func init() {
	RootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default: ./archivecore.yaml or $HOME/archivecore.yaml)")
	RootCmd.Flags().String("server.host", "", "HTTP bind address")
	RootCmd.Flags().Int("server.port", 0, "HTTP port")
	RootCmd.Flags().String("storage.backend", "", "object storage backend: local|s3")
	RootCmd.Flags().String("storage.local_path", "", "local filesystem storage root")
	RootCmd.Flags().String("storage.bucket", "", "S3 bucket name")
	RootCmd.Flags().String("storage.endpoint", "", "S3-compatible endpoint URL")
	RootCmd.Flags().String("db.host", "", "metadata database host")
	RootCmd.Flags().Int("db.port", 0, "metadata database port")
	RootCmd.Flags().String("db.name", "", "metadata database name")
	RootCmd.Flags().String("redis.url", "", "Redis connection URL for rate limiting")
	RootCmd.Flags().Bool("encryption.enabled", false, "encrypt stored object payloads at rest")
	RootCmd.Flags().String("encryption.key_file", "", "path to the 32-byte AES-256 master key file")
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runServer(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cmd.Flags(), cfgFile)
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	obs.Configure(obs.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logger := obs.New(obs.Logger)

	backend, err := buildStorageBackend(cmd.Context(), cfg)
	if err != nil {
		log.Fatalf("initialize storage backend: %v", err)
	}
	if cfg.Encryption.Enabled {
		backend, err = wrapEncrypted(backend, cfg.Encryption.KeyFile)
		if err != nil {
			log.Fatalf("initialize encryption at rest: %v", err)
		}
	}

	db, err := metadb.Open(metadb.Config{
		Host:           cfg.DB.Host,
		Port:           cfg.DB.Port,
		Name:           cfg.DB.Name,
		User:           cfg.DB.User,
		Password:       cfg.DB.Password,
		MinConnections: cfg.DB.MinConnections,
		MaxConnections: cfg.DB.MaxConnections,
	})
	if err != nil {
		log.Fatalf("connect to metadata database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		log.Fatalf("migrate metadata database: %v", err)
	}

	organiser := archive.New(backend, db, logger.WithField("component", "archive"))
	merger := merge.New(backend, organiser, logger.WithField("component", "merge"))

	qcLogPath := filepath.Join(filepath.Dir(cfg.Storage.LocalPath), "qc_queue.jsonl")
	qcFeedbackDir := filepath.Join(filepath.Dir(cfg.Storage.LocalPath), "feedback")
	qcQueue, err := qcqueue.Open(qcLogPath, qcFeedbackDir)
	if err != nil {
		log.Fatalf("open QC queue: %v", err)
	}

	sessions := authcore.NewSessionStore()
	authSvc := authcore.New(db, sessions, db, logger.WithField("component", "authcore"))

	dropPolicy := queue.Block
	if cfg.Hooks.Async {
		dropPolicy = queue.DropNewest
	}
	deliverers := map[domain.HookType]hooks.Deliverer{
		domain.HookWebhook:  hooks.WebhookDeliverer{},
		domain.HookCallback: hooks.CallbackDeliverer{Handlers: map[string]hooks.CallbackFunc{}},
		domain.HookFileLog:  hooks.NewFileLogDeliverer(),
	}
	dispatcher := hooks.New(deliverers, db, logger.WithField("component", "hooks"), cfg.Hooks.QueueSize, dropPolicy)

	var loginLimiter *ratelimit.LoginLimiter
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("parse redis url: %v", err)
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(cmd.Context()).Err(); err != nil {
			log.Fatalf("connect to redis: %v", err)
		}
		loginLimiter = ratelimit.NewLoginLimiter(redisClient)
	}
	backstop := ratelimit.NewBackstop(50, 100)

	srv := httpapi.NewServer(cfg, authSvc, qcQueue, organiser, merger, backend, db, dispatcher, loginLimiter, backstop, version)

	serverConfig := httpapi.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port

	maintCtx, cancelMaint := context.WithCancel(context.Background())
	sessions.StartSweeper(maintCtx, time.Duration(cfg.Sessions.CleanupIntervalHours)*time.Hour)
	startDirtyDrainer(maintCtx, organiser, logger.WithField("component", "archive"))
	startAuditCleanup(maintCtx, db, cfg.Audit.RetentionDays, logger.WithField("component", "metadb"))

	go func() {
		if err := httpapi.StartServer(srv.Echo(), serverConfig); err != nil && err != http.ErrServerClosed {
			log.Fatalf("start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	obs.Logger.Info("shutting down archivecored")
	cancelMaint()
	if err := httpapi.GracefulShutdown(srv.Echo(), 10*time.Second); err != nil {
		obs.Logger.WithError(err).Error("graceful shutdown failed")
	}
	dispatcher.Shutdown()
	if err := db.Close(); err != nil {
		obs.Logger.WithError(err).Error("close metadata database")
	}
}

// startDirtyDrainer periodically retries indexing pages that fell out
// of sync with the structured index, closing the gap left by a failed
// UpsertObject when a page is stored (§4.3).
func startDirtyDrainer(ctx context.Context, organiser *archive.Organiser, logger *obs.ContextLogger) {
	ticker := time.NewTicker(dirtyDrainInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := organiser.DrainDirty(ctx); n > 0 {
					logger.WithField("recovered", n).Info("drained dirty index entries")
				}
			}
		}
	}()
}

// startAuditCleanup periodically deletes audit rows older than
// retentionDays (§4.6 Audit retention).
func startAuditCleanup(ctx context.Context, db *metadb.DB, retentionDays int, logger *obs.ContextLogger) {
	ticker := time.NewTicker(auditCleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.CleanupExpiredAudit(retentionDays); err != nil {
					logger.WithError(err).Error("cleanup expired audit rows")
				}
			}
		}
	}()
}

// buildStorageBackend constructs the local filesystem or S3-compatible
// backend named by cfg.Storage.Backend.
func buildStorageBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return buildS3Backend(ctx, cfg)
	default:
		return fsbackend.New(cfg.Storage.LocalPath, cfg.Storage.MaxVersionsPerObject)
	}
}

func buildS3Backend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Storage.Region),
	}
	if cfg.Storage.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Storage.AccessKey, cfg.Storage.SecretKey, "")))
	}
	if cfg.Storage.Endpoint != "" {
		endpoint := cfg.Storage.Endpoint
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: endpoint, SigningRegion: region, HostnameImmutable: true}, nil
			})))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.Storage.Endpoint != ""
	})

	return s3backend.New(client, cfg.Storage.Bucket), nil
}

// wrapEncrypted decorates backend with AES-256-GCM encryption keyed by
// the master key at keyFile, per §4.6 Encryption at rest.
func wrapEncrypted(backend storage.Backend, keyFile string) (storage.Backend, error) {
	key, err := authcore.LoadMasterKey(keyFile)
	if err != nil {
		return nil, fmt.Errorf("load master key: %w", err)
	}
	cipher, err := authcore.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("build cipher: %w", err)
	}
	return storage.NewEncrypted(backend, cipher), nil
}

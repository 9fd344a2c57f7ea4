package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-email-queue/app/lock"
	"github.com/vibast-solutions/ms-go-email-queue/app/preparer"
	"github.com/vibast-solutions/ms-go-email-queue/app/provider"
	"github.com/vibast-solutions/ms-go-email-queue/app/queue"
	"github.com/vibast-solutions/ms-go-email-queue/app/repository"
	"github.com/vibast-solutions/ms-go-email-queue/app/service"
	"github.com/vibast-solutions/ms-go-email-queue/config"
)

// deps bundles the wired components shared by the serve, worker, and admin
// commands.
type deps struct {
	cfg       *config.Config
	log       *logrus.Logger
	db        *sql.DB
	rdb       *redis.Client
	repo      *repository.EmailQueueRepository
	processor *queue.Processor
	emails    *service.EmailQueueService
}

// close releases held connections.
func (d *deps) close() {
	if d.rdb != nil {
		_ = d.rdb.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
}

// buildDeps loads configuration and wires the store, provider, processor, and
// service. withProcessor controls whether a background processor (and its
// wake hook) is constructed.
func buildDeps(withProcessor bool) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	log := logrus.New()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MySQLMaxOpen)
	db.SetMaxIdleConns(cfg.MySQLMaxIdle)
	db.SetConnMaxLifetime(cfg.MySQLMaxLife)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	d := &deps{cfg: cfg, log: log, db: db}

	locker, err := buildLocker(cfg, d)
	if err != nil {
		d.close()
		return nil, err
	}

	emailProvider, err := buildEmailProvider(cfg)
	if err != nil {
		d.close()
		return nil, fmt.Errorf("build email provider: %w", err)
	}

	d.repo = repository.NewEmailQueueRepository(db)

	var waker service.Waker
	if withProcessor {
		d.processor = queue.NewProcessor(d.repo, emailProvider, queue.Options{
			BatchSize:    cfg.QueueBatchSize,
			PollInterval: cfg.QueuePollInterval,
			SendTimeout:  cfg.QueueSendTimeout,
			Locker:       locker,
			Logger:       log,
		})
		waker = d.processor
	}

	d.emails = service.NewEmailQueueService(d.repo, emailProvider, waker, log)
	return d, nil
}

// buildLocker picks the cross-process run guard backend; "none" disables it.
func buildLocker(cfg *config.Config, d *deps) (lock.Locker, error) {
	switch strings.ToLower(cfg.LockBackend) {
	case "", "none":
		return nil, nil
	case "mysql":
		return lock.NewMySQLLocker(d.db), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		d.rdb = rdb
		return lock.NewRedisLocker(rdb), nil
	default:
		return nil, fmt.Errorf("unsupported QUEUE_LOCK_BACKEND: %s", cfg.LockBackend)
	}
}

func buildEmailProvider(cfg *config.Config) (provider.EmailProvider, error) {
	switch strings.ToLower(cfg.EmailProvider) {
	case "", "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, err
		}
		prep := preparer.NewChain(preparer.NewMIMEPreparer())
		return provider.NewSESProvider(awsCfg, prep, cfg.SESSourceEmail), nil
	case "noop":
		return provider.NewNoopProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported EMAIL_PROVIDER: %s", cfg.EmailProvider)
	}
}

package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"docchat/internal/app"
	"docchat/internal/cache"
	"docchat/internal/config"
	"docchat/internal/indexsvc"
	"docchat/internal/model"
	"docchat/internal/objectstore"
	"docchat/internal/pkg/pdfcheck"
	minioClient "docchat/internal/platform/minio"
	mysqlClient "docchat/internal/platform/mysql"
	rabbitmqClient "docchat/internal/platform/rabbitmq"
	redisClient "docchat/internal/platform/redis"
	"docchat/internal/repository"
	"docchat/internal/worker"
)

type App struct {
	Config *config.Config

	Store     *objectstore.MinioStore
	Index     *indexsvc.Client
	Documents *app.DocumentService
	Chat      *app.ChatService
	Reports   *repository.InconsistencyRepository

	MySQL           *gorm.DB
	Redis           *redis.Client
	MQConn          *amqp.Connection
	LifecycleWorker *worker.LifecycleWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	a := &App{Config: cfg, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	minioCli, err := minioClient.New(ctx, minioClient.Options{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		return err
	}
	a.Store = objectstore.NewMinioStore(minioCli, cfg.MinIO.Bucket)

	a.Index = indexsvc.NewClient(indexsvc.Config{
		BaseURL:    cfg.Index.BaseURL,
		IndexPath:  cfg.Index.IndexPath,
		DeletePath: cfg.Index.DeletePath,
		QueryPath:  cfg.Index.QueryPath,
		Timeout:    cfg.IndexTimeout(),
	})

	var locker app.NameLocker = app.NewMemoryLocker()
	if cfg.Lock.Backend == "redis" {
		a.Redis, err = redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		locker = cache.NewNameLock(a.Redis, cfg.LockTTL())
	}

	var events app.EventPublisher
	if cfg.Events.Enabled {
		a.MySQL, err = mysqlClient.New(ctx, cfg.MySQLDSN())
		if err != nil {
			return err
		}
		if err := a.MySQL.AutoMigrate(&model.InconsistencyReport{}); err != nil {
			return fmt.Errorf("auto migrate tables failed: %w", err)
		}
		a.Reports = repository.NewInconsistencyRepository(a.MySQL)

		a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.LifecycleQueue)
		if err != nil {
			return err
		}
		a.LifecycleWorker = worker.NewLifecycleWorker(a.MQConn, a.Reports, cfg.RabbitMQ.LifecycleQueue)
		if err := a.LifecycleWorker.Start(ctx); err != nil {
			return fmt.Errorf("start lifecycle worker failed: %w", err)
		}
		events = rabbitmqClient.NewEventPublisher(a.MQConn, cfg.RabbitMQ.LifecycleQueue)
	}

	strict := cfg.Upload.StrictPDF
	a.Documents = app.NewDocumentService(a.Store, a.Index, app.DocumentServiceOptions{
		Validate: func(name string, content []byte) error {
			return pdfcheck.Validate(name, content, strict)
		},
		MaxBytes: cfg.Upload.MaxBytes,
		Locker:   locker,
		LockWait: cfg.LockWait(),
		Events:   events,
	})
	a.Chat = app.NewChatService(a.Documents)

	if _, err := a.Documents.Refresh(ctx); err != nil {
		log.Printf("initial document refresh failed: %v", err)
	}
	return nil
}

// Health pings every configured dependency. A nil value means healthy.
func (a *App) Health(ctx context.Context) map[string]error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := map[string]error{"minio": a.Store.Ping(checkCtx)}
	if a.Redis != nil {
		status["redis"] = a.Redis.Ping(checkCtx).Err()
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			err = sqlDB.PingContext(checkCtx)
		}
		status["mysql"] = err
	}
	if a.MQConn != nil {
		if a.MQConn.IsClosed() {
			status["rabbitmq"] = amqp.ErrClosed
		} else {
			status["rabbitmq"] = nil
		}
	}
	return status
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.LifecycleWorker != nil {
		a.LifecycleWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}

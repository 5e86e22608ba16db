package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"demand-foresight/internal/ai"
	"demand-foresight/internal/app"
	"demand-foresight/internal/cache"
	"demand-foresight/internal/config"
	"demand-foresight/internal/cost"
	"demand-foresight/internal/logging"
	"demand-foresight/internal/metrics"
	"demand-foresight/internal/pkg/pdfextract"
	mysqlClient "demand-foresight/internal/platform/mysql"
	qdrantClient "demand-foresight/internal/platform/qdrant"
	rabbitmqClient "demand-foresight/internal/platform/rabbitmq"
	redisClient "demand-foresight/internal/platform/redis"
	"demand-foresight/internal/repository"
	"demand-foresight/internal/task"
	"demand-foresight/internal/vectorindex"
	"demand-foresight/internal/worker"
)

type Services struct {
	Auth      *app.AuthService
	Documents *app.DocumentService
	Tags      *app.TagService
	Sharing   *app.SharingService
	Chat      *app.ChatService
	Usage     *app.UsageService
}

type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	MySQL   *gorm.DB
	Redis   *redis.Client
	MQConn  *amqp.Connection
	Qdrant  *qdrant.Client
	Metrics *metrics.Metrics

	Sessions repository.SessionSource
	Services Services

	consumers []*worker.Consumer
	StartedAt time.Time
}

// New connects every dependency, builds the services and starts the queue
// consumers. On error whatever was opened is closed again.
func New(ctx context.Context) (_ *App, err error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New(), StartedAt: time.Now()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.MySQL, err = OpenStore(ctx, cfg); err != nil {
		return nil, err
	}
	if a.Redis, err = redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		return nil, err
	}
	if a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL); err != nil {
		return nil, err
	}
	if a.Qdrant, err = qdrantClient.New(ctx, qdrantClient.Options{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		APIKey:     cfg.Qdrant.APIKey,
		UseTLS:     cfg.Qdrant.UseTLS,
		Collection: cfg.Qdrant.Collection,
		VectorSize: cfg.Qdrant.VectorSize,
	}); err != nil {
		return nil, err
	}

	a.wire()

	if err = a.Services.Auth.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		return nil, err
	}
	if err = a.startConsumers(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// OpenStore connects to MySQL and migrates the schema.
func OpenStore(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	db, err := mysqlClient.New(ctx, cfg.MySQLDSN(), cfg.App.Env == "dev")
	if err != nil {
		return nil, err
	}
	if err := repository.AutoMigrate(db); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return db, nil
}

func (a *App) wire() {
	cfg := a.Config

	users := repository.NewUserRepository(a.MySQL)
	documents := repository.NewDocumentRepository(a.MySQL)
	grants := repository.NewGrantRepository(a.MySQL)
	tags := repository.NewTagRepository(a.MySQL)
	messages := repository.NewMessageRepository(a.MySQL)
	costs := repository.NewCostRepository(a.MySQL)
	a.Sessions = repository.SessionSource{Documents: documents, Grants: grants, Tags: tags}

	llm := ai.NewOpenAICompatibleClient(ai.Config{BaseURL: cfg.LLM.BaseURL, APIKey: cfg.LLM.APIKey})
	index := vectorindex.New(a.Qdrant, cfg.Qdrant.Collection)
	historyCache := cache.NewHistoryCache(
		a.Redis,
		time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	tasks := task.NewRegistry(
		task.NewRedisStore(a.Redis, time.Duration(cfg.Redis.TaskTTLSeconds)*time.Second),
		rabbitmqClient.NewPublisher(a.MQConn, cfg.RabbitMQ.SummaryQueue),
	)

	usage := app.NewUsageService(costs, cost.DefaultPrices, a.Metrics, a.Logger)
	a.Services = Services{
		Auth: app.NewAuthService(
			users,
			cfg.Auth.JWTSecret,
			time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
			cfg.Auth.FrontendURL,
			a.Logger,
		),
		Documents: app.NewDocumentService(documents, index, llm, usage, tasks, pdfextract.ExtractPages, a.Metrics, a.Logger, app.DocumentServiceConfig{
			EmbeddingModel: cfg.LLM.EmbeddingModel,
			SummaryModel:   cfg.LLM.SummaryModel,
		}),
		Tags:    app.NewTagService(tags),
		Sharing: app.NewSharingService(grants, users),
		Chat: app.NewChatService(
			messages,
			historyCache,
			rabbitmqClient.NewPublisher(a.MQConn, cfg.RabbitMQ.MessagePersistQueue),
			index,
			llm,
			usage,
			a.Metrics,
			a.Logger,
			app.ChatConfig{
				Models:         cfg.LLM.Models,
				TitleModel:     cfg.LLM.TitleModel,
				EmbeddingModel: cfg.LLM.EmbeddingModel,
				Temperature:    cfg.LLM.Temperature,
				TopK:           cfg.LLM.TopK,
				MaxContext:     cfg.LLM.MaxContextMessage,
			},
		),
		Usage: usage,
	}

	persist := worker.NewMessagePersistWorker(messages, historyCache, a.Logger)
	summary := worker.NewSummaryWorker(a.Services.Documents, tasks, a.Logger)
	a.consumers = []*worker.Consumer{
		worker.NewConsumer(a.MQConn, cfg.RabbitMQ.MessagePersistQueue, persist.Handle, a.Logger),
		worker.NewConsumer(a.MQConn, cfg.RabbitMQ.SummaryQueue, summary.Handle, a.Logger),
	}
}

func (a *App) startConsumers(ctx context.Context) error {
	for _, c := range a.consumers {
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("start worker failed: %w", err)
		}
	}
	return nil
}

// Probes reports the dependencies /healthz checks.
func (a *App) Probes() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"mysql":    func(ctx context.Context) error { return mysqlClient.Ping(ctx, a.MySQL) },
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx, a.Redis) },
		"rabbitmq": func(ctx context.Context) error { return rabbitmqClient.Ping(ctx, a.MQConn) },
		"qdrant":   func(ctx context.Context) error { return qdrantClient.Ping(ctx, a.Qdrant) },
	}
}

func (a *App) Close() error {
	var closeErr error
	for _, c := range a.consumers {
		c.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Qdrant != nil {
		if err := a.Qdrant.Close(); err != nil {
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
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return closeErr
}


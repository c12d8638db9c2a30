package main

import (
	"context"

	"marketplace-core/internal/chain"
	"marketplace-core/internal/chain/evm"
	"marketplace-core/internal/handler"
	"marketplace-core/internal/model"
	"marketplace-core/internal/repo"
	"marketplace-core/internal/server"
	"marketplace-core/internal/service"
	"marketplace-core/internal/service/mq"
	"marketplace-core/internal/worker"
	"marketplace-core/internal/worker/tasks"
	"marketplace-core/pkg/cache"
	"marketplace-core/pkg/config"
	"marketplace-core/pkg/database"
	"marketplace-core/pkg/logger"
	"marketplace-core/pkg/monitor"
	"marketplace-core/pkg/utils/lock"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	// 0. 初始化 Config
	config.Init()
	cfg := config.Global

	// 1. 初始化 Logger
	logger.Init(cfg.App.Env)
	defer logger.Sync()

	// 2. 连接数据库
	db, err := database.Open(cfg.DB, cfg.App.Env == "development")
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 3. 执行数据库迁移 (仅开发环境)
	if cfg.App.Env == "development" {
		logger.Info("开发环境: 尝试自动迁移 Schema (GORM AutoMigrate)...")
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("数据库自动迁移失败", zap.Error(err))
		}
	} else {
		logger.Info("生产环境: 跳过 AutoMigrate，请使用 migrate 工具管理 Schema")
	}

	// 4. 连接 Redis
	rdb, err := database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}
	locker := lock.NewRedisLock(rdb)

	// 5. 监控
	monitor.Init()

	// 6. 链客户端
	aggregates := repo.NewAggregateRepo(db)
	scopes := repo.NewScopeRepo(db)
	registry := chain.NewRegistry()
	watched := evm.CachedAddressSource(cache.NewRedisCache(rdb, "market:"), cfg.Reconcile.WatchCacheTTL,
		func(ctx context.Context, network chain.Network) ([]string, error) {
			return aggregates.ListContractAddresses(ctx, network.ScopeID)
		})
	closeChains := evm.RegisterChains(registry, cfg.Chains, watched)
	defer closeChains()

	// 7. 业务服务
	txService := service.NewTransactionService(aggregates)
	engine := service.NewReconcileService(aggregates, scopes, registry, cfg.Reconcile.Lookback)

	// 8. 初始化消息队列
	var producer mq.Producer
	if cfg.Redis.MQType == "kafka" {
		logger.Info("使用 Kafka 作为消息队列...", zap.Strings("brokers", cfg.Kafka.Brokers))
		producer = mq.NewKafkaProducer(cfg.Kafka.Brokers)
	} else {
		logger.Info("使用 Redis Streams 作为消息队列...")
		producer = mq.NewRedisProducer(rdb, 10000)
	}
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 9. 启动消息中继服务
	relay := service.NewRelayService(db, producer, cfg.Reconcile.RelayInterval)
	go relay.Start(ctx)

	// 10. Asynq worker 与定时调度
	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	jobs := worker.NewClient(redisOpt, cfg.Reconcile.MaxRetry, cfg.Reconcile.LockTTL)
	defer jobs.Close()

	workerServer := worker.NewServer(redisOpt, cfg.Reconcile.Concurrency,
		tasks.NewReconcileHandler(engine, locker, cfg.Reconcile.LockTTL))
	workerServer.Start()

	cronService := service.NewCronService(cfg.Reconcile.Cron, locker, cfg.Reconcile.LockTTL, scopes, jobs)
	if err := cronService.Start(); err != nil {
		logger.Fatal("定时任务启动失败", zap.Error(err))
	}

	// 11. HTTP + gRPC
	r := server.NewHTTPRouter(handler.NewTransactionHandler(txService), handler.NewScopeHandler(scopes, jobs))
	grpcServer, healthServer := server.NewGRPCServer()

	app, err := server.New(server.Config{HttpPort: cfg.App.HttpPort, GrpcPort: cfg.App.GrpcPort}, r, grpcServer, healthServer)
	if err != nil {
		logger.Fatal("应用启动失败", zap.Error(err))
	}

	// 停机顺序: 先停调度, 再停 worker, 最后停中继
	app.OnShutdown(cronService.Stop)
	app.OnShutdown(workerServer.Stop)
	app.OnShutdown(cancel)

	// 运行 (阻塞)
	app.Run(ctx)

	// 12. 退出后资源清理
	logger.Info("正在关闭数据库连接...")
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	rdb.Close()
	logger.Info("系统已退出")
}

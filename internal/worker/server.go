package worker

import (
	"marketplace-core/internal/worker/tasks"
	"marketplace-core/pkg/logger"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Server 封装 Asynq Server (Worker)
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewServer 初始化 Worker Server
func NewServer(opt asynq.RedisConnOpt, concurrency int, reconcile *tasks.ReconcileHandler) *Server {
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			tasks.QueueCritical: 6,
			"default":           3,
			"low":               1,
		},
		Logger: logger.NewAsynqLogger(),
	})

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeReconcileScope, reconcile)

	return &Server{server: srv, mux: mux}
}

// Start 非阻塞启动
func (s *Server) Start() {
	go func() {
		if err := s.server.Run(s.mux); err != nil {
			logger.Fatal("Worker Server failed", zap.Error(err))
		}
	}()
	logger.Info("Worker Server started")
}

// Stop 停止 Worker
func (s *Server) Stop() {
	s.server.Stop()
	s.server.Shutdown()
}

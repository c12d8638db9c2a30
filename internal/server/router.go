package server

import (
	"marketplace-core/internal/handler"
	"marketplace-core/internal/model"
	"marketplace-core/pkg/monitor"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(transactions *handler.TransactionHandler, scopes *handler.ScopeHandler) *gin.Engine {
	// 0. 初始化监控指标
	monitor.Init()

	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		transactions.Register(api.Group("/marketplaces"), model.KindMarketplace)
		transactions.Register(api.Group("/orders"), model.KindOrder)
		transactions.Register(api.Group("/payouts"), model.KindPayout)

		if scopes != nil {
			scopes.Register(api.Group("/scopes"))
		}
	}

	return r
}

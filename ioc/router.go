package ioc

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kevgir/internal/app"
	"kevgir/internal/router"
)

// InitReconcileHandler 构建对账 HTTP 处理器。
func InitReconcileHandler(svc *app.Service, logger *zap.Logger) *router.ReconcileHandler {
	return router.NewReconcileHandler(svc, logger)
}

// InitGinEngine 构建 gin 引擎。
func InitGinEngine(handler *router.ReconcileHandler) *gin.Engine {
	return router.NewEngine(handler)
}

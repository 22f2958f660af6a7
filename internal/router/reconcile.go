package router

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kevgir/internal/catalog"
	"kevgir/internal/domain"
	"kevgir/internal/pipeline"
)

// Reconciler 是 HTTP 层需要的对账能力。
type Reconciler interface {
	Reconcile(ctx context.Context, branch string) (pipeline.Report, error)
	Keys(ctx context.Context, branch string) (catalog.Result, error)
}

// ReconcileHandler 负责对账相关的 HTTP 请求。
type ReconcileHandler struct {
	svc    Reconciler
	logger *zap.Logger
}

// NewReconcileHandler 构建一个新的 ReconcileHandler。
func NewReconcileHandler(svc Reconciler, logger *zap.Logger) *ReconcileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileHandler{svc: svc, logger: logger}
}

// RegisterRoutes 将对账路由注册到给定的路由组。
func (h *ReconcileHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/reconcile/:branch", h.handleReconcile)
	rg.GET("/keys/:branch", h.handleKeys)
}

type reconcileResponse struct {
	Report    pipeline.Report `json:"report"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
}

type keysResponse struct {
	Branch  string                  `json:"branch"`
	Keys    []domain.RestaurantKey  `json:"keys"`
	Skipped []catalog.RowParseError `json:"skipped"`
}

func (h *ReconcileHandler) handleReconcile(c *gin.Context) {
	branch := strings.TrimSpace(c.Param("branch"))
	if branch == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "branch is required"})
		return
	}
	report, err := h.svc.Reconcile(c.Request.Context(), branch)
	if err != nil {
		h.logger.Error("reconcile failed", zap.String("branch", branch), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reconcileResponse{Report: report, Succeeded: report.Succeeded(), Failed: report.Failed()})
}

func (h *ReconcileHandler) handleKeys(c *gin.Context) {
	branch := strings.TrimSpace(c.Param("branch"))
	result, err := h.svc.Keys(c.Request.Context(), branch)
	if err != nil {
		h.logger.Error("list keys failed", zap.String("branch", branch), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	keys := result.Keys
	if keys == nil {
		keys = []domain.RestaurantKey{}
	}
	skipped := result.Skipped
	if skipped == nil {
		skipped = []catalog.RowParseError{}
	}
	c.JSON(http.StatusOK, keysResponse{Branch: branch, Keys: keys, Skipped: skipped})
}

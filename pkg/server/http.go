package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kevgir/internal/app"
	"kevgir/internal/job"
)

// HTTPServer 封装 HTTP 服务运行所需的依赖。
type HTTPServer struct {
	Engine  *gin.Engine
	Logger  *zap.Logger
	Config  app.Config
	Service *app.Service
	Job     *job.Scheduler
}

// NewHTTPServer 构建 HTTPServer。
func NewHTTPServer(engine *gin.Engine, logger *zap.Logger, cfg app.Config, svc *app.Service, scheduler *job.Scheduler) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPServer{
		Engine:  engine,
		Logger:  logger,
		Config:  cfg,
		Service: svc,
		Job:     scheduler,
	}
}

// Run 启动 HTTP 服务及定时任务，ctx 结束时优雅退出。
func (s *HTTPServer) Run(ctx context.Context) error {
	listen := strings.TrimSpace(s.Config.HTTP.Listen)
	if listen == "" {
		listen = ":8080"
	}

	if s.Job != nil {
		cancelJob := s.Job.Start(ctx)
		defer cancelJob()
	}

	if s.Config.Sync.InitialResync && (s.Job != nil || s.Service != nil) {
		go s.initialRun(ctx)
	} else {
		s.Logger.Info("initial reconcile skipped by configuration")
	}

	srv := &http.Server{Addr: listen, Handler: s.Engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("http server starting", zap.String("listen", listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// initialRun 启动时补跑一轮。有调度器时经由 RunOnce，与 cron 触发的运行共用互斥，返回是否真正执行。
func (s *HTTPServer) initialRun(ctx context.Context) bool {
	if s.Job != nil {
		return s.Job.RunOnce()
	}
	if s.Service == nil {
		return false
	}
	if err := s.Service.RunBranches(ctx); err != nil {
		s.Logger.Error("initial reconcile failed", zap.Error(err))
		return true
	}
	s.Logger.Info("initial reconcile completed")
	return true
}

// Shutdown 释放资源。
func (s *HTTPServer) Shutdown() {
	if s.Service != nil {
		s.Service.Close()
	}
	_ = s.Logger.Sync()
}

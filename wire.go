//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"kevgir/ioc"
	"kevgir/pkg/server"
)

func InitApp(ctx context.Context) (*server.HTTPServer, func(), error) {
	panic(wire.Build(
		ioc.InitConfig,
		ioc.InitLogger,
		ioc.InitTokenSource,
		ioc.InitSheetClient,
		ioc.InitPlatformClient,
		ioc.InitPostgres,
		ioc.InitAuditSink,
		ioc.InitRunFlow,
		ioc.InitAppService,
		ioc.InitReconcileHandler,
		ioc.InitGinEngine,
		ioc.InitScheduler,
		server.NewHTTPServer,
	))
}

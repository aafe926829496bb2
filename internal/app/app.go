package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/loft/internal/auth"
	"github.com/Additional-Code/loft/internal/cache"
	"github.com/Additional-Code/loft/internal/config"
	"github.com/Additional-Code/loft/internal/database"
	"github.com/Additional-Code/loft/internal/logger"
	"github.com/Additional-Code/loft/internal/messaging"
	"github.com/Additional-Code/loft/internal/observability"
	repositoryadmin "github.com/Additional-Code/loft/internal/repository/admin"
	repositorycatalog "github.com/Additional-Code/loft/internal/repository/catalog"
	repositorycustomer "github.com/Additional-Code/loft/internal/repository/customer"
	repositoryorder "github.com/Additional-Code/loft/internal/repository/order"
	grpcserver "github.com/Additional-Code/loft/internal/server/grpc"
	httpserver "github.com/Additional-Code/loft/internal/server/http"
	serviceaccount "github.com/Additional-Code/loft/internal/service/account"
	serviceorder "github.com/Additional-Code/loft/internal/service/order"
	transporthttp "github.com/Additional-Code/loft/internal/transport/http"
	"github.com/Additional-Code/loft/internal/worker"
	workerorder "github.com/Additional-Code/loft/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	auth.Module,
	repositoryadmin.Module,
	repositorycatalog.Module,
	repositorycustomer.Module,
	repositoryorder.Module,
	serviceaccount.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP and gRPC servers on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP and gRPC).
var Module = HTTP

// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command catalog-mock serves the catalog API the grid talks to, backed by
// an in-memory or sqlite store. It is meant for local development and
// end-to-end tests of the grid core.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalogapi/mockserver"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/config"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/constants"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/env"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/logger"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/metrics"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/persistence"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/persistence/memory"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/persistence/sqlite"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/sentry"
)

// appVersion is set at build time via -ldflags.
var appVersion = constants.DefaultAppVersion

func main() {
	configPath, err := env.GetAsString("CONFIG_PATH", false, "config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read CONFIG_PATH: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.InitializeWith(cfg.Logging.Level, logger.ParseFormat(cfg.Logging.Format, logger.FormatJSON))

	if cfg.SentryDSN != "" {
		zap.ReplaceGlobals(zap.L().WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return sentry.NewSentryHook(core)
		})))
	}

	sentry.InitSentry(cfg.SentryDSN, appVersion, true)

	log := logger.For(logger.ComponentMockServer)
	log.Infow("Starting catalog-mock", "version", appVersion, "port", cfg.Server.Port)

	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg.Server)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to open catalog store: %v", err)
		os.Exit(1)
	}

	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Warnf("Failed to close catalog store: %v", err)
		}
	}()

	server, err := mockserver.New(ctx, store, cfg.API.AuthToken, log)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to create mock server: %v", err)
		os.Exit(1)
	}

	if seed, _ := env.GetAsBool("SEED_DEMO_DATA", false, false); seed {
		if err := server.Seed(ctx, demoRows()); err != nil {
			log.Warnf("Failed to seed demo data: %v", err)
		}
	}

	metricsServer := metrics.SetupMetricsEndpoint(fmt.Sprintf(":%d", cfg.MetricsPort))

	gin.SetMode(gin.ReleaseMode)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           http.StripPrefix("/api", server.Router()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Catalog API server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down catalog-mock")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		sentry.ReportIssuef(sentry.IssueTypeError, log, "Failed to shutdown catalog API server: %v", err)
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		sentry.ReportIssuef(sentry.IssueTypeError, log, "Failed to shutdown metrics server: %v", err)
	}
}

func openStore(cfg config.ServerConfig) (persistence.Store, error) {
	if cfg.SQLitePath == "" {
		return memory.NewInMemoryStore(), nil
	}

	return sqlite.NewSQLiteStore(cfg.SQLitePath)
}

func demoRows() []*catalog.Row {
	return []*catalog.Row{
		catalog.NewProduct(1, catalog.Fields{catalog.FieldName: "Hoodie", catalog.FieldSKU: "HOODIE", catalog.FieldRegularPrice: "49.90", catalog.FieldMenuOrder: 0}),
		catalog.NewVariation(2, 1, catalog.Fields{catalog.FieldSKU: "HOODIE-S", catalog.FieldRegularPrice: "49.90"}),
		catalog.NewVariation(3, 1, catalog.Fields{catalog.FieldSKU: "HOODIE-M", catalog.FieldRegularPrice: "49.90"}),
		catalog.NewProduct(4, catalog.Fields{catalog.FieldName: "Cap", catalog.FieldSKU: "CAP", catalog.FieldRegularPrice: "19.50", catalog.FieldMenuOrder: 1}),
		catalog.NewProduct(5, catalog.Fields{catalog.FieldName: "Scarf", catalog.FieldSKU: "SCARF", catalog.FieldRegularPrice: "24", catalog.FieldSalePrice: "19", catalog.FieldMenuOrder: 2}),
	}
}

// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cobaltcore-dev/hostselect/internal/conf"
	"github.com/cobaltcore-dev/hostselect/internal/monitoring"
	"github.com/cobaltcore-dev/hostselect/internal/scheduling/lib"
	"github.com/cobaltcore-dev/hostselect/internal/scheduling/nova"
	"github.com/sapcc/go-api-declarations/bininfo"
	"github.com/sapcc/go-bits/httpext"
	"github.com/sapcc/go-bits/must"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"
)

// Run the prometheus metrics server for monitoring.
func runMonitoringServer(ctx context.Context, registry *monitoring.Registry, config conf.MonitoringConfig) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	slog.Info("metrics listening", "port", config.Port)
	return httpext.ListenAndServeContext(ctx, fmt.Sprintf(":%d", config.Port), mux)
}

// Run the api server with the nova external scheduler endpoint.
func runAPIServer(ctx context.Context, api nova.HTTPAPI, config conf.APIConfig) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	api.Init(mux)
	slog.Info("api listening", "port", config.Port)
	return httpext.ListenAndServeContext(ctx, fmt.Sprintf(":%d", config.Port), mux)
}

func main() {
	// If called with `--version`, report version and exit (the Dockerfile
	// uses this to check if the binary was built correctly)
	bininfo.HandleVersionArgument()

	config := conf.NewConfig()
	config.GetLoggingConfig().SetDefaultLogger()
	must.Succeed(config.Validate())

	// Set runtime concurrency to match CPU limit imposed by Kubernetes
	undoMaxprocs := must.Return(maxprocs.Set(maxprocs.Logger(slog.Debug)))
	defer undoMaxprocs()

	// This context will gracefully shutdown when the process receives the
	// standard shutdown signal SIGINT, with a 10-second delay to allow
	// Kubernetes to stop sending new requests well before the process starts
	// to shut down.
	ctx := httpext.ContextWithSIGINT(context.Background(), 10*time.Second)

	registry := monitoring.NewRegistry(config.GetMonitoringConfig())
	pipelineMonitor := lib.NewPipelineMonitor(registry)
	pipeline := must.Return(nova.NewPipeline(config.GetSchedulerConfig(), pipelineMonitor))
	api := nova.NewAPI(config.GetAPIConfig(), pipeline, lib.NewAPIMonitor(registry))

	slog.Info("starting", "component", bininfo.Component(), "version", bininfo.VersionOr("rolling"))
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return runMonitoringServer(ctx, registry, config.GetMonitoringConfig())
	})
	group.Go(func() error {
		return runAPIServer(ctx, api, config.GetAPIConfig())
	})
	if err := group.Wait(); err != nil {
		slog.Error("server stopped", "error", err)
		panic(err)
	}
}

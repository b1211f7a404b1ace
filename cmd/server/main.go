// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/pymenow/f3backEnd/internal/api"
	"github.com/pymenow/f3backEnd/internal/telemetry"
)

func main() {
	// A missing .env file is fine, secrets may come from the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to read .env: %v", err)
	}

	config, err := GetConfig()
	if err != nil {
		log.Fatal(err)
	}

	closeLogs, err := telemetry.SetupLogging(config.Application.LogLevel, config.Application.LogFile)
	if err != nil {
		log.Fatal(err)
	}
	defer closeLogs()
	slog.Info("Logging initialized", "level", config.Application.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized", "exporters", config.Application.Telemetry)

	if err := InitState(ctx); err != nil {
		slog.Error("Failed to initialize state", "error", err)
		log.Fatal(err)
	}
	slog.Info("Initialized State", "store", config.Store.Backend, "trigger", config.Analysis.Trigger)

	gin.SetMode(gin.ReleaseMode)
	r := api.NewRouter(state.handlers)

	addr := fmt.Sprintf(":%d", config.Application.HTTPPort)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to listen", "error", err)
			cancel()
		}
	}()
	slog.Info("Server Ready", "addr", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	slog.Info("Shutdown Server ...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed", "error", err)
	}

	// Stops the Pub/Sub receive loop.
	cancel()

	if state.inline != nil {
		slog.Info("Waiting for inline media synthesis runs")
		state.inline.Wait()
	}
	if err := state.cloud.Close(); err != nil {
		slog.Error("Failed to close cloud clients", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Error("Failed to flush telemetry", "error", err)
	}

	slog.Info("Server exiting")
}

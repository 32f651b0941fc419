/*
Copyright (c) 2025 Odd Kin <oddkin@oddkin.co>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/oddkinco/local-split-server/internal/artifact"
	"github.com/oddkinco/local-split-server/internal/bundletool"
	"github.com/oddkinco/local-split-server/internal/config"
	"github.com/oddkinco/local-split-server/internal/device"
	"github.com/oddkinco/local-split-server/internal/metrics"
	"github.com/oddkinco/local-split-server/internal/server"
	"github.com/oddkinco/local-split-server/internal/storage"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the split server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootstrap := logr.Discard()
			cfg, err := config.NewManager(cmd.Flags(), bootstrap).LoadConfig()
			if err != nil {
				return err
			}

			log := newLogger(cfg.Log)
			return runServer(cmd.Context(), cfg, log)
		},
	}

	config.BindFlags(cmd.Flags())

	return cmd
}

func runServer(ctx context.Context, cfg *config.Config, log logr.Logger) error {
	log.Info("Starting", "name", serverName, "version", version)

	backend, err := storage.NewBackend(ctx, storage.Options{
		Type:      storage.BackendType(cfg.Storage.Backend),
		LocalPath: cfg.Storage.Local.Path,
		S3: storage.S3Config{
			Bucket:   cfg.Storage.S3.Bucket,
			Region:   cfg.Storage.S3.Region,
			Endpoint: cfg.Storage.S3.Endpoint,
			Prefix:   cfg.Storage.S3.Prefix,
		},
		GCS: storage.GCSConfig{
			Bucket: cfg.Storage.GCS.Bucket,
			Prefix: cfg.Storage.GCS.Prefix,
		},
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	if closer, ok := backend.(io.Closer); ok {
		defer closer.Close()
	}

	if cfg.Artifacts.ScratchDir != "" {
		if err := os.MkdirAll(cfg.Artifacts.ScratchDir, 0o755); err != nil {
			return fmt.Errorf("failed to create scratch directory: %w", err)
		}
	}

	toolchain := bundletool.NewBundleTool(cfg.Toolchain.Command, cfg.Toolchain.Args, cfg.Toolchain.Timeout, log)
	probeToolchain(ctx, toolchain, log)

	var (
		recorder metrics.MetricsRecorder = metrics.NoopRecorder{}
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		recorder = metrics.NewPrometheusRecorder(registry)
		gatherer = registry
	}

	manager := artifact.NewManager(backend, toolchain, recorder, artifact.Options{
		OverrideExisting: cfg.Artifacts.OverrideExistingBundles,
		ScratchDir:       cfg.Artifacts.ScratchDir,
	}, log)

	devices := device.NewRegistry(cfg.Devices.RegistrationTTL, log)
	defer devices.Stop()

	srv := server.NewServer(server.Options{
		Name:              serverName,
		Version:           version,
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		Username:          cfg.Server.Username,
		Password:          cfg.Server.Password,
		RedirectHTTPS:     cfg.Server.RedirectHTTPS,
		ValidateSignature: cfg.Artifacts.ValidateSignatureOnDownload,
	}, manager, devices, recorder, gatherer, log)

	return srv.Run(ctx)
}

// probeToolchain warns when bundletool is missing or too old. Requests will
// still fail individually with a toolchain error.
func probeToolchain(ctx context.Context, toolchain *bundletool.BundleTool, log logr.Logger) {
	detected, err := toolchain.Version(ctx)
	if err != nil {
		log.Error(err, "Unable to determine bundletool version; uploads and downloads will fail until it is available")
		return
	}
	if detected.LessThan(bundletool.MinimumVersion) {
		log.Info("WARNING: bundletool is older than the minimum supported version",
			"detected", detected.String(), "minimum", bundletool.MinimumVersion.String())
		return
	}
	log.Info("Found bundletool", "version", detected.String())
}

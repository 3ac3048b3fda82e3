/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/fargate-tools/ecs-metrics-exporter/internal/config"
	"github.com/fargate-tools/ecs-metrics-exporter/internal/server"
	transporthttp "github.com/fargate-tools/ecs-metrics-exporter/internal/transport/http"
)

var (
	version  = "0.1.1"
	setupLog = ctrl.Log.WithName("setup")
)

func main() {
	var showVersion bool

	// A .env file next to the binary is optional; variables already set win.
	envErr := godotenv.Load()
	if errors.Is(envErr, fs.ErrNotExist) {
		envErr = nil
	}

	cfg, loadErr := config.Load()
	if loadErr != nil {
		cfg = &config.Config{Port: 9546}
	}

	flag.StringVar(&cfg.MetadataURL, "metadata-url", cfg.MetadataURL,
		"Base URL of the ECS Task Metadata endpoint v4 (defaults to $"+config.MetadataURLEnv+")")
	flag.IntVar(&cfg.Port, "listen-port", cfg.Port, "The port the exporter listens on.")
	flag.StringVar(&cfg.BindAddress, "bind-address", cfg.BindAddress,
		"The interface the exporter binds to. Leave empty to listen on all interfaces.")
	flag.StringVar(&cfg.Namespace, "metric-namespace", cfg.Namespace, "Optional prefix added to every metric name.")
	flag.DurationVar(&cfg.Timeout, "metadata-timeout", cfg.Timeout, "Timeout of each metadata request.")
	flag.IntVar(&cfg.Retries, "metadata-retries", cfg.Retries,
		"Extra attempts made when the metadata endpoint answers with a server error. 0 disables retrying.")
	flag.BoolVar(&showVersion, "version", false, "Print the version and exit.")

	opts := zap.Options{
		Development: false,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Usage = config.Usage(flag.CommandLine.Output(), "\nEnvironment variables:", flag.Usage)
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	if envErr != nil {
		setupLog.Error(envErr, "failed to load .env file")
		os.Exit(1)
	}
	if loadErr != nil {
		setupLog.Error(loadErr, "failed to load configuration")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		setupLog.Error(err, "invalid configuration")
		os.Exit(1)
	}

	setupLog.Info("Starting ecs-metrics-exporter",
		"version", version,
		"metadataURL", cfg.MetadataURL,
		"listenAddr", cfg.ListenAddr(),
		"namespace", cfg.Namespace,
		"retries", cfg.Retries)

	fetcher := transporthttp.NewHTTPFetcher(cfg.MetadataURL, cfg.Timeout, cfg.Retries)
	srv := server.New(cfg.ListenAddr(), fetcher, cfg.Namespace)

	err := srv.Start(ctrl.SetupSignalHandler())
	_ = fetcher.Close()
	if err != nil {
		setupLog.Error(err, "problem running server")
		os.Exit(1)
	}
}

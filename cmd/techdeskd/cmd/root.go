// Copyright 2023 Gabriel Adrian Samfira
//
//    Licensed under the Apache License, Version 2.0 (the "License"); you may
//    not use this file except in compliance with the License. You may obtain
//    a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//    WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//    License for the specific language governing permissions and limitations
//    under the License.

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gabriel-samfira/techdesk/apiserver/controllers"
	"github.com/gabriel-samfira/techdesk/apiserver/router"
	"github.com/gabriel-samfira/techdesk/auth"
	"github.com/gabriel-samfira/techdesk/categories"
	"github.com/gabriel-samfira/techdesk/config"
	"github.com/gabriel-samfira/techdesk/database"
	"github.com/gabriel-samfira/techdesk/filestore"
	"github.com/gabriel-samfira/techdesk/httpsrv"
	"github.com/gabriel-samfira/techdesk/logging"
	"github.com/gabriel-samfira/techdesk/security"
)

var (
	cfgFile string = "/etc/techdesk/techdesk.toml"
	Version string
)

var signals = []os.Signal{
	os.Interrupt,
	syscall.SIGTERM,
}

// rootCmd runs the API server when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "techdeskd",
	Short:        "Tech support organizer: notes, todos, photos, documents and a machine guide",
	Long:         ``,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), signals...)
		defer stop()

		cfg, log, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()
		slog.SetDefault(log)

		db, err := database.NewSQLDatabase(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		defer db.Close()

		guard := security.NewGuard(db, cfg.Auth.Cost(), log)
		if err := guard.Bootstrap(ctx, cfg.Auth.InitialPassword()); err != nil {
			return fmt.Errorf("failed to bootstrap credentials: %w", err)
		}

		tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TTL())
		if err != nil {
			return fmt.Errorf("failed to create token issuer: %w", err)
		}

		files, err := filestore.New(ctx, cfg.Storage, log)
		if err != nil {
			return fmt.Errorf("failed to create file store: %w", err)
		}

		cats := categories.NewManager(db, files, log)
		ctrl, err := controllers.NewAPIController(db, guard, tokens, cats, files, cfg.HTTPServer, log)
		if err != nil {
			return fmt.Errorf("failed to create controller: %w", err)
		}
		handler := router.NewAPIRouter(ctrl, auth.NewMiddleware(tokens, log), cfg.HTTPServer, log)

		httpSrv, err := httpsrv.NewHTTPServer(ctx, cfg, handler, log)
		if err != nil {
			return fmt.Errorf("failed to create http server: %w", err)
		}

		if err := httpSrv.Start(); err != nil {
			return fmt.Errorf("failed to start http server: %w", err)
		}
		log.Info("techdeskd started", "version", Version)

		<-ctx.Done()
		httpSrv.Wait()
		log.Info("techdeskd stopped")
		return nil
	},
}

// loadConfig reads the config file and builds the process logger. The
// closer must be called before exiting.
func loadConfig() (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.NewConfig(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, closer, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return cfg, log, closer, nil
}

// openDatabase is used by the maintenance subcommands.
func openDatabase(ctx context.Context) (*database.SQLDatabase, *config.Config, *slog.Logger, func(), error) {
	cfg, log, closer, err := loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	db, err := database.NewSQLDatabase(ctx, cfg.Database, log)
	if err != nil {
		closer.Close()
		return nil, nil, nil, nil, fmt.Errorf("failed to create database: %w", err)
	}
	cleanup := func() {
		db.Close()
		closer.Close()
	}
	return db, cfg, log, cleanup, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", cfgFile, "config file for techdeskd")
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/NinoCoelho/WhatsAppBridge/internal/api"
	"github.com/NinoCoelho/WhatsAppBridge/internal/config"
	"github.com/NinoCoelho/WhatsAppBridge/internal/dispatcher"
	"github.com/NinoCoelho/WhatsAppBridge/internal/keystore"
	"github.com/NinoCoelho/WhatsAppBridge/internal/lifecycle"
	"github.com/NinoCoelho/WhatsAppBridge/internal/messaging"
	"github.com/NinoCoelho/WhatsAppBridge/internal/metrics"
	"github.com/NinoCoelho/WhatsAppBridge/internal/registry"
	"github.com/NinoCoelho/WhatsAppBridge/internal/storage"
)

var version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "wabridge",
		Short: "WhatsApp Bridge: REST API and webhooks for a WhatsApp Web session",
	}

	var configPath string
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(keyCmd(&configPath))
	rootCmd.AddCommand(statusCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			key, created, err := keystore.GetOrCreate(cfg.Auth.KeyFile)
			if err != nil {
				return fmt.Errorf("failed to load auth key: %w", err)
			}
			if created {
				log.Info().Str("file", cfg.Auth.KeyFile).Msg("generated new authentication key")
			}
			log.Info().Str("key", key).Msg("using authentication key (save this for API access)")

			if cfg.Metrics.Enabled {
				metrics.RegisterDefault()
			}

			store, err := setupStorage(cfg.Session, log)
			if err != nil {
				return fmt.Errorf("failed to setup session store: %w", err)
			}
			defer store.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			bus := messaging.NewBus()
			client := messaging.NewWhatsmeow(store, bus, log)
			conn := lifecycle.NewManager(client, bus, cfg.Lifecycle, log)

			reg := registry.New()
			hub := api.NewHub(key, log)
			disp := dispatcher.New(reg, cfg.Webhooks, log)
			disp.AddSink(hub)
			disp.Attach(bus)

			if cfg.Lifecycle.AutoInitialize {
				conn.Bootstrap(ctx)
			}

			server := api.NewServer(cfg, api.Deps{
				Key:      key,
				Registry: reg,
				Conn:     conn,
				Client:   client,
				Hub:      hub,
				Store:    store,
			}, log)
			go func() {
				if err := server.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server error")
				}
			}()

			log.Info().
				Str("version", version).
				Int("port", cfg.Server.Port).
				Str("session", cfg.Session.SQLite.Path).
				Msg("WhatsApp Bridge is running")
			if conn.Status().Authenticated {
				log.Info().Msg("WhatsApp client is authenticated and ready")
			} else {
				log.Info().
					Str("url", fmt.Sprintf("http://%s:%d/init/%s", cfg.Server.PublicHost, cfg.Server.Port, key)).
					Msg("to initialize WhatsApp, visit")
			}

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("shutting down...")

			if err := server.Shutdown(10 * time.Second); err != nil {
				log.Error().Err(err).Msg("server shutdown error")
			}
			if err := conn.Shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("client shutdown error")
			}
			disp.Close()
			hub.Close()

			log.Info().Msg("WhatsApp Bridge stopped")
			return nil
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the session database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Session, log)
			if err != nil {
				return fmt.Errorf("failed to setup session store: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			log.Info().Msg("migrations completed successfully")
			return nil
		},
	}
}

func keyCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "key",
		Short: "Print the API key, creating it if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			key, _, err := keystore.GetOrCreate(cfg.Auth.KeyFile)
			if err != nil {
				return fmt.Errorf("failed to load auth key: %w", err)
			}
			fmt.Println(key)
			return nil
		},
	}
}

func statusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the connection status of a running bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			host := cfg.Server.Host
			if host == "" || host == "0.0.0.0" {
				host = "localhost"
			}
			url := fmt.Sprintf("http://%s:%d/status", host, cfg.Server.Port)

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(url)
			if err != nil {
				return fmt.Errorf("failed to reach bridge at %s: %w", url, err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("bridge returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
			}

			var status map[string]any
			if err := json.Unmarshal(body, &status); err != nil {
				return fmt.Errorf("invalid status response: %w", err)
			}
			out, _ := json.MarshalIndent(status, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("WhatsApp Bridge v%s\n", version)
		},
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func setupStorage(cfg config.SessionConfig, log zerolog.Logger) (storage.SessionStore, error) {
	switch cfg.Driver {
	case "sqlite":
		log.Info().Str("path", cfg.SQLite.Path).Msg("using SQLite session store")
		store, err := storage.NewSQLite(cfg.SQLite.Path, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported session driver: %s", cfg.Driver)
	}
}

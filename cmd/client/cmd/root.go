package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	syncCmd "fieldvisit/cmd/client/cmd/sync"
	visitCmd "fieldvisit/cmd/client/cmd/visit"
	"fieldvisit/internal/client"
	"fieldvisit/internal/config"
	"fieldvisit/internal/logger"
)

var (
	cfg       *config.Client
	log       *slog.Logger
	app       *client.App
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "fieldvisit",
	Short: "FieldVisit - клиент полевого техника",
	Long: `FieldVisit — клиентское приложение выездного техника: записи о
визитах хранятся локально и синхронизируются с сервером при появлении сети.

Конфликты правок не разрешаются автоматически: запись помечается, и выбор
версии остается за пользователем (fieldvisit sync resolve).`,
	PersistentPreRunE: setupApp,
	PersistentPostRun: teardownApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	cfg = config.MustLoadClient()
	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}

	log = logger.New(cfg.Env, cfg.LogLevel)

	var err error
	app, err = client.New(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}

	syncCmd.SetApp(app)
	visitCmd.SetApp(app)
	return nil
}

func teardownApp(_ *cobra.Command, _ []string) {
	if app != nil {
		if err := app.Close(); err != nil {
			log.Warn("failed to close application", "error", err)
		}
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "адрес сервера синхронизации")

	rootCmd.AddCommand(syncCmd.SyncCmd)
	rootCmd.AddCommand(visitCmd.VisitCmd)
}

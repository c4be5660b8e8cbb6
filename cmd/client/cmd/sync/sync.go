package sync

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fieldvisit/internal/client"
	enginesync "fieldvisit/internal/sync"
)

var (
	app           *client.App
	syncStatus    bool
	resetStats    bool
	showConflicts bool
	watch         bool
)

// SetApp передает собранное приложение командам синхронизации
func SetApp(a *client.App) {
	app = a
}

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Управление синхронизацией",
	Long: `Синхронизация записей о визитах с сервером.

Команда запускает цикл синхронизации, показывает статус и список
конфликтов.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncStatus {
			return showSyncStatus(cmd.Context())
		}
		if resetStats {
			return resetSyncStats(cmd.Context())
		}
		if showConflicts {
			return showSyncConflicts(cmd.Context())
		}
		if watch {
			return watchSync(cmd.Context())
		}
		return runSync(cmd.Context())
	},
}

var resolveKeepLocal bool
var resolveKeepRemote bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <visit-id>",
	Short: "Разрешить конфликт синхронизации",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if resolveKeepLocal == resolveKeepRemote {
			return fmt.Errorf("укажите ровно один из флагов --keep-local или --keep-remote")
		}

		var res enginesync.Resolution = enginesync.LocalWins{}
		if resolveKeepRemote {
			res = enginesync.RemoteWins{}
		}

		if err := app.Engine().Resolve(cmd.Context(), args[0], res); err != nil {
			return fmt.Errorf("разрешение конфликта: %w", err)
		}

		color.Green("✅ Конфликт записи %s разрешен", args[0])
		return nil
	},
}

func runSync(ctx context.Context) error {
	fmt.Println("=== Синхронизация визитов ===")

	fmt.Println("Проверка соединения с сервером...")
	if !app.CheckConnection(ctx) {
		color.Yellow("⚠️  Сервер недоступен, синхронизация будет выполнена при появлении сети")
		return nil
	}

	fmt.Println("Начало синхронизации...")
	result := app.Engine().Run(ctx)

	if result.Skipped != "" {
		color.Yellow("⚠️  Синхронизация пропущена: %s", result.Skipped)
		return nil
	}

	fmt.Println()
	color.Green("✅ Синхронизация завершена!")
	fmt.Printf("Время выполнения: %v\n", result.Duration.Round(time.Millisecond))
	fmt.Printf("Отправлено на сервер: %d записей\n", result.Pushed)
	fmt.Printf("Получено с сервера: %d записей\n", result.Pulled)

	if result.Conflicts > 0 {
		color.Yellow("Обнаружено конфликтов: %d", result.Conflicts)
		fmt.Println("   Используйте 'fieldvisit sync --conflicts' для просмотра")
	}

	if len(result.Errors) > 0 {
		color.Red("Ошибок при синхронизации: %d", len(result.Errors))
		for i, e := range result.Errors {
			if i >= 3 {
				fmt.Printf("  ... и еще %d ошибок\n", len(result.Errors)-3)
				break
			}
			fmt.Printf("  • %s %s: %s\n", e.Operation, e.RecordID, e.Error)
		}
	}

	return nil
}

// watchSync запускает фоновые триггеры: опрос сети, синхронизация при
// появлении соединения и периодический таймер. Блокируется до Ctrl+C.
func watchSync(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("=== Фоновая синхронизация ===")
	fmt.Println("Остановка: Ctrl+C")

	go app.Monitor().Start(ctx)
	app.Engine().StartAutoSync(ctx)

	fmt.Println("Фоновая синхронизация остановлена")
	return nil
}

func showSyncStatus(ctx context.Context) error {
	health, err := app.Engine().Health(ctx)
	if err != nil {
		return fmt.Errorf("получение статуса: %w", err)
	}

	fmt.Println("=== Статус синхронизации ===")
	switch health.Status {
	case enginesync.StatusHealthy:
		color.Green("Состояние: %s", health.Status)
	case enginesync.StatusWarning:
		color.Yellow("Состояние: %s", health.Status)
	default:
		color.Red("Состояние: %s", health.Status)
	}

	fmt.Printf("В очереди на отправку: %d\n", health.PendingRecords)
	fmt.Printf("Открытых конфликтов: %d\n", health.OpenConflicts)
	fmt.Printf("Записей с ошибками: %d\n", health.RecordsWithErrors)

	stats := health.Stats
	fmt.Printf("Попыток синхронизации: %d\n", stats.SyncAttempts)
	fmt.Printf("Успешных: %d, неудачных: %d\n", stats.SuccessfulSyncs, stats.FailedSyncs)
	if !stats.LastSuccessfulSync.IsZero() {
		fmt.Printf("Последняя успешная: %s\n", stats.LastSuccessfulSync.Format(time.RFC1123))
	}
	if stats.LastError != "" {
		fmt.Printf("Последняя ошибка: %s\n", stats.LastError)
	}

	return nil
}

func showSyncConflicts(ctx context.Context) error {
	conflicted, err := app.Storage().Conflicted(ctx)
	if err != nil {
		return fmt.Errorf("получение конфликтов: %w", err)
	}

	if len(conflicted) == 0 {
		color.Green("Открытых конфликтов нет")
		return nil
	}

	fmt.Printf("=== Открытые конфликты (%d) ===\n", len(conflicted))
	for _, rec := range conflicted {
		fmt.Printf("• %s — %s (%s)\n", rec.ID, rec.ClientName, rec.Address)
		fmt.Printf("  локальная версия:  %s\n", rec.UpdatedAt.Format(time.RFC1123))
		if rec.ServerVersion != nil {
			fmt.Printf("  серверная версия:  %s\n", rec.ServerVersion.UpdatedAt.Format(time.RFC1123))
		}
	}
	fmt.Println()
	fmt.Println("Разрешение: fieldvisit sync resolve <visit-id> --keep-local|--keep-remote")

	return nil
}

func resetSyncStats(ctx context.Context) error {
	if err := app.Engine().ResetStats(ctx); err != nil {
		return fmt.Errorf("сброс статистики: %w", err)
	}
	color.Green("Статистика синхронизации сброшена")
	return nil
}

func init() {
	SyncCmd.Flags().BoolVar(&syncStatus, "status", false, "показать статус синхронизации")
	SyncCmd.Flags().BoolVar(&showConflicts, "conflicts", false, "показать открытые конфликты")
	SyncCmd.Flags().BoolVar(&resetStats, "reset-stats", false, "сбросить статистику синхронизации")
	SyncCmd.Flags().BoolVar(&watch, "watch", false, "фоновый режим с периодической синхронизацией")

	resolveCmd.Flags().BoolVar(&resolveKeepLocal, "keep-local", false, "оставить локальную версию")
	resolveCmd.Flags().BoolVar(&resolveKeepRemote, "keep-remote", false, "принять серверную версию")

	SyncCmd.AddCommand(resolveCmd)
}

package visit

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fieldvisit/internal/client"
)

var app *client.App

// SetApp передает собранное приложение командам визитов
func SetApp(a *client.App) {
	app = a
}

var VisitCmd = &cobra.Command{
	Use:   "visit",
	Short: "Просмотр записей о визитах",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Список визитов",
	RunE: func(cmd *cobra.Command, args []string) error {
		visits, err := app.Storage().List(cmd.Context())
		if err != nil {
			return fmt.Errorf("список визитов: %w", err)
		}

		if len(visits) == 0 {
			fmt.Println("Визитов нет")
			return nil
		}

		for _, v := range visits {
			marker := " "
			switch {
			case v.ConflictDetected:
				marker = color.RedString("!")
			case !v.Synced:
				marker = color.YellowString("*")
			}
			fmt.Printf("%s %s  %-20s %-30s %s\n",
				marker, v.ID, v.ClientName, v.Address,
				v.ScheduledAt.Format("2006-01-02 15:04"))
		}

		fmt.Println()
		fmt.Println("* — не синхронизировано, ! — конфликт")
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <visit-id>",
	Short: "Детали визита",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := app.Storage().Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("получение визита: %w", err)
		}

		fmt.Printf("Визит %s\n", v.ID)
		fmt.Printf("Клиент:     %s\n", v.ClientName)
		fmt.Printf("Адрес:      %s\n", v.Address)
		fmt.Printf("Назначен:   %s\n", v.ScheduledAt.Format(time.RFC1123))
		fmt.Printf("Статус:     %s (%s, приоритет %s)\n", v.Status, v.Type, v.Priority)
		fmt.Printf("Фото: %d, документов: %d\n", len(v.Photos), len(v.Documents))
		if v.Notes != "" {
			fmt.Printf("Заметки:    %s\n", v.Notes)
		}

		if v.Synced {
			color.Green("Синхронизирован")
		} else {
			color.Yellow("Не синхронизирован")
		}
		if v.ConflictDetected {
			color.Red("Открытый конфликт: %s", v.LastSyncError)
		}

		return nil
	},
}

func init() {
	VisitCmd.AddCommand(listCmd)
	VisitCmd.AddCommand(showCmd)
}

// Команда scout клиент API отчётов: отправка фотографий и наблюдение за лентой.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/scout-reports/internal/logger"
)

type rootOptions struct {
	apiURL   string
	token    string
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "scout",
		Short:        "Клиент сервиса отчётов о растениях",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger.Init(opts.logLevel)
			logger.SetTextFormatter()
			logger.Get().SetOutput(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api", envOr("SCOUT_API_URL", "http://localhost:8080"), "адрес API (SCOUT_API_URL)")
	flags.StringVar(&opts.token, "token", os.Getenv("SCOUT_TOKEN"), "access токен (SCOUT_TOKEN)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "уровень логирования")

	root.AddCommand(newSubmitCmd(opts), newWatchCmd(opts))
	return root
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

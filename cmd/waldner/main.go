package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/EgorLis/waldner/internal/bot"
)

// заполняется через -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "waldner",
		Short:        "Slack-бот пинг-понг лестницы",
		SilenceUsage: true,
	}
	root.AddCommand(runCmd(), versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Печатает версию",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func runCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Подключается к Slack и отвечает на команды",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "conf/waldner.yaml", "путь к YAML-конфигу")
	return cmd
}

func run(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := bot.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	b, err := bot.New(*cfg, logger)
	if err != nil {
		return err
	}
	b.SetSlack(cfg.Slack)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, unix.SIGTERM)
	defer stop()

	if err := b.Start(); err != nil {
		return err
	}
	defer b.Stop()

	logger.Info("running... press Ctrl+C to stop", zap.String("version", version))

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-b.Fatal():
		return fmt.Errorf("slack session: %w", err)
	}
}

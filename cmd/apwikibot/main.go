package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/silasary/apwikibot/internal/bot"
	"github.com/silasary/apwikibot/internal/checks"
	"github.com/silasary/apwikibot/internal/config"
	"github.com/silasary/apwikibot/internal/igdb"
	"github.com/silasary/apwikibot/internal/wiki"
)

var (
	pageTitle string
	dryRun    bool
)

var rootCmd = &cobra.Command{
	Use:   "apwikibot",
	Short: "Maintenance bot for the Archipelago wiki's game pages",
	Long: `apwikibot walks the wiki's game category and runs maintenance checks
against each page: template cleanup, box art from IGDB, and navbox
synchronization. Which checks run is controlled by a table on the bot
account's user page.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&pageTitle, "page", "", "run against a single page instead of the whole category")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log intended edits without writing anything")
}

func run(ctx context.Context) error {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	client := wiki.NewClient(cfg.WikiAPI, cfg.UserAgent)
	if err := client.Login(ctx, cfg.BotUser, cfg.BotPassword); err != nil {
		return err
	}
	log.Info("connected", "account", client.Account(), "api", cfg.WikiAPI)

	catalog := igdb.NewClient(cfg.IGDBClientID, cfg.IGDBClientSecret)

	var store checks.PageStore = client
	if dryRun {
		log.Info("dry run, no edits will be made")
		store = &bot.DryRunStore{PageStore: client, Log: log}
	}

	runner := bot.NewRunner(store, client, catalog, log, bot.Options{
		Account:  client.Account(),
		Category: cfg.Category,
		Page:     pageTitle,
	})
	runErr := runner.Run(ctx)

	// Log out even when the run's context was cancelled.
	if err := client.Logout(context.Background()); err != nil {
		log.Warn("logout failed", "error", err)
	}
	return runErr
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

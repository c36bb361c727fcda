package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradesense/internal/challenge"
	"tradesense/internal/config"
	"tradesense/internal/db"
	"tradesense/internal/logger"
	gormrepository "tradesense/internal/repository/gorm"
	"tradesense/internal/service"
)

type rootOptions struct {
	configPath string
	envOnly    bool
}

// env is what every subcommand works with once config, logging and the database are up.
type env struct {
	cfg   config.Config
	log   *zap.Logger
	db    *db.DB
	store *gormrepository.Store
}

func (e *env) Close() {
	_ = db.Close(e.db)
	_ = e.log.Sync()
}

func (o *rootOptions) open() (*env, error) {
	cfg, err := config.Load(o.configPath, o.envOnly)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	conn, err := db.Open(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.SetTimezone(conn, cfg.DB.Timezone); err != nil {
		log.Warn("failed to set timezone", zap.Error(err))
	}
	return &env{cfg: cfg, log: log, db: conn, store: gormrepository.New(conn.Gorm)}, nil
}

func main() {
	opts := &rootOptions{configPath: os.Getenv("TS_CONFIG")}
	if opts.configPath == "" {
		opts.configPath = "config/config.yaml"
	}
	if raw := os.Getenv("TS_ENV_ONLY"); raw != "" {
		opts.envOnly = strings.EqualFold(raw, "true") || raw == "1"
	}

	root := &cobra.Command{
		Use:           "tsctl",
		Short:         "Operator tasks for the TradeSense backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", opts.configPath, "path to config.yaml")
	root.PersistentFlags().BoolVar(&opts.envOnly, "env-only", opts.envOnly, "read configuration from TS_* environment only")

	root.AddCommand(
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newEvaluateCmd(opts),
		newSwitchCmd(opts),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open()
			if err != nil {
				return err
			}
			defer e.Close()
			if err := db.AutoMigrate(e.db); err != nil {
				return fmt.Errorf("auto-migrate: %w", err)
			}
			e.log.Info("schema migrated")
			return nil
		},
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the challenge catalog and the configured admin and demo users",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open()
			if err != nil {
				return err
			}
			defer e.Close()
			if err := db.Seed(cmd.Context(), e.store, e.cfg, e.log); err != nil {
				return err
			}
			settings := &service.SystemSettingsService{Repo: e.store}
			return settings.EnsureDefaultSwitches(cmd.Context())
		},
	}
}

func newEvaluateCmd(opts *rootOptions) *cobra.Command {
	var accountID uint64
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run the challenge rules over active accounts (or one account)",
		Long: "Evaluates every active account once and exits. Meant for an external scheduler " +
			"when the server runs with cron disabled.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open()
			if err != nil {
				return err
			}
			defer e.Close()
			engine := &challenge.Engine{
				Repo:    e.store,
				Rules:   challenge.NewRules(e.cfg.Challenge),
				Logger:  e.log,
				Workers: e.cfg.Challenge.EvaluateWorkers,
			}
			out := cmd.OutOrStdout()
			if accountID > 0 {
				t, err := engine.EvaluateAccount(cmd.Context(), accountID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "account %d: %s -> %s\n", t.AccountID, t.From, t.To)
				return nil
			}
			summary, err := engine.EvaluateAllActive(cmd.Context())
			fmt.Fprintf(out, "evaluated=%d failed=%d funded=%d errors=%d\n",
				summary.Evaluated, summary.Failed, summary.Funded, summary.Errors)
			return err
		},
	}
	cmd.Flags().Uint64Var(&accountID, "account", 0, "evaluate a single account id")
	return cmd
}

func newSwitchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "switch [name] [on|off]",
		Short:     "Show feature switches, or turn one on or off",
		Args:      cobra.MaximumNArgs(2),
		ValidArgs: []string{"trading", "withdrawals", "registration", "evaluate_cron", "market_warm"},
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open()
			if err != nil {
				return err
			}
			defer e.Close()
			settings := &service.SystemSettingsService{Repo: e.store}
			out := cmd.OutOrStdout()
			switch len(args) {
			case 2:
				var on bool
				switch strings.ToLower(args[1]) {
				case "on", "true", "1":
					on = true
				case "off", "false", "0":
				default:
					return fmt.Errorf("state must be on or off, got %q", args[1])
				}
				sw, err := settings.SetEnabled(cmd.Context(), args[0], on)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s=%t\n", sw.Name, sw.Enabled)
				return nil
			case 1:
				return fmt.Errorf("missing state for %s", args[0])
			}
			items, err := settings.Switches(cmd.Context())
			if err != nil {
				return err
			}
			for _, sw := range items {
				fmt.Fprintf(out, "%-15s %t\n", sw.Name, sw.Enabled)
			}
			return nil
		},
	}
}

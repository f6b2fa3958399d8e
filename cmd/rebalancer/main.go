package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli"

	"github.com/stakeops/rebalancer/config"
	"github.com/stakeops/rebalancer/core/rebalance"
	"github.com/stakeops/rebalancer/core/types"
	"github.com/stakeops/rebalancer/crypto"
	"github.com/stakeops/rebalancer/ledger"
	"github.com/stakeops/rebalancer/storage"
	"github.com/stakeops/rebalancer/utils"
)

func main() {
	app := cli.NewApp()
	app.Name = "rebalancer"
	app.Usage = "periodic stake rebalancing against a ledger"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "path to the configuration file",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "execute one rebalancing pass",
			Flags: []cli.Flag{
				cli.Uint64Flag{
					Name:  "budget",
					Usage: "total stake budget in base units; overrides the configured budget",
				},
				cli.BoolFlag{
					Name:  "dry-run",
					Usage: "compute the plan and operations but submit nothing",
				},
			},
			Action: runAction,
		},
		{
			Name:  "history",
			Usage: "list past run reports",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "limit, n",
					Usage: "show at most this many reports",
					Value: 10,
				},
			},
			Action: historyAction,
		},
		{
			Name:   "keygen",
			Usage:  "generate the staker authority key",
			Action: keygenAction,
		},
		{
			Name:   "init",
			Usage:  "write a default configuration file",
			Action: initAction,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.LoadConfig(c.GlobalString("config"))
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, err := utils.NewLogger(cfg.General.LogLevel, cfg.General.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()

	policy, err := cfg.BuildPolicy()
	if err != nil {
		return err
	}
	reserve, err := cfg.ReserveAccount()
	if err != nil {
		return err
	}

	budget := cfg.Policy.Budget
	if c.IsSet("budget") {
		budget = c.Uint64("budget")
	}
	dryRun := c.Bool("dry-run")

	keyManager, err := crypto.NewKeyManager(filepath.Join(cfg.General.DataDir, "keys"))
	if err != nil {
		return fmt.Errorf("failed to initialize key manager: %w", err)
	}
	key, ok := keyManager.StakerKey()
	if !ok {
		if !dryRun {
			return fmt.Errorf("no staker key found; run 'rebalancer keygen' first")
		}
		// Dry runs sign nothing; an ephemeral key is fine.
		key, err = crypto.GenerateKeyPair()
		if err != nil {
			return err
		}
	}

	db, err := storage.NewLevelDBStore(filepath.Join(cfg.General.DataDir, "db"))
	if err != nil {
		return fmt.Errorf("failed to open run history store: %w", err)
	}
	reports := storage.NewReportStore(db)
	defer reports.Close()

	client := ledger.NewClient(cfg.Ledger.RPCEndpoint, cfg.Ledger.RequestTimeout)
	executor := rebalance.NewExecutor(client, crypto.NewTxSigner(key), rebalance.ExecutorConfig{
		MaxAttempts:          cfg.Executor.MaxAttempts,
		RetryBackoff:         cfg.Executor.RetryBackoff,
		ConfirmTimeout:       cfg.Executor.ConfirmTimeout,
		PollInterval:         cfg.Executor.PollInterval,
		MaxOpsPerTransaction: cfg.Executor.MaxOpsPerTransaction,
	}, logger)
	engine := rebalance.NewEngine(client, executor, reports, policy, reserve, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn("Signal received, canceling run", "signal", sig.String())
		cancel()
	}()

	report, err := engine.Run(ctx, rebalance.RunOptions{
		Budget:  budget,
		DryRun:  dryRun,
		Timeout: cfg.Executor.RunTimeout,
	})
	if err != nil {
		return err
	}

	printReport(report)
	if report.Failed() > 0 {
		return cli.NewExitError(fmt.Sprintf("%d operations failed", report.Failed()), 2)
	}
	return nil
}

func historyAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	db, err := storage.NewLevelDBStore(filepath.Join(cfg.General.DataDir, "db"))
	if err != nil {
		return fmt.Errorf("failed to open run history store: %w", err)
	}
	reports := storage.NewReportStore(db)
	defer reports.Close()

	list, err := reports.ListReports(c.Int("limit"))
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No run reports recorded yet.")
		return nil
	}

	for _, report := range list {
		mode := "live"
		if report.DryRun {
			mode = "dry-run"
		}
		fmt.Printf("epoch %d  %s  %s  budget %s  confirmed %d  failed %d  skipped %d\n",
			report.Epoch,
			report.StartedAt.Format("2006-01-02 15:04:05"),
			mode,
			utils.FormatAmount(report.Budget),
			report.Confirmed(),
			report.Failed(),
			report.Skipped(),
		)
	}
	return nil
}

func keygenAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	keyManager, err := crypto.NewKeyManager(filepath.Join(cfg.General.DataDir, "keys"))
	if err != nil {
		return fmt.Errorf("failed to initialize key manager: %w", err)
	}

	key, err := keyManager.CreateStakerKey()
	if err != nil {
		return err
	}

	fmt.Printf("Staker authority key created: %s\n", key.Address())
	return nil
}

func initAction(c *cli.Context) error {
	path := c.GlobalString("config")
	if path == "" {
		path = config.DefaultConfigFile()
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
		return err
	}

	fmt.Printf("Default configuration written to %s\n", path)
	return nil
}

func printReport(report *types.RunReport) {
	fmt.Printf("Run finished: epoch %d, budget %s\n", report.Epoch, utils.FormatAmount(report.Budget))
	for _, note := range report.Notes {
		fmt.Printf("  %s\n", note)
	}
	for _, warning := range report.Warnings {
		fmt.Printf("  warning: %s\n", warning)
	}
	fmt.Printf("  operations: %d confirmed, %d failed, %d skipped\n",
		report.Confirmed(), report.Failed(), report.Skipped())
	for _, res := range report.Results {
		if res.Outcome == types.OutcomeFailed {
			fmt.Printf("  failed: %s %s for %s (%s): %s\n",
				res.Op.Kind, res.Op.Account, res.Validator, res.Failure, res.Reason)
		}
	}
}

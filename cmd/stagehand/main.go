// cmd/stagehand/main.go
package main

// docker run --rm -v /var/run/docker.sock:/var/run/docker.sock:ro -v /data/scenes:/scenes:ro -e STAGEHAND_DB=/var/lib/stagehand/stagehand.db -e STAGEHAND_LOG_LEVEL=debug naonak/stagehand:latest run /scenes/warehouse.usd --image nginx:latest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stagehand/internal/config"
	"stagehand/internal/manager"
	"stagehand/internal/scheduler"
	"stagehand/internal/types/options"
	"stagehand/pkg/utils"
)

func main() {
	cfg := config.NewConfig()

	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd construit la commande racine et ses sous-commandes
func newRootCmd(cfg *config.Config) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "stagehand",
		Short: "Simulation run harness",
		Long: `A harness that drives timed simulation runs: it starts the simulation
runtime, loads a scene, starts playback, launches an auxiliary container
alongside it, and tears everything down when the time budget expires.

Environment variables:
  STAGEHAND_LOG_LEVEL    : Logging level (debug, info, warn, error)
  STAGEHAND_DB           : Database path
  STAGEHAND_APPRISE_URL  : Apprise URL for notifications
  STAGEHAND_SCENE        : Default scene path
  STAGEHAND_IMAGE        : Default auxiliary container image
  STAGEHAND_ENGINE       : Container engine implementation (cli, api)
  STAGEHAND_ENGINE_BINARY: Container client binary (cli mode)
  STAGEHAND_TIMEOUT      : Default run timeout in seconds`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Capturer les valeurs des flags avant le chargement: un flag
			// donné explicitement garde la priorité sur le fichier et
			// l'environnement
			flags := cmd.Root().PersistentFlags()
			logLevel := cfg.LogLevel
			dbPath := cfg.DbPath
			appriseURL := cfg.AppriseURL
			engineType := cfg.Engine
			engineBinary := cfg.EngineBinary
			timeout := cfg.Timeout

			// Charger la configuration depuis le fichier puis l'environnement
			if configFile != "" {
				if err := cfg.LoadFromFile(configFile); err != nil {
					return err
				}
			}
			if err := cfg.LoadFromEnv(); err != nil {
				return err
			}

			// Réappliquer les flags explicites
			if flags.Changed("log-level") {
				if err := cfg.SetLogLevel(logLevel); err != nil {
					return err
				}
			}
			if flags.Changed("db") {
				cfg.DbPath = dbPath
			}
			if flags.Changed("apprise-url") {
				cfg.AppriseURL = appriseURL
			}
			if flags.Changed("engine") {
				cfg.Engine = engineType
			}
			if flags.Changed("engine-binary") {
				cfg.EngineBinary = engineBinary
			}
			if flags.Changed("timeout") {
				cfg.Timeout = timeout
			}

			// Valider la configuration
			return cfg.Validate()
		},
	}

	// Flags globaux
	rootCmd.PersistentFlags().StringVarP(&cfg.LogLevel, "log-level", "l",
		config.DefaultLogLevel, "Log level")
	rootCmd.PersistentFlags().StringVarP(&cfg.DbPath, "db", "D",
		config.DefaultDbPath, "Database path")
	rootCmd.PersistentFlags().StringVarP(&cfg.AppriseURL, "apprise-url", "a",
		"", "Apprise URL for notifications")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c",
		"", "Configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&cfg.Engine, "engine",
		config.DefaultEngine, "Container engine implementation (cli, api)")
	rootCmd.PersistentFlags().StringVar(&cfg.EngineBinary, "engine-binary",
		config.DefaultEngineBinary, "Container client binary (cli mode)")
	rootCmd.PersistentFlags().IntVar(&cfg.Timeout, "timeout",
		config.DefaultTimeout, "Run timeout in seconds")

	// Ajouter les sous-commandes
	rootCmd.AddCommand(
		newRunCmd(cfg),
		newScheduleCmd(cfg),
		newHistoryCmd(cfg),
		newPruneCmd(cfg),
	)

	return rootCmd
}

// buildRunOptions assemble les options de run depuis la config et les flags
func buildRunOptions(cfg *config.Config, image, name, network string,
	command, volumes, ports, env []string, notify, dryRun bool) (options.RunOptions, error) {

	opts := options.NewRunOptions(
		options.WithRunTimeout(time.Duration(cfg.Timeout)*time.Second),
		options.WithRunHeadless(cfg.Headless),
		options.WithRunNotify(notify),
		options.WithRunDryRun(dryRun),
	)

	if image == "" {
		image = cfg.Image
	}
	opts.Image = image
	opts.ContainerName = name
	opts.Network = network
	opts.Command = command

	var err error
	if opts.Volumes, err = utils.ParseMappings(volumes); err != nil {
		return opts, fmt.Errorf("invalid volume mapping: %w", err)
	}
	if opts.Ports, err = utils.ParseMappings(ports); err != nil {
		return opts, fmt.Errorf("invalid port mapping: %w", err)
	}
	if opts.Env, err = utils.ParseKeyValues(env); err != nil {
		return opts, fmt.Errorf("invalid environment variable: %w", err)
	}

	return opts, nil
}

// newRunCmd crée la commande run
func newRunCmd(cfg *config.Config) *cobra.Command {
	var (
		image   string
		name    string
		network string
		command []string
		volumes []string
		ports   []string
		env     []string
		notify  bool
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "run [scene]",
		Short: "Run a timed scenario",
		Long: `Run a scenario: start the simulation runtime, load the scene, start
playback, launch the auxiliary container, then stop everything when the
timeout expires. Ctrl+C stops the run early.

Examples:
  # Run the default scene for the default timeout
  stagehand run

  # Run a scene for five minutes with a sidecar container
  stagehand run /scenes/warehouse.usd --timeout 300 --image nginx:latest

  # Run headless with port and volume mappings
  stagehand run /scenes/lab.usd --headless --image registry:2 -p 5000:5000 -v /tmp/reg:/var/lib/registry

  # Show what would run without doing anything
  stagehand run /scenes/lab.usd -n`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := buildRunOptions(cfg, image, name, network,
				command, volumes, ports, env, notify, dryRun)
			if err != nil {
				return err
			}

			m, err := manager.NewRunManager(cfg)
			if err != nil {
				return err
			}
			defer m.Close()

			scene := ""
			if len(args) > 0 {
				scene = args[0]
			}

			// Ctrl+C ou SIGTERM interrompt le run proprement
			ctx, stop := signal.NotifyContext(context.Background(),
				syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report, err := m.RunScenario(ctx, scene, opts)
			if err != nil {
				return err
			}
			if report.Error != nil {
				return fmt.Errorf("scenario run failed: %w", report.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&image, "image", "i", "",
		"Auxiliary container image (none if empty)")
	cmd.Flags().StringVar(&name, "name", "",
		"Auxiliary container name (generated if empty)")
	cmd.Flags().StringArrayVar(&command, "command", nil,
		"Command to run in the auxiliary container")
	cmd.Flags().StringArrayVarP(&volumes, "volume", "v", nil,
		"Volume mapping src:dst (repeatable)")
	cmd.Flags().StringArrayVarP(&ports, "port", "p", nil,
		"Port mapping host:container (repeatable)")
	cmd.Flags().StringArrayVarP(&env, "env", "e", nil,
		"Environment variable KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&network, "network", "",
		"Network for the auxiliary container")
	cmd.Flags().BoolVar(&cfg.Headless, "headless", false,
		"Start the simulation runtime without a UI")
	cmd.Flags().BoolVar(&notify, "notify", false,
		"Send notifications through Apprise")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false,
		"Show what would run without making changes")

	return cmd
}

// newScheduleCmd crée la commande schedule
func newScheduleCmd(cfg *config.Config) *cobra.Command {
	var (
		image  string
		notify bool
	)

	cmd := &cobra.Command{
		Use:   `schedule "cron-expression" [scene]`,
		Short: "Schedule recurring scenario runs",
		Long: `Schedule recurring scenario runs.

Cron Expression Format:
  ┌───────────── minute (0 - 59)
  │ ┌───────────── hour (0 - 23)
  │ │ ┌───────────── day of month (1 - 31)
  │ │ │ ┌───────────── month (1 - 12)
  │ │ │ │ ┌───────────── day of week (0 - 6)
  │ │ │ │ │
  * * * * *

Examples:
  # Run the default scene every night at 2am
  stagehand schedule "0 2 * * *"

  # Run a scene every hour with a sidecar container
  stagehand schedule "0 * * * *" /scenes/warehouse.usd --image nginx:latest`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := buildRunOptions(cfg, image, "", "",
				nil, nil, nil, nil, notify, false)
			if err != nil {
				return err
			}

			m, err := manager.NewRunManager(cfg)
			if err != nil {
				return err
			}
			defer m.Close()

			cronExpr := args[0]
			scene := ""
			if len(args) > 1 {
				scene = args[1]
			}

			s := scheduler.NewScheduler(m, scheduler.Options{
				Scene:   scene,
				RunOpts: opts,
				Logger:  cfg.Logger,
			})

			if err := s.Start(cronExpr); err != nil {
				return err
			}

			next := s.NextRun()
			if next != nil {
				cfg.Logger.Infof("First run scheduled at: %s",
					next.Format("2006-01-02 15:04:05"))
			}

			// Attendre Ctrl+C puis démonter depuis la goroutine principale
			<-s.Done()
			s.Stop()
			return nil
		},
	}

	cmd.Flags().StringVarP(&image, "image", "i", "",
		"Auxiliary container image (none if empty)")
	cmd.Flags().BoolVar(&cfg.Headless, "headless", true,
		"Start the simulation runtime without a UI")
	cmd.Flags().BoolVar(&notify, "notify", true,
		"Send notifications through Apprise")

	return cmd
}

// newHistoryCmd crée la commande history
func newHistoryCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [scene...]",
		Short: "Show run history",
		Long: `Show run history.
If no scenes are specified, shows history for all scenes.

Examples:
  # Show all runs
  stagehand history

  # Show runs of a specific scene
  stagehand history /scenes/warehouse.usd

  # Show last 5 runs
  stagehand history -n 5

  # Show only the last run per scene
  stagehand history -L

  # Show as JSON
  stagehand history -j`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manager.NewRunManager(cfg)
			if err != nil {
				return err
			}
			defer m.Close()

			opts := options.HistoryOptions{
				Scenes: args,
				Limit:  cfg.Limit,
				Last:   cfg.Last,
				SortBy: cfg.SortBy,
				JSON:   cfg.JSON,
				Search: cfg.Search,
			}

			if cfg.Since != "" {
				if t, err := time.Parse("2006-01-02", cfg.Since); err == nil {
					opts.Since = t
				} else {
					return fmt.Errorf("invalid --since date format (use YYYY-MM-DD)")
				}
			}

			if cfg.Before != "" {
				if t, err := time.Parse("2006-01-02", cfg.Before); err == nil {
					opts.Before = t
				} else {
					return fmt.Errorf("invalid --before date format (use YYYY-MM-DD)")
				}
			}

			history, err := m.GetHistory(opts)
			if err != nil {
				return err
			}

			if len(history) == 0 {
				cfg.Logger.Info("No history found")
				return nil
			}

			if cfg.JSON {
				if err := json.NewEncoder(os.Stdout).Encode(history); err != nil {
					return fmt.Errorf("failed to encode JSON: %v", err)
				}
				return nil
			}

			// Affichage formaté
			for _, entry := range history {
				scene := entry.Scene
				if scene == "" {
					scene = "(empty stage)"
				}
				cfg.Logger.Infof("[%s] %s (ID: %d)",
					entry.StartedAt.Format("2006-01-02 15:04:05"),
					scene,
					entry.ID,
				)
				cfg.Logger.Infof("  Status: %s", entry.Status)
				cfg.Logger.Infof("  Duration: %s",
					entry.FinishedAt.Sub(entry.StartedAt).Round(time.Second))
				if entry.Image != "" {
					cfg.Logger.Infof("  Sidecar: %s (%s)", entry.Image, entry.ContainerID)
				}
				if entry.Message != "" {
					cfg.Logger.Infof("  Message: %s", entry.Message)
				}
				cfg.Logger.Info("")
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&cfg.Limit, "limit", "n", 0,
		"Limit number of entries")
	cmd.Flags().BoolVarP(&cfg.Last, "last", "L", false,
		"Show only last entry per scene")
	cmd.Flags().StringVarP(&cfg.SortBy, "sort-by", "s", "date",
		"Sort by (date|scene)")
	cmd.Flags().BoolVarP(&cfg.JSON, "json", "j", false,
		"Output in JSON format")
	cmd.Flags().StringVarP(&cfg.Search, "search", "q", "",
		"Search in messages and status")
	cmd.Flags().StringVarP(&cfg.Since, "since", "S", "",
		"Show entries since date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&cfg.Before, "before", "b", "",
		"Show entries before date (YYYY-MM-DD)")

	return cmd
}

// newPruneCmd crée la commande prune
func newPruneCmd(cfg *config.Config) *cobra.Command {
	var opts options.PruneOptions
	var olderThan string
	var before string

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove run entries from database",
		Long: `Remove run entries from the database based on age or date.

Examples:
  # Remove all entries
  stagehand prune --all

  # Remove entries older than 30 days
  stagehand prune --older-than 720h

  # Remove entries before a date
  stagehand prune --before 2026-01-01

  # Show what would be removed
  stagehand prune --all -n`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan != "" {
				d, err := time.ParseDuration(olderThan)
				if err != nil {
					return fmt.Errorf("invalid --older-than duration: %v", err)
				}
				opts.OlderThan = d
			}

			if before != "" {
				t, err := time.Parse("2006-01-02", before)
				if err != nil {
					return fmt.Errorf("invalid --before date format (use YYYY-MM-DD)")
				}
				opts.Before = t
			}

			m, err := manager.NewRunManager(cfg)
			if err != nil {
				return err
			}
			defer m.Close()

			count, err := m.PruneRuns(opts)
			if err != nil {
				return err
			}

			if opts.DryRun {
				cfg.Logger.Infof("Would remove %d entries", count)
			} else {
				cfg.Logger.Infof("Removed %d entries", count)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.All, "all", "A", false,
		"Remove all entries")
	cmd.Flags().StringVar(&olderThan, "older-than", "",
		"Remove entries older than duration (e.g., 720h)")
	cmd.Flags().StringVar(&before, "before", "",
		"Remove entries before date (YYYY-MM-DD)")
	cmd.Flags().BoolVarP(&opts.DryRun, "dry-run", "n", false,
		"Show what would be removed without taking action")

	return cmd
}

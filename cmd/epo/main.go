package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"eventphoto/internal/app"
	"eventphoto/internal/config"
	"eventphoto/internal/journal"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the defaults.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp creates an EpoApp from cfg. The caller must defer app.Close().
// command identifies the CLI command being run (e.g. "organize", "history").
func newApp(cmd *cobra.Command, cfg *config.Config, command string, args []string) (*app.EpoApp, error) {
	var opts app.Options
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		opts.Stderr = os.Stderr
	}
	a, err := app.NewEpoApp(cfg, command, strings.Join(args, " "), opts)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:           "epo",
	Short:         "Organize event photos into per-event folders",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and the run journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		j, err := journal.NewJournalFromConfig(cfg.Journal, nil)
		if err != nil {
			return fmt.Errorf("creating journal: %w", err)
		}
		if j != nil {
			defer j.Close()
			if err := j.MigrateUp(); err != nil {
				return fmt.Errorf("migrating journal: %w", err)
			}
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("# Configuration from %s\n\n", defaults["config_path"])
		m := &config.Manager{}
		return m.Write(os.Stdout, cfg)
	},
}

// journal command
var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Maintain the run journal",
}

var journalMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending journal schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd, cfg, "journal-migrate", args)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.MigrateJournal(); err != nil {
			return err
		}
		fmt.Println("Journal is up to date.")
		return nil
	},
}

var journalBackupCmd = &cobra.Command{
	Use:   "backup PATH",
	Short: "Write a snapshot of the journal to PATH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd, cfg, "journal-backup", args)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.BackupJournal(args[0]); err != nil {
			return err
		}
		fmt.Printf("Journal written to %s\n", args[0])
		return nil
	},
}

// formats command
var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the image formats that can be read",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd, cfg, "formats", args)
		if err != nil {
			return err
		}
		defer a.Close()

		for _, f := range a.Formats() {
			fmt.Println(f)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Also write the action log to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// journal subcommands
	journalCmd.AddCommand(journalMigrateCmd)
	journalCmd.AddCommand(journalBackupCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(formatsCmd)

	addRunFlags(planCmd)
	addRunFlags(organizeCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(organizeCmd)

	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().Bool("json", false, "Print the run as JSON")

	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringP("target", "t", "", "Publish target name (default: first configured)")
}

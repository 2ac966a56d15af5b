// Package commands provides the CLI commands for quickcmd.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/telnet2/quickcmd/internal/config"
	"github.com/telnet2/quickcmd/internal/logging"
	"github.com/telnet2/quickcmd/internal/project"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs bool
	logLevel  string
	workspace string
	folder    string
	envFiles  []string
)

// appCfg is loaded before any subcommand runs.
var appCfg *config.AppConfig

var rootCmd = &cobra.Command{
	Use:   "quickcmd",
	Short: "quickcmd - layered quick commands for your editor and shell",
	Long: `quickcmd keeps a tree of named commands in three layers (global,
workspace and local settings files), merges them, and runs them in named
terminals, through the editor's command API, or as inserted text.

Run 'quickcmd serve' to start the server an editor UI talks to, or
'quickcmd list' and 'quickcmd run' to use the commands from a shell.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR), overrides QUICKCMD_LOG_LEVEL")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace root (default: QUICKCMD_WORKSPACE or the nearest folder with .quickcmd or .git)")
	rootCmd.PersistentFlags().StringVar(&folder, "folder", "", "Folder of the active file, holding the local layer (default: the current directory)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Dotenv files to load (default .env)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("quickcmd %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}

// Execute runs the root command.
func Execute() error {
	defer logging.Close()
	return rootCmd.Execute()
}

// setup loads configuration and initializes logging. Flags win over the
// environment.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadApp(envFiles...)
	if err != nil {
		return err
	}
	if workspace != "" {
		cfg.Workspace = workspace
	}
	if folder != "" {
		cfg.Folder = folder
	}
	if cfg.Workspace == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		info, err := project.Detect(cwd)
		if err != nil {
			return err
		}
		cfg.Workspace = info.Root
		if cfg.Folder == "" {
			cfg.Folder = info.Folder
		}
	}
	if cfg.Folder == "" {
		cfg.Folder = cfg.Workspace
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	appCfg = cfg

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	logCfg.Pretty = cfg.PrettyLogs
	logCfg.LogDir = config.GetPaths().LogDir()
	if printLogs {
		logCfg.Output = os.Stderr
		logCfg.LogToFile = cfg.LogToFile
	} else {
		// Keep stdout and stderr clean for command output.
		logCfg.Output = io.Discard
		logCfg.LogToFile = true
	}
	logging.Init(logCfg)
	return nil
}

// Command bot-controller runs the rig's control loop, dashboard and
// telemetry recorder.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const appName = "bot-controller"

var (
	configDir string
	logLevel  string
	rigConfig string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "cable rig flying camera controller",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runController,
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory holding "+serviceConfigFile())
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logLevel (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&rigConfig, "config", "", "rig config JSON (default: rigConfigFile from the service config)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the control loop",
		Args:  cobra.NoArgs,
		RunE:  runController,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "inspect the rig config",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "print the effective rig config as YAML",
		Args:  cobra.NoArgs,
		RunE:  showConfig,
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "check the rig config and topology",
		Args:  cobra.NoArgs,
		RunE:  validateConfig,
	})

	exportCmd := &cobra.Command{
		Use:   "export [session_id...]",
		Short: "write recorded sessions from the database as gzipped JSON, optionally uploading them",
		Args:  cobra.MinimumNArgs(1),
		RunE:  exportSessions,
	}
	exportCmd.Flags().StringVar(&exportDB, "db", "postgres", "database to read: postgres or sqlite")
	exportCmd.Flags().StringVar(&exportSQLite, "sqlite", "", "sqlite file (default: storage.sqlite.dumpPath)")
	exportCmd.Flags().StringVar(&exportOut, "out", "./exports", "output directory")
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false, "also upload each export to archive.url")
	exportCmd.Flags().StringVar(&exportTag, "tag", "", "tag attached to uploaded sessions")

	rootCmd.AddCommand(runCmd, configCmd, exportCmd)
	return rootCmd
}

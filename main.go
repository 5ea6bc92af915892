package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = ""
)

var (
	seedFlag bool

	rootCmd = &cobra.Command{
		Use:           "launchpad",
		Short:         "Site deployment workflow service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and start the HTTP API",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE:  runMigrate,
	}

	workerCmd = &cobra.Command{
		Use:   "worker",
		Short: "Process queued OTP emails",
		RunE:  runWorker,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version info and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Version:   %s\n", Version)
			fmt.Printf("BuildTime: %s\n", BuildTime)
		},
	}
)

func init() {
	migrateCmd.Flags().BoolVar(&seedFlag, "seed", false, "seed one user per role when the users table is empty")
	rootCmd.AddCommand(serveCmd, migrateCmd, workerCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

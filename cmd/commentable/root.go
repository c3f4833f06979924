package main

import (
	"fmt"
	"os"

	"github.com/nisimpson/commentable/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootCmd is the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "commentable",
	Short: "Threaded comments backed by a single DynamoDB table",
	Long: `commentable stores comments, replies and reactions for any commentable
resource in one DynamoDB table and serves them over HTTP or AWS Lambda.

Every flag can also be set with a COMMENTABLE_* environment variable, e.g.
COMMENTABLE_TABLE or COMMENTABLE_LOG_LEVEL, or in a .env file.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(func() {
		config.LoadEnvFiles()
		config.InitViper(viper.GetViper())
	})

	config.RegisterFlags(RootCmd)

	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(lambdaCmd)
	RootCmd.AddCommand(createTableCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

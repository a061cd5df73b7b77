// TabGate is a self-hostable HTTP gateway for the TabPFN tabular-ML service.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tabgate",
	Short: "TabGate is a managed gateway in front of the TabPFN tabular-ML service.",
	Long: `TabGate sits between callers and the remote TabPFN service. Callers register
once with their TabPFN token and receive a local API key; the token is
encrypted at rest and presented to the remote service on the caller's behalf
for training, prediction, and model listing.`,
	RunE:          runServer, // Default to server mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serverCmd, registerCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

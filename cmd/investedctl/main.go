// Command investedctl is a developer CLI for the Invested services.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Sanidhya49/Invested/config"
	"github.com/Sanidhya49/Invested/logger"
)

var (
	serverURL string
	phone     string
	cfg       *config.EnvConfig
)

var rootCmd = &cobra.Command{
	Use:   "investedctl",
	Short: "Developer tools for the Invested services",
	Long: `investedctl talks to a running backend/agents pair (directly or through the
gateway) and runs parts of the analysis pipeline offline.

Examples:
  investedctl phones
  investedctl token 2222222222
  investedctl subscriptions ./test_data_dir/8888888888/fetch_bank_transactions.json
  investedctl ask --phone 2222222222 "Can I afford a car?"
  investedctl watch --phone 2222222222`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadEnv()
		if err != nil {
			return err
		}
		logger.Configure("investedctl", cfg.LogLevel, "text")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9000", "gateway or backend base URL")
	rootCmd.PersistentFlags().StringVar(&phone, "phone", "2222222222", "test phone number to act as")

	rootCmd.AddCommand(phonesCmd, tokenCmd, loginCmd, subscriptionsCmd, askCmd, agentCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

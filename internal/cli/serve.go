package cli

import (
	"fmt"

	"github.com/harun/kaiwa/internal/config"
	"github.com/harun/kaiwa/internal/daemon"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ledger service",
	Long: `Run the kaiwa ledger service in the foreground: open the ledger
database, start the HTTP API and the idle-session sweeper, and block
until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	d, err := daemon.New(cfg)
	if err != nil {
		return err
	}
	return d.Run()
}

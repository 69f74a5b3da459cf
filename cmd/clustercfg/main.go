package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "clustercfg",
	Short: "Derive and apply coordinator/worker cluster configuration",
	Long: `clustercfg reads a cluster inventory, picks the coordinator, derives the
HDFS replication factor and ZooKeeper quorum, pushes the coordinator's SSH key
to every node and renders the Hadoop and HBase configuration files.`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadApp()
	},
}

var (
	cfgFile       string
	logLevel      string
	jsonLogs      bool
	localID       string
	inventoryPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: search $CLUSTERCFG_CONFIG, ./clustercfg.yaml, XDG and /etc)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "log-json", false, "write logs as JSON lines")
	rootCmd.PersistentFlags().StringVar(&localID, "local-id", "", "identity of this node (default: config, inventory, then hostname)")
	rootCmd.PersistentFlags().StringVar(&inventoryPath, "inventory", "", "inventory file, overriding the config")

	rootCmd.AddCommand(planCmd, trustCmd, verifyCmd, renderCmd, runCmd, watchCmd, keygenCmd, historyCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

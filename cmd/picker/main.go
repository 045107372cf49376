package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version  = "0.1.0"
	cfgFlag  string
	logLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "picker",
		Short: "Daily BBI/KDJ stock screener and strategy backtester",
		Long: `picker mirrors daily bars for a symbol universe, screens it for
oversold KDJ readings among liquid names, and replays the trend-following
strategy over a symbol's history.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFlag, "config", "c", "", "Config file (defaults to $CONFIG_PATH or configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level: debug, info, warn, error")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(downloadCmd())
	rootCmd.AddCommand(screenCmd())
	rootCmd.AddCommand(backtestCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("picker version %s\n", version)
		},
	}
}

func loadApp() (*app, error) {
	return newApp(configPath(cfgFlag), logLevel)
}

// Command fmmcp-bridge is the client-side stdio↔HTTP bridge entrypoint
// (spec §4.9): it reads line-delimited JSON-RPC on stdin and forwards it
// to a remote fmmcp HTTP server, so a stdio-only MCP client can talk to
// an HTTP-deployed server transparently.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fortunamind/persistent-mcp/pkg/bridge"
	"github.com/fortunamind/persistent-mcp/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fmmcp-bridge: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "fmmcp-bridge",
		Short:        "stdio to HTTP bridge for the fmmcp server",
		SilenceUsage: true,
		RunE:         runBridge,
	}
	cmd.Flags().String("endpoint", "", "Remote MCP HTTP endpoint, e.g. https://host/mcp (FM_BRIDGE_ENDPOINT)")
	cmd.Flags().String("log-level", logger.LevelFromEnv(), "debug|info|warning|error (LOG_LEVEL)")

	if err := viper.BindPFlag("endpoint", cmd.Flags().Lookup("endpoint")); err != nil {
		panic(err)
	}
	if err := viper.BindEnv("endpoint", "FM_BRIDGE_ENDPOINT"); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("log-level", cmd.Flags().Lookup("log-level")); err != nil {
		panic(err)
	}
	if err := viper.BindEnv("log-level", "LOG_LEVEL"); err != nil {
		panic(err)
	}
	return cmd
}

func runBridge(_ *cobra.Command, _ []string) error {
	endpoint := viper.GetString("endpoint")
	if endpoint == "" {
		return fmt.Errorf("endpoint is required (set --endpoint or FM_BRIDGE_ENDPOINT)")
	}

	log := logger.New(viper.GetString("log-level"))
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := bridge.NewClient(endpoint, bridge.HeadersFromEnv(), log)
	return client.Run(ctx, os.Stdin, os.Stdout)
}

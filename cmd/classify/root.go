package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/potato-api/internal/client"
	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:          "classify",
	Short:        "Command line client for the potato disease classification API",
	SilenceUsage: true,
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the server is alive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, err := client.New(serverURL).Ping(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the server's welcome document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := client.New(serverURL).Info(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, info.Message)
		for name, path := range info.Endpoints {
			fmt.Fprintf(out, "  %-8s %s\n", name, path)
		}
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "Base URL of the classification API")
	rootCmd.AddCommand(pingCmd, infoCmd, predictCmd)
}

func main() {
	Execute()
}

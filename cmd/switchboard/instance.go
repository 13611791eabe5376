package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/presence"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/ui"
)

var instanceCmd = &cobra.Command{
	Use:     "instance",
	Short:   "Report and list instance connection state",
	GroupID: "config",
}

var instancePresenceCmd = &cobra.Command{
	Use:   "presence <instance> <open|connecting|close>",
	Short: "Report an instance's upstream connection state",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := presence.ParseState(args[1])
		if err != nil {
			return err
		}
		if err := apiClient.ReportPresence(context.Background(), args[0], state); err != nil {
			return fmt.Errorf("reporting presence: %w", err)
		}
		if !jsonOutput {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", args[0], ui.RenderState(string(state)))
		}
		return nil
	},
}

var instanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List instances known to the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stale, _ := cmd.Flags().GetDuration("stale")
		entries, err := apiClient.ListInstances(context.Background(), stale)
		if err != nil {
			return fmt.Errorf("listing instances: %w", err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), entries)
		} else {
			printInstances(cmd.OutOrStdout(), entries)
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check server health",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		resp, err := apiClient.Health(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), resp)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.RenderAccent(serverURL), resp.Status)
		for _, c := range resp.Channels {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", c)
		}
		return nil
	},
}

func init() {
	instanceListCmd.Flags().Duration("stale", 0, "omit instances idle for longer than this")

	instanceCmd.AddCommand(instancePresenceCmd)
	instanceCmd.AddCommand(instanceListCmd)
}

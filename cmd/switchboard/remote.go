package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var remoteCmd = &cobra.Command{
	Use:     "remote",
	Short:   "Manage named servers used by the CLI",
	GroupID: "system",
	// Remote subcommands only touch the local remotes file.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

// editRemotes loads the remotes file, applies fn and saves the result.
func editRemotes(fn func(*RemotesConfig) error) error {
	cfg, err := loadRemotes()
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return cfg.save()
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add or replace a remote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		natsURL, _ := cmd.Flags().GetString("nats")
		r := Remote{URL: args[1], Token: token, NATSURL: natsURL}
		if err := editRemotes(func(c *RemotesConfig) error { return c.add(args[0], r) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q saved (%s)\n", args[0], r.URL)
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := editRemotes(func(c *RemotesConfig) error { return c.remove(args[0]) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q removed\n", args[0])
		return nil
	},
}

var remoteRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a remote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := editRemotes(func(c *RemotesConfig) error { return c.rename(args[0], args[1]) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q renamed to %q\n", args[0], args[1])
		return nil
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a remote the default for CLI commands",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := editRemotes(func(c *RemotesConfig) error { return c.use(args[0]) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "now using remote %q\n", args[0])
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remotes (* marks the active one)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotes()
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), redactRemotes(cfg))
			return nil
		}
		if len(cfg.Remotes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no remotes configured; add one with 'switchboard remote add <name> <url>'")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  NAME\tURL\tNATS\tTOKEN")
		for _, name := range cfg.names() {
			r := cfg.Remotes[name]
			marker := "  "
			if name == cfg.Active {
				marker = "* "
			}
			fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\n", marker, name, r.URL, dash(r.NATSURL), dash(maskToken(r.Token)))
		}
		return tw.Flush()
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [<name>]",
	Short: "Show one remote (defaults to the active one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotes()
		if err != nil {
			return err
		}
		var want string
		if len(args) == 1 {
			want = args[0]
		}
		name, r, err := cfg.lookup(want)
		if err != nil {
			return err
		}
		r.Token = maskToken(r.Token)
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), map[string]any{"name": name, "active": name == cfg.Active, "remote": r})
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		suffix := ""
		if name == cfg.Active {
			suffix = " (active)"
		}
		fmt.Fprintf(tw, "name:\t%s%s\n", name, suffix)
		fmt.Fprintf(tw, "url:\t%s\n", r.URL)
		fmt.Fprintf(tw, "nats:\t%s\n", dash(r.NATSURL))
		fmt.Fprintf(tw, "token:\t%s\n", dash(r.Token))
		return tw.Flush()
	},
}

func redactRemotes(cfg *RemotesConfig) *RemotesConfig {
	out := &RemotesConfig{Active: cfg.Active, Remotes: make(map[string]Remote, len(cfg.Remotes))}
	for name, r := range cfg.Remotes {
		r.Token = maskToken(r.Token)
		out.Remotes[name] = r
	}
	return out
}

// maskToken keeps the first 8 characters of a token.
func maskToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + strings.Repeat("*", len(token)-8)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	remoteAddCmd.Flags().String("token", "", "bearer token for the admin API")
	remoteAddCmd.Flags().String("nats", "", "NATS URL for emit --via-nats")

	remoteCmd.AddCommand(remoteAddCmd)
	remoteCmd.AddCommand(remoteRemoveCmd)
	remoteCmd.AddCommand(remoteRenameCmd)
	remoteCmd.AddCommand(remoteUseCmd)
	remoteCmd.AddCommand(remoteListCmd)
	remoteCmd.AddCommand(remoteShowCmd)
}

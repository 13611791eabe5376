package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/client"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
)

var channelCmd = &cobra.Command{
	Use:     "channel",
	Short:   "Read and write per-instance channel config",
	GroupID: "config",
}

var channelSetCmd = &cobra.Command{
	Use:   "set <channel> <instance>",
	Short: "Replace an instance's config for one channel",
	Long: `Replace an instance's config for one channel.

Channels: websocket, nats, webhook, pusher, sqs.

Examples:
  switchboard channel set websocket shop-42 --events MESSAGES_UPSERT
  switchboard channel set webhook shop-42 --url https://hooks.example.com/in --by-events
  switchboard channel set pusher shop-42 --app-id 1 --key k --secret s --cluster eu --tls
  switchboard channel set sqs shop-42 --enabled=false`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, err := model.ParseChannelType(args[0])
		if err != nil {
			return err
		}
		cfg, err := channelConfigFromFlags(cmd, channel)
		if err != nil {
			return err
		}
		rec, err := apiClient.SetChannel(context.Background(), channel, args[1], cfg)
		if err != nil {
			return fmt.Errorf("setting %s config: %w", channel, err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), rec)
		} else {
			printRecord(cmd.OutOrStdout(), rec)
		}
		return nil
	},
}

var channelFindCmd = &cobra.Command{
	Use:   "find <channel> <instance>",
	Short: "Show an instance's config for one channel",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, err := model.ParseChannelType(args[0])
		if err != nil {
			return err
		}
		rec, err := apiClient.FindChannel(context.Background(), channel, args[1])
		if client.IsNotFound(err) {
			return fmt.Errorf("no %s config stored for %s", channel, args[1])
		}
		if err != nil {
			return fmt.Errorf("finding %s config: %w", channel, err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), rec)
		} else {
			printRecord(cmd.OutOrStdout(), rec)
		}
		return nil
	},
}

var settingsCmd = &cobra.Command{
	Use:     "settings <instance>",
	Short:   "Apply a settings bundle to an instance",
	GroupID: "config",
	Long: `Apply a settings bundle to an instance. The bundle is a JSON object keyed
by channel name; channels absent from the bundle are left unchanged. If any
member is invalid nothing is saved.

Example:
  echo '{"websocket":{"enabled":true},"webhook":{"enabled":false}}' | switchboard settings shop-42 -f -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		b, err := readBundle(cmd.InOrStdin(), file)
		if err != nil {
			return err
		}
		saved, err := apiClient.SetSettings(context.Background(), args[0], b)
		if err != nil {
			return fmt.Errorf("applying settings: %w", err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), saved)
			return nil
		}
		for _, c := range model.AllChannels {
			if rec, ok := saved[c]; ok {
				printRecord(cmd.OutOrStdout(), rec)
				fmt.Fprintln(cmd.OutOrStdout())
			}
		}
		return nil
	},
}

// channelConfigFromFlags builds a ChannelConfig from channel set flags.
// Webhook and pusher settings are only attached for their channel.
func channelConfigFromFlags(cmd *cobra.Command, channel model.ChannelType) (model.ChannelConfig, error) {
	enabled, _ := cmd.Flags().GetBool("enabled")
	events, _ := cmd.Flags().GetStringSlice("events")
	cfg := model.ChannelConfig{Enabled: enabled, Events: events}

	switch channel {
	case model.ChannelWebhook:
		url, _ := cmd.Flags().GetString("url")
		headerArgs, _ := cmd.Flags().GetStringSlice("header")
		byEvents, _ := cmd.Flags().GetBool("by-events")
		base64, _ := cmd.Flags().GetBool("base64")
		headers, err := parseHeaders(headerArgs)
		if err != nil {
			return cfg, err
		}
		cfg.Webhook = &model.WebhookSettings{URL: url, Headers: headers, ByEvents: byEvents, Base64: base64}
	case model.ChannelPusher:
		appID, _ := cmd.Flags().GetString("app-id")
		key, _ := cmd.Flags().GetString("key")
		secret, _ := cmd.Flags().GetString("secret")
		cluster, _ := cmd.Flags().GetString("cluster")
		useTLS, _ := cmd.Flags().GetBool("tls")
		cfg.Pusher = &model.PusherSettings{AppID: appID, Key: key, Secret: secret, Cluster: cluster, UseTLS: useTLS}
	}
	return cfg, nil
}

// parseHeaders parses repeated "Name: value" or "Name=value" flags.
func parseHeaders(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(args))
	for _, a := range args {
		i := strings.IndexAny(a, ":=")
		if i <= 0 {
			return nil, fmt.Errorf("invalid header %q (want Name: value)", a)
		}
		headers[strings.TrimSpace(a[:i])] = strings.TrimSpace(a[i+1:])
	}
	return headers, nil
}

// readBundle decodes a settings bundle from path, or from stdin when path
// is "-".
func readBundle(stdin io.Reader, path string) (model.Bundle, error) {
	var b model.Bundle
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return b, err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return b, fmt.Errorf("decoding bundle: %w", err)
	}
	if len(b.Entries()) == 0 {
		return b, fmt.Errorf("bundle has no channel entries")
	}
	return b, nil
}

func addChannelSetFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("enabled", true, "enable the channel for the instance")
	f.StringSlice("events", nil, "event allow-list (empty means all events)")
	f.String("url", "", "webhook: target URL")
	f.StringSlice("header", nil, `webhook: extra header "Name: value" (repeatable)`)
	f.Bool("by-events", false, "webhook: append the event name to the URL path")
	f.Bool("base64", false, "webhook: keep base64 media fields")
	f.String("app-id", "", "pusher: app ID")
	f.String("key", "", "pusher: key")
	f.String("secret", "", "pusher: secret")
	f.String("cluster", "", "pusher: cluster")
	f.Bool("tls", true, "pusher: use TLS")
}

func init() {
	addChannelSetFlags(channelSetCmd)
	settingsCmd.Flags().StringP("file", "f", "-", `bundle file ("-" for stdin)`)

	channelCmd.AddCommand(channelSetCmd)
	channelCmd.AddCommand(channelFindCmd)
}

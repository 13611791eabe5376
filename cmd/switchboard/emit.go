package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/events"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
)

var emitCmd = &cobra.Command{
	Use:     "emit <instance> <event>",
	Short:   "Emit an event to every channel configured for an instance",
	GroupID: "events",
	Long: `Emit an event to every channel configured for an instance.

By default the envelope is posted to the admin API. With --via-nats it is
published on the server's inbound subject instead.

Examples:
  switchboard emit shop-42 MESSAGES_UPSERT --data '{"key":{"id":"A1"}}'
  switchboard emit shop-42 CONNECTION_UPDATE --data '{"state":"open"}' --integration websocket,webhook
  switchboard emit shop-42 QRCODE_UPDATED --local
  switchboard emit shop-42 SEND_MESSAGE --data-file msg.json --via-nats`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := envelopeFromFlags(cmd, args[0], args[1])
		if err != nil {
			return err
		}
		if err := env.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		viaNATS, _ := cmd.Flags().GetBool("via-nats")
		if viaNATS {
			return publishEnvelope(ctx, cmd, env)
		}

		resp, err := apiClient.Emit(ctx, env)
		if err != nil {
			return fmt.Errorf("emitting event: %w", err)
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), resp)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Accepted %s for %s\n", resp.Event, resp.Instance)
		}
		return nil
	},
}

func publishEnvelope(ctx context.Context, cmd *cobra.Command, env model.Envelope) error {
	natsURL, _ := cmd.Flags().GetString("nats-url")
	if natsURL == "" {
		natsURL = activeRemoteNATSURL()
	}
	if natsURL == "" {
		return fmt.Errorf("--via-nats needs --nats-url, SWITCHBOARD_NATS_URL or a remote with a NATS URL")
	}
	subject, _ := cmd.Flags().GetString("subject")

	pub, err := events.NewNATSPublisher(natsURL)
	if err != nil {
		return err
	}
	defer pub.Close()

	if err := pub.Publish(ctx, subject, env); err != nil {
		return err
	}
	if jsonOutput {
		printJSON(cmd.OutOrStdout(), map[string]string{
			"status":   "published",
			"subject":  subject,
			"instance": env.InstanceName,
			"event":    model.NormalizeEvent(env.Event),
		})
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Published %s for %s on %s\n", model.NormalizeEvent(env.Event), env.InstanceName, subject)
	}
	return nil
}

// envelopeFromFlags builds the envelope for emit from its flags.
func envelopeFromFlags(cmd *cobra.Command, instance, event string) (model.Envelope, error) {
	env := model.Envelope{
		InstanceName: instance,
		Event:        event,
		DateTime:     time.Now().UTC().Format(time.RFC3339),
	}
	env.Origin, _ = cmd.Flags().GetString("origin")
	env.Sender, _ = cmd.Flags().GetString("sender")
	env.APIKey, _ = cmd.Flags().GetString("apikey")
	env.Local, _ = cmd.Flags().GetBool("local")

	data, _ := cmd.Flags().GetString("data")
	dataFile, _ := cmd.Flags().GetString("data-file")
	switch {
	case data != "" && dataFile != "":
		return env, fmt.Errorf("--data and --data-file are mutually exclusive")
	case dataFile != "":
		b, err := os.ReadFile(dataFile)
		if err != nil {
			return env, err
		}
		data = string(b)
	}
	if data != "" {
		if !json.Valid([]byte(data)) {
			return env, fmt.Errorf("event data is not valid JSON")
		}
		env.Data = json.RawMessage(data)
	}

	if cmd.Flags().Changed("integration") {
		names, _ := cmd.Flags().GetStringSlice("integration")
		env.Integration = make([]model.ChannelType, 0, len(names))
		for _, n := range names {
			c, err := model.ParseChannelType(n)
			if err != nil {
				return env, err
			}
			env.Integration = append(env.Integration, c)
		}
	}
	return env, nil
}

func addEmitFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("data", "", "event data as JSON")
	f.String("data-file", "", "read event data from a JSON file")
	f.String("origin", "cli", "origin recorded on the envelope")
	f.String("sender", "", "sender recorded on the envelope")
	f.String("apikey", "", "instance API key forwarded to channels")
	f.Bool("local", false, "deliver only to in-process channels")
	f.StringSlice("integration", nil, "restrict delivery to these channels")
	f.Bool("via-nats", false, "publish on the inbound NATS subject instead of calling the API")
	f.String("nats-url", os.Getenv("SWITCHBOARD_NATS_URL"), "NATS URL for --via-nats")
	f.String("subject", events.DefaultInboundSubject, "inbound subject for --via-nats")
}

func init() {
	addEmitFlags(emitCmd)
}

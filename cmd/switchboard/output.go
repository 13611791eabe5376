package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/presence"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/ui"
)

func printJSON(w io.Writer, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(data))
}

func printRecord(w io.Writer, rec *model.ChannelRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Instance:\t%s\n", rec.InstanceName)
	fmt.Fprintf(tw, "Channel:\t%s\n", rec.Channel)
	fmt.Fprintf(tw, "State:\t%s\n", ui.RenderEnabled(rec.Enabled))
	events := "all"
	if len(rec.Events) > 0 {
		events = strings.Join(rec.Events, ", ")
	}
	fmt.Fprintf(tw, "Events:\t%s\n", events)
	if h := rec.Webhook; h != nil {
		fmt.Fprintf(tw, "URL:\t%s\n", h.URL)
		fmt.Fprintf(tw, "By events:\t%t\n", h.ByEvents)
		fmt.Fprintf(tw, "Base64:\t%t\n", h.Base64)
		keys := make([]string, 0, len(h.Headers))
		for k := range h.Headers {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(tw, "Header:\t%s\n", k)
		}
	}
	if p := rec.Pusher; p != nil {
		fmt.Fprintf(tw, "App ID:\t%s\n", p.AppID)
		fmt.Fprintf(tw, "Key:\t%s\n", p.Key)
		fmt.Fprintf(tw, "Cluster:\t%s\n", p.Cluster)
		fmt.Fprintf(tw, "TLS:\t%t\n", p.UseTLS)
	}
	if !rec.UpdatedAt.IsZero() {
		fmt.Fprintf(tw, "Updated:\t%s\n", ui.RenderMuted(rec.UpdatedAt.Format(time.DateTime)))
	}
	tw.Flush()
}

func printInstances(w io.Writer, entries []presence.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No instances reported.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTANCE\tSTATE\tIDLE\tREPORTS")
	for _, e := range entries {
		state := ui.RenderState(string(e.State))
		if e.Reaped {
			state += ui.RenderMuted(" (reaped)")
		}
		idle := (time.Duration(e.IdleSecs) * time.Second).String()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", e.Instance, state, idle, e.ReportCount)
	}
	tw.Flush()
}

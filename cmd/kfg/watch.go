package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/groblegark/kconfig/internal/events"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream live change events for a project",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if natsURL, _ := cmd.Flags().GetString("nats"); natsURL != "" {
			return watchNATS(ctx, natsURL)
		}

		if err := requireProject(); err != nil {
			return err
		}
		eventsCh, err := kfgClient.Watch(ctx, projectID)
		if err != nil {
			return err
		}
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-eventsCh:
				if !ok {
					return fmt.Errorf("stream closed by server")
				}
				fmt.Printf("%s %s\n", ev.Topic, truncate(string(ev.Data), 200))
			}
		}
	},
}

// watchNATS tails the event bus directly instead of the per-project SSE
// stream. Sees every project and the audit trail.
func watchNATS(ctx context.Context, url string) error {
	sub, err := events.NewNATSSubscriber(url)
	if err != nil {
		return err
	}
	defer sub.Close()

	msgs, cancel, err := sub.Subscribe("kconfig.>")
	if err != nil {
		return err
	}
	defer cancel()

	fmt.Fprintf(os.Stderr, "watching kconfig.> on %s\n", url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			fmt.Println(truncate(string(msg), 200))
		}
	}
}

func init() {
	watchCmd.Flags().String("nats", "", "subscribe to a NATS URL instead of the server stream")
}

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DoctorGattino/blog/events"

	"github.com/spf13/cobra"
)

func newEventsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Mutation event stream",
	}

	var (
		group  string
		asJSON bool
	)
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Follow mutation events published to Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(a.cfg.Kafka.Brokers) == 0 {
				return fmt.Errorf("KAFKA_BROKERS is not set")
			}
			out := cmd.OutOrStdout()
			consumer, err := events.NewConsumer(events.ConsumerConfig{
				Brokers: a.cfg.Kafka.Brokers,
				Topic:   a.cfg.Kafka.Topic,
				GroupID: group,
				Logger:  a.logger,
				Handler: func(ctx context.Context, e events.MutationEvent) error {
					if asJSON {
						return json.NewEncoder(out).Encode(e)
					}
					line := fmt.Sprintf("%s  %-10s %-10s %s", e.At.Format("15:04:05.000"), e.Kind, e.Outcome, e.Slug)
					if e.Error != "" {
						line += "  " + e.Error
					}
					_, err := fmt.Fprintln(out, line)
					return err
				},
			})
			if err != nil {
				return fmt.Errorf("connecting to kafka: %w", err)
			}
			defer consumer.Close()

			if err := consumer.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			return nil
		},
	}
	tail.Flags().StringVar(&group, "group", "blog-events-tail", "consumer group id")
	tail.Flags().BoolVar(&asJSON, "json", false, "print raw JSON events")
	cmd.AddCommand(tail)
	return cmd
}

package outbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/orgsync/platform/go/persistence"
)

// Command groups outbox inspection helpers for operators.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect the outbox event log",
	}

	cmd.AddCommand(pendingCommand())
	return cmd
}

func pendingCommand() *cobra.Command {
	var (
		databaseURL string
		consumers   []string
		olderThan   time.Duration
	)

	c := &cobra.Command{
		Use:   "pending",
		Short: "List incomplete events and the consumers still owing an acknowledgment",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			store, err := persistence.NewOutboxStore(pool)
			if err != nil {
				return fmt.Errorf("init outbox store: %w", err)
			}

			cutoff := time.Now().UTC().Add(-olderThan)
			pending, err := store.PendingOlderThan(ctx, cutoff, consumers)
			if err != nil {
				return fmt.Errorf("load pending events: %w", err)
			}

			if len(pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending events.")
				return nil
			}

			for _, p := range pending {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s org=%s recorded=%s missing=%s\n",
					p.ID, p.EventType, p.OrganizationID,
					p.RecordedAt.Format(time.RFC3339),
					strings.Join(p.MissingConsumers, ","))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d pending event(s).\n", len(pending))
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringSliceVar(&consumers, "consumers", []string{"state-publisher", "client-reconciler", "tenant-provisioner"}, "Consumer ids to check acknowledgments for")
	c.Flags().DurationVar(&olderThan, "older-than", 0, "Only list events older than this duration")
	_ = c.MarkFlagRequired("database-url")

	return c
}

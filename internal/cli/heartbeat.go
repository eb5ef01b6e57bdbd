package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"riskgate/internal/ingest"
)

func newHeartbeatCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heartbeat",
		Short: "Pipeline heartbeat ingestion",
		Long: `Apply and inspect upstream pipeline heartbeats. Applying the same
message id twice is a no-op, and an event older than the last applied
one is recorded as stale without regressing state.`,
	}

	cmd.AddCommand(newHeartbeatApplyCmd(app))
	cmd.AddCommand(newHeartbeatStatusCmd(app))
	return cmd
}

func newHeartbeatApplyCmd(app *App) *cobra.Command {
	var pipelineID, messageID, status, timestamp string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a heartbeat event",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}

			ts := time.Now().UTC()
			if timestamp != "" {
				parsed, err := time.Parse(time.RFC3339, timestamp)
				if err != nil {
					return fmt.Errorf("parsing timestamp: %w", err)
				}
				ts = parsed
			}

			result, err := app.Store.Apply(cmd.Context(), ingest.Event{
				PipelineID: pipelineID,
				MessageID:  messageID,
				Timestamp:  ts,
				Status:     status,
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"result": string(result)})
			}
			switch result {
			case ingest.ResultApplied:
				output.Success("Applied")
			case ingest.ResultDuplicate:
				output.Info("Duplicate message id, no-op")
			case ingest.ResultStaleRejected:
				output.Warning("Stale event rejected, state unchanged")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pipelineID, "pipeline", "", "pipeline id")
	cmd.Flags().StringVar(&messageID, "message", "", "unique message id")
	cmd.Flags().StringVar(&status, "status", "healthy", "pipeline status")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "event timestamp (RFC3339, default now)")
	cmd.MarkFlagRequired("pipeline")
	cmd.MarkFlagRequired("message")
	return cmd
}

func newHeartbeatStatusCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <pipeline-id>",
		Short: "Show the last applied heartbeat for a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}

			st, err := app.Store.State(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if st == nil {
				output.Warning("No heartbeats applied for %s", args[0])
				return nil
			}

			if output.IsJSON() {
				return output.JSON(st)
			}
			output.Bold("Pipeline %s", st.PipelineID)
			output.Printf("  Status:       %s\n", st.Status)
			output.Printf("  Last Applied: %s\n", st.LastAppliedAt.Format(time.RFC3339))
			return nil
		},
	}
	return cmd
}

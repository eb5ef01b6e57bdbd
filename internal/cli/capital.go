package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"riskgate/internal/calendar"
	"riskgate/internal/capital"
	riskerr "riskgate/internal/errors"
	"riskgate/pkg/utils"
)

func newCapitalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capital",
		Short: "Daily capital snapshot management",
		Long: `Inspect and create the per-day capital snapshot that anchors
position sizing. A snapshot is created once per trading day and is
immutable afterward; reads verify its fingerprint.`,
	}

	cmd.AddCommand(newCapitalShowCmd(app))
	cmd.AddCommand(newCapitalInitCmd(app))
	return cmd
}

func capitalCalendar(app *App) (*calendar.Exchange, error) {
	return calendar.New(calendar.Config{
		Timezone: app.Config.Calendar.Timezone,
		Open:     app.Config.Calendar.Open,
		Close:    app.Config.Calendar.Close,
		Holidays: app.Config.Calendar.Holidays,
	})
}

func newCapitalShowCmd(app *App) *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a day's capital snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}

			cal, err := capitalCalendar(app)
			if err != nil {
				return err
			}
			if day == "" {
				day = calendar.DayKey(cal.Now(), cal.Location())
			}

			key := capital.Key{
				Tenant:     app.Config.Capital.Tenant,
				Account:    app.Config.Capital.Account,
				TradingDay: day,
			}
			snap, err := app.Store.Get(cmd.Context(), key)
			if err != nil {
				if riskerr.Is(err, riskerr.ErrNotFound) {
					output.Warning("No snapshot for %s", key.String())
					return nil
				}
				return err
			}

			if output.IsJSON() {
				return output.JSON(snap)
			}

			output.Bold("Capital Snapshot %s", key.String())
			output.Printf("  Starting Equity:       %s\n", utils.FormatUSD(snap.StartingEquity))
			output.Printf("  Starting Cash:         %s\n", utils.FormatUSD(snap.StartingCash))
			output.Printf("  Starting Buying Power: %s\n", utils.FormatUSD(snap.StartingBuyingPower))
			output.Printf("  Valid From:            %s\n", snap.ValidFrom.Format(time.RFC3339))
			output.Printf("  Expires At:            %s\n", snap.ExpiresAt.Format(time.RFC3339))
			output.Dim("  fingerprint %s", snap.Fingerprint)
			return nil
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "trading day (YYYY-MM-DD, default today)")
	return cmd
}

func newCapitalInitCmd(app *App) *cobra.Command {
	var equity, cash, buyingPower float64

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create today's capital snapshot",
		Long: `Create the snapshot for the current trading day. If one already
exists the existing snapshot is returned unchanged; the first creation
wins for the whole day.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}

			cal, err := capitalCalendar(app)
			if err != nil {
				return err
			}

			snap, err := capital.New(cal, app.Config.Capital.Tenant, app.Config.Capital.Account,
				cal.Now(), equity, cash, buyingPower)
			if err != nil {
				return err
			}

			stored, err := capital.GetOrCreateOnce(cmd.Context(), app.Store, snap)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(stored)
			}
			if stored.Fingerprint == snap.Fingerprint {
				output.Success("Snapshot created for %s", stored.TradingDay)
			} else {
				output.Info("Snapshot already exists for %s, keeping the original", stored.TradingDay)
			}
			output.Printf("  Starting Equity: %s\n", utils.FormatUSD(stored.StartingEquity))
			return nil
		},
	}

	cmd.Flags().Float64Var(&equity, "equity", 0, "starting equity")
	cmd.Flags().Float64Var(&cash, "cash", 0, "starting cash")
	cmd.Flags().Float64Var(&buyingPower, "buying-power", 0, "starting buying power")
	cmd.MarkFlagRequired("equity")
	return cmd
}

// Program replaytool is an operator CLI for manually triggering coldpath
// reconciliation on a position key, generalizing the teacher's flag-based
// -backtest/-live dispatch into cobra subcommands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/chidi150c/posengine/internal/coldpath"
	"github.com/chidi150c/posengine/internal/config"
	"github.com/chidi150c/posengine/internal/contractrules"
	"github.com/chidi150c/posengine/internal/domain"
	"github.com/chidi150c/posengine/internal/keylock"
	"github.com/chidi150c/posengine/internal/messaging/kafka"
	"github.com/chidi150c/posengine/internal/persistence/postgres"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	root := &cobra.Command{
		Use:   "replaytool",
		Short: "Operator tooling for the position engine's event store",
	}
	root.AddCommand(newReplayCmd())
	root.AddCommand(newInspectCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDB(cfg config.Config) (*gorm.DB, error) {
	return gorm.Open(gormpg.Open(cfg.PostgresDSN), &gorm.Config{})
}

func newReplayCmd() *cobra.Command {
	var tradeID, account, instrument, currency, direction, contractID string
	var quantity, price float64
	var effectiveDate string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run coldpath reconciliation for a single backdated trade",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := openDB(cfg)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}

			eff, err := time.Parse("2006-01-02", effectiveDate)
			if err != nil {
				return fmt.Errorf("parse effective-date: %w", err)
			}

			key := domain.DerivePositionKey(account, instrument, currency, domain.Direction(direction))
			trade := domain.Trade{
				TradeID:       tradeID,
				PositionKey:   key,
				Account:       account,
				Instrument:    instrument,
				Currency:      currency,
				Direction:     domain.Direction(direction),
				Type:          domain.TradeTypeIncrease,
				Quantity:      decimal.NewFromFloat(quantity),
				Price:         decimal.NewFromFloat(price),
				EffectiveDate: eff,
				ContractID:    contractID,
				CorrelationID: "replaytool-" + tradeID,
			}

			replayer := &coldpath.Replayer{
				ContractRules:     contractrules.NewStatic(nil),
				Events:            postgres.NewEventStore(db),
				Snapshots:         postgres.NewSnapshotStore(db),
				Producer:          kafka.NewProducer(cfg.KafkaBrokers),
				Locks:             keylock.New(),
				MaxReplayAttempts: 5,
			}

			if err := replayer.Replay(cmd.Context(), trade); err != nil {
				return fmt.Errorf("replay: %w", err)
			}
			fmt.Printf("reconciled %s\n", key)
			return nil
		},
	}

	cmd.Flags().StringVar(&tradeID, "trade-id", "", "trade id to insert and replay")
	cmd.Flags().StringVar(&account, "account", "", "account")
	cmd.Flags().StringVar(&instrument, "instrument", "", "instrument")
	cmd.Flags().StringVar(&currency, "currency", "", "currency")
	cmd.Flags().StringVar(&direction, "direction", "long", "long|short")
	cmd.Flags().StringVar(&contractID, "contract-id", "", "contract id (tax lot method lookup)")
	cmd.Flags().Float64Var(&quantity, "quantity", 0, "trade quantity")
	cmd.Flags().Float64Var(&price, "price", 0, "trade price")
	cmd.Flags().StringVar(&effectiveDate, "effective-date", "", "YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("trade-id")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("instrument")
	_ = cmd.MarkFlagRequired("currency")
	_ = cmd.MarkFlagRequired("effective-date")

	return cmd
}

func newInspectCmd() *cobra.Command {
	var account, instrument, currency, direction string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the current snapshot for a position key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := openDB(cfg)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}

			key := domain.DerivePositionKey(account, instrument, currency, domain.Direction(direction))
			snaps := postgres.NewSnapshotStore(db)
			snap, err := snaps.Load(cmd.Context(), key)
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account")
	cmd.Flags().StringVar(&instrument, "instrument", "", "instrument")
	cmd.Flags().StringVar(&currency, "currency", "", "currency")
	cmd.Flags().StringVar(&direction, "direction", "long", "long|short")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("instrument")
	_ = cmd.MarkFlagRequired("currency")

	return cmd
}

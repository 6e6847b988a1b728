package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/wardops/bedcast/internal/config"
	"github.com/wardops/bedcast/internal/storage"
	"github.com/wardops/bedcast/internal/train"
	"github.com/wardops/bedcast/internal/utils"
)

func trainCmd() *cobra.Command {
	var contract string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train model artifacts from the event store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd.Context(), contract)
		},
	}
	cmd.Flags().StringVar(&contract, "contract", "", "train a single contract (default: all)")
	return cmd
}

func runTrain(ctx context.Context, contract string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	store, err := storage.NewStore(storage.Config{Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN})
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		return err
	}

	pipeline := train.NewPipeline(logger, store, cfg.Aggregate.Window)

	var reports []*train.Report
	if contract != "" {
		report, err := pipeline.Train(ctx, contract, cfg.Models.Dir)
		if err != nil {
			return err
		}
		reports = append(reports, report)
	} else {
		reports, err = pipeline.TrainAll(ctx, cfg.Models.Dir)
		if err != nil {
			return err
		}
	}

	for _, report := range reports {
		logger.Info("artifact written",
			slog.String("contract", report.Contract),
			slog.Int("rows", report.Rows),
			slog.String("path", report.Path))
		for name, value := range report.Metrics {
			fmt.Printf("%s %s=%.4f\n", report.Contract, name, value)
		}
	}
	return nil
}

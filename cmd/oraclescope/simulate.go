package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oracleScope/internal/config"
	"oracleScope/internal/model"
	"oracleScope/internal/pipeline"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	series, err := cfg.Scenario.Ticks()
	if err != nil {
		return err
	}
	traj := series.Trajectory

	logger.Info("attack trajectory",
		zap.String("direction", cfg.Scenario.Direction.String()),
		zap.Float64("amount", cfg.Scenario.Amount),
		zap.Float64("pre_price", traj.PrePrice),
		zap.Float64("during_price", traj.DuringPrice),
		zap.Float64("post_price", traj.PostPrice),
		zap.Float64("peak_impact", traj.PeakImpact),
		zap.Float64("residual", traj.Residual),
	)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "attack %s amount=%g pre=%.6f during=%.6f post=%.6f impact=%.4f%% residual=%.4f%%\n",
		cfg.Scenario.Direction, cfg.Scenario.Amount,
		traj.PrePrice, traj.DuringPrice, traj.PostPrice,
		traj.PeakImpact*100, traj.Residual*100,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, closeSinks, err := openSinks(ctx, cfg.Sink, out, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	runner, err := pipeline.NewRunner(cfg.Pipeline, sink, logger)
	if err != nil {
		return err
	}
	reports, err := runner.Run(ctx, series.Ticks)
	if err != nil {
		return err
	}

	var caught []model.Flag
	for _, report := range reports {
		if report.Timestamp < series.AttackFrom {
			continue
		}
		for _, f := range report.Flags {
			if f.Kind == model.KindFlashJumpReversion || f.Kind == model.KindLargeMove {
				caught = append(caught, f)
			}
		}
	}
	logger.Info("attack window",
		zap.Int64("attack_from", series.AttackFrom),
		zap.Int64("attack_to", series.AttackTo),
		zap.Int64("recovered_at", series.RecoveredAt),
		zap.Int("jump_flags", len(caught)),
	)
	logStats(logger, runner.Stats())
	return nil
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oracleScope/internal/config"
	"oracleScope/internal/feed"
	"oracleScope/internal/model"
)

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadGenerate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ticks, err := cfg.Generator.Generate()
	if err != nil {
		return err
	}

	if cfg.Out == "-" {
		return feed.WriteTicks(cmd.OutOrStdout(), ticks)
	}
	if err := writeTicksFile(cfg.Out, ticks); err != nil {
		return err
	}

	logger.Info("feed generated",
		zap.Int64("seed", cfg.Generator.Seed),
		zap.Int("ticks", len(ticks)),
		zap.Int("venues", len(cfg.Generator.Venues)),
		zap.Bool("spike", cfg.Generator.Spike != nil),
		zap.String("out", cfg.Out),
	)
	return nil
}

// writeTicksFile writes ticks as JSONL, replacing any existing file.
func writeTicksFile(path string, ticks []model.CrossVenueTick) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}

	if err := feed.WriteTicks(file, ticks); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

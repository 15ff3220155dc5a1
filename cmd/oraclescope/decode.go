package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oracleScope/internal/chain"
	"oracleScope/internal/config"
	"oracleScope/internal/dex"
	"oracleScope/internal/feed"
	"oracleScope/internal/indexer"
	"oracleScope/internal/model"
	"oracleScope/internal/storage"
	"oracleScope/internal/trace"
)

type decodeStats struct {
	total   int
	decoded int
	skipped int
	failed  int
}

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outWriter, err := storage.NewWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := storage.NewWriter(cfg.Errors, false)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	logger.Info("decode start",
		zap.String("format", cfg.Format),
		zap.String("in", cfg.In),
		zap.Bool("from_chain", cfg.FromChain()),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
	)

	var (
		events []trace.Event
		stats  decodeStats
	)
	switch cfg.Format {
	case config.FormatLogs:
		events, err = decodeLogs(ctx, cfg, logger, outWriter, errWriter, &stats)
	default:
		events, err = decodeTrace(cfg, outWriter, errWriter, &stats)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, summary := range trace.Summarize(events) {
		fmt.Fprintf(out, "pool %s swaps=%d transfers=%d\n", summary.PoolID, summary.Swaps, summary.Transfers)
		for _, line := range summary.Lines() {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}

	venues := cfg.VenueMap
	if cfg.Format == config.FormatLogs {
		venues = checksumKeys(venues)
	}
	samples := foldSamples(events, venues, logger)
	ticks, err := feed.JoinSamples(samples)
	if err != nil {
		return fmt.Errorf("join samples: %w", err)
	}
	if cfg.Ticks != "" && len(ticks) > 0 {
		if err := writeTicksFile(cfg.Ticks, ticks); err != nil {
			return err
		}
	}

	logger.Info("decode complete",
		zap.Int("total", stats.total),
		zap.Int("decoded", stats.decoded),
		zap.Int("skipped", stats.skipped),
		zap.Int("failed", stats.failed),
		zap.Int("samples", len(samples)),
		zap.Int("ticks", len(ticks)),
	)
	return nil
}

func decodeTrace(cfg config.DecodeConfig, outWriter, errWriter *storage.Writer, stats *decodeStats) ([]trace.Event, error) {
	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	records, err := trace.ReadRecords(inputFile)
	if err != nil {
		return nil, err
	}

	decoder := trace.NewDecoder(cfg.Pairs)
	events := make([]trace.Event, 0, len(records))
	for i, record := range records {
		stats.total++
		event, err := decoder.Decode(record)
		if err != nil {
			stats.failed++
			writeDecodeError(errWriter, model.DecodeError{
				Line:    i + 1,
				TxHash:  record.TxHash,
				Address: record.Pool,
				Error:   err.Error(),
			})
			continue
		}
		if err := outWriter.Write(event); err != nil {
			return nil, err
		}
		stats.decoded++
		events = append(events, event)
	}
	return events, nil
}

func decodeLogs(ctx context.Context, cfg config.DecodeConfig, logger *zap.Logger, outWriter, errWriter *storage.Writer, stats *decodeStats) ([]trace.Event, error) {
	decoder, err := dex.NewPairDecoder(dex.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return nil, err
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	decodeCtx := dex.DecodeContext{
		Context: ctx,
		Caller:  chainClient,
		Pairs:   dex.NewPairCache(),
		Tokens:  dex.NewTokenMetaCache(),
		Logger:  logger,
	}

	var events []trace.Event
	handle := func(records []model.LogRecord) error {
		for _, record := range records {
			stats.total++
			if len(record.Topics) == 0 {
				stats.failed++
				writeDecodeError(errWriter, decodeErrorFromRecord(stats.total, record, fmt.Errorf("missing topic0")))
				continue
			}
			if !decoder.CanDecode(record.Topics[0]) {
				stats.skipped++
				continue
			}

			event, err := decoder.Decode(record, decodeCtx)
			if err != nil {
				stats.failed++
				writeDecodeError(errWriter, decodeErrorFromRecord(stats.total, record, err))
				continue
			}
			if err := outWriter.Write(event); err != nil {
				return err
			}
			stats.decoded++
			events = append(events, event)
		}
		return nil
	}

	if !cfg.FromChain() {
		inputFile, err := os.Open(cfg.In)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer inputFile.Close()

		if err := scanLogRecords(inputFile, errWriter, stats, handle); err != nil {
			return nil, err
		}
		return events, nil
	}

	addresses, err := indexer.ParseAddresses(cfg.Addresses)
	if err != nil {
		return nil, err
	}
	topic0, err := indexer.ParseTopic0(decoder.Topics())
	if err != nil {
		return nil, err
	}

	fetcher := indexer.NewFetcher(indexer.FetchConfig{
		FromBlock:    cfg.FromBlock,
		ToBlock:      cfg.ToBlock,
		Addresses:    addresses,
		Topic0:       topic0,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, logger)
	if err := fetcher.Run(ctx, handle); err != nil {
		return nil, err
	}
	return events, nil
}

// scanLogRecords feeds LogRecord lines to handle one at a time.
func scanLogRecords(r io.Reader, errWriter *storage.Writer, stats *decodeStats, handle func([]model.LogRecord) error) error {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.total++
			stats.failed++
			writeDecodeError(errWriter, model.DecodeError{Line: lineNo, Error: err.Error()})
			continue
		}
		if err := handle([]model.LogRecord{record}); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}
	return nil
}

// foldSamples turns sync and swap events into DEX samples. Events that cannot be
// priced are logged and dropped.
func foldSamples(events []trace.Event, venues map[string]string, logger *zap.Logger) []model.VenueSample {
	tracker := trace.NewReserveTracker(venues)
	samples := make([]model.VenueSample, 0, len(events))
	for _, event := range events {
		sample, ok, err := tracker.Apply(event)
		if err != nil {
			logger.Warn("event not priced",
				zap.String("tx_hash", event.TxHash),
				zap.String("pool", event.PoolID()),
				zap.Error(err),
			)
			continue
		}
		if ok {
			samples = append(samples, sample)
		}
	}
	return samples
}

// checksumKeys rewrites hex address keys in checksum form to match decoded pool ids.
func checksumKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		if common.IsHexAddress(key) {
			key = common.HexToAddress(key).Hex()
		}
		out[key] = value
	}
	return out
}

func decodeErrorFromRecord(line int, record model.LogRecord, err error) model.DecodeError {
	return model.DecodeError{
		Line:    line,
		TxHash:  record.TxHash,
		Address: record.Address,
		Topic0:  record.Topic0(),
		Error:   err.Error(),
	}
}

func writeDecodeError(writer *storage.Writer, errRecord model.DecodeError) {
	if writer == nil {
		return
	}
	_ = writer.Write(errRecord)
}

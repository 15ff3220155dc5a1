package feed

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"oracleScope/internal/model"
)

// ReadTicks parses one CrossVenueTick per line. Blank lines are skipped.
func ReadTicks(r io.Reader) ([]model.CrossVenueTick, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var (
		ticks  []model.CrossVenueTick
		lineNo int
	)
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var tick model.CrossVenueTick
		if err := json.Unmarshal(line, &tick); err != nil {
			return nil, fmt.Errorf("line %d: %v: %w", lineNo, err, model.ErrInvalidInput)
		}
		ticks = append(ticks, tick)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ticks: %w", err)
	}
	return ticks, nil
}

// WriteTicks writes ticks as JSON lines.
func WriteTicks(w io.Writer, ticks []model.CrossVenueTick) error {
	writer := bufio.NewWriter(w)
	for _, tick := range ticks {
		line, err := json.Marshal(tick)
		if err != nil {
			return fmt.Errorf("marshal tick %d: %w", tick.Timestamp, err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write tick: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush ticks: %w", err)
	}
	return nil
}

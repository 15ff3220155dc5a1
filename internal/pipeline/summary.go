package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"oracleScope/internal/model"
)

// Summary renders a report as one line for terminal output.
func Summary(report model.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ts=%d", report.Timestamp)

	point := report.Point
	if point.Defined {
		fmt.Fprintf(&b, " price=%.4f liq=%.0f", point.Price, point.TotalLiquidity)
	} else {
		b.WriteString(" price=UNDEFINED")
	}
	fmt.Fprintf(&b, " venues=%d/%d", len(point.Included()), len(point.Venues))

	if len(report.Flags) == 0 {
		b.WriteString(" flags=0")
		return b.String()
	}

	kinds := make(map[model.FlagKind]int)
	for _, f := range report.Flags {
		kinds[f.Kind]++
	}
	names := make([]string, 0, len(kinds))
	for k, n := range kinds {
		if n > 1 {
			names = append(names, fmt.Sprintf("%s×%d", k, n))
			continue
		}
		names = append(names, string(k))
	}
	sort.Strings(names)
	fmt.Fprintf(&b, " flags=%d max=%s [%s]", len(report.Flags), report.Flags.MaxSeverity(), strings.Join(names, ","))
	return b.String()
}

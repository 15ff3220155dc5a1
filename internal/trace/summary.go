package trace

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// TokenFlow totals one token's swap flow through a pool from the trader's side.
type TokenFlow struct {
	Token  string          `json:"token"`
	Sold   decimal.Decimal `json:"sold"`
	Bought decimal.Decimal `json:"bought"`
}

// Net is what the pool retained of the token: sold into it minus bought out of it.
func (f TokenFlow) Net() decimal.Decimal {
	return f.Sold.Sub(f.Bought)
}

// PoolSummary aggregates the swap flows of one pool. Transfers are counted but do
// not contribute to flows.
type PoolSummary struct {
	PoolID    string      `json:"pool_id"`
	Swaps     int         `json:"swaps"`
	Transfers int         `json:"transfers"`
	Flows     []TokenFlow `json:"flows"`
}

// Flow returns the flow entry for token.
func (s PoolSummary) Flow(token string) (TokenFlow, bool) {
	for _, f := range s.Flows {
		if f.Token == token {
			return f, true
		}
	}
	return TokenFlow{}, false
}

// Lines renders the summary as "<token>_sold: x" and "<token>_bought: y" rows with four decimals.
func (s PoolSummary) Lines() []string {
	lines := make([]string, 0, 2*len(s.Flows))
	for _, f := range s.Flows {
		if !f.Sold.IsZero() {
			lines = append(lines, fmt.Sprintf("%s_sold: %s", f.Token, f.Sold.StringFixed(4)))
		}
		if !f.Bought.IsZero() {
			lines = append(lines, fmt.Sprintf("%s_bought: %s", f.Token, f.Bought.StringFixed(4)))
		}
	}
	return lines
}

// Summarize builds per-pool summaries ordered by pool id, flows ordered by token.
// Amounts are summed as decimals so repeated float additions do not drift.
func Summarize(events []Event) []PoolSummary {
	type acc struct {
		summary PoolSummary
		flows   map[string]*TokenFlow
	}
	pools := map[string]*acc{}
	get := func(id string) *acc {
		a, ok := pools[id]
		if !ok {
			a = &acc{summary: PoolSummary{PoolID: id}, flows: map[string]*TokenFlow{}}
			pools[id] = a
		}
		return a
	}
	flow := func(a *acc, token string) *TokenFlow {
		f, ok := a.flows[token]
		if !ok {
			f = &TokenFlow{Token: token}
			a.flows[token] = f
		}
		return f
	}

	for _, ev := range events {
		switch ev.Kind {
		case KindSwap:
			if ev.Swap == nil {
				continue
			}
			a := get(ev.Swap.PoolID)
			a.summary.Swaps++
			in := flow(a, ev.Swap.TokenIn)
			in.Sold = in.Sold.Add(decimal.NewFromFloat(ev.Swap.AmountIn))
			out := flow(a, ev.Swap.TokenOut)
			out.Bought = out.Bought.Add(decimal.NewFromFloat(ev.Swap.AmountOut))
		case KindTransfer:
			if ev.Transfer == nil {
				continue
			}
			get(ev.Transfer.PoolID).summary.Transfers++
		}
	}

	out := make([]PoolSummary, 0, len(pools))
	for _, a := range pools {
		for _, f := range a.flows {
			a.summary.Flows = append(a.summary.Flows, *f)
		}
		sort.Slice(a.summary.Flows, func(i, j int) bool { return a.summary.Flows[i].Token < a.summary.Flows[j].Token })
		out = append(out, a.summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PoolID < out[j].PoolID })
	return out
}

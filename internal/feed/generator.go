package feed

import (
	"fmt"
	"math/rand"

	"oracleScope/internal/model"
)

// VenueProfile describes how one synthetic venue quotes around the common price.
type VenueProfile struct {
	ID           string
	Noise        float64
	MinLiquidity float64
	MaxLiquidity float64
	// DEX venues carry reserves derived from price and liquidity.
	DEX bool
	// StallProb is the chance a venue repeats its previous sample instead of quoting.
	StallProb float64
}

// Spike distorts one venue for a short run of ticks.
type Spike struct {
	Venue  string
	From   int
	Length int
	Factor float64
	// Drained liquidity range used while the spike is active.
	MinLiquidity float64
	MaxLiquidity float64
}

// Generator produces a deterministic multi-venue feed. Output depends only on its fields.
type Generator struct {
	Seed      int64
	Start     int64
	Step      int64
	Ticks     int
	BasePrice float64
	Drift     float64
	Noise     float64
	Venues    []VenueProfile
	Spike     *Spike
}

// DefaultVenues returns two centralized venues and one pool.
func DefaultVenues() []VenueProfile {
	return []VenueProfile{
		{ID: "CEX_A", Noise: 1.5, MinLiquidity: 800_000, MaxLiquidity: 1_200_000},
		{ID: "CEX_B", Noise: 2.0, MinLiquidity: 400_000, MaxLiquidity: 800_000},
		{ID: "DEX_POOL", Noise: 3.0, MinLiquidity: 150_000, MaxLiquidity: 350_000, DEX: true},
	}
}

// NewGenerator returns a generator with the demo defaults: 60 ticks ten seconds apart and
// a 12% spike with drained liquidity on the pool a little past the middle of the run.
func NewGenerator(seed, start int64) Generator {
	ticks := 60
	return Generator{
		Seed:      seed,
		Start:     start,
		Step:      10,
		Ticks:     ticks,
		BasePrice: 2000,
		Drift:     0.2,
		Noise:     3.0,
		Venues:    DefaultVenues(),
		Spike: &Spike{
			Venue:        "DEX_POOL",
			From:         ticks * 55 / 100,
			Length:       4,
			Factor:       1.12,
			MinLiquidity: 30_000,
			MaxLiquidity: 60_000,
		},
	}
}

func (g Generator) validate() error {
	switch {
	case g.Ticks < 0:
		return fmt.Errorf("ticks must be >= 0: %w", model.ErrInvalidInput)
	case g.Step <= 0:
		return fmt.Errorf("step must be > 0: %w", model.ErrInvalidInput)
	case !(g.BasePrice > 0):
		return fmt.Errorf("base price must be > 0: %w", model.ErrInvalidInput)
	case len(g.Venues) == 0:
		return fmt.Errorf("at least one venue is required: %w", model.ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(g.Venues))
	for _, v := range g.Venues {
		if v.ID == "" {
			return fmt.Errorf("venue id is required: %w", model.ErrInvalidInput)
		}
		if _, ok := seen[v.ID]; ok {
			return fmt.Errorf("duplicate venue %q: %w", v.ID, model.ErrInvalidInput)
		}
		seen[v.ID] = struct{}{}
		if v.MinLiquidity < 0 || v.MaxLiquidity < v.MinLiquidity {
			return fmt.Errorf("venue %q liquidity range [%v,%v]: %w", v.ID, v.MinLiquidity, v.MaxLiquidity, model.ErrInvalidInput)
		}
	}
	return nil
}

// Generate renders the feed.
func (g Generator) Generate() ([]model.CrossVenueTick, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(g.Seed))
	last := make(map[string]model.VenueSample, len(g.Venues))
	ticks := make([]model.CrossVenueTick, 0, g.Ticks)

	price := g.BasePrice
	for i := 0; i < g.Ticks; i++ {
		price += g.Drift + rng.NormFloat64()*g.Noise
		if price <= 0 {
			price = g.BasePrice * 0.01
		}
		ts := g.Start + int64(i)*g.Step

		tick := model.CrossVenueTick{Timestamp: ts, Samples: make([]model.VenueSample, 0, len(g.Venues))}
		for _, v := range g.Venues {
			// Draws happen for every venue on every tick so one venue's settings never
			// shift another venue's random stream.
			stall := rng.Float64()
			p := price + rng.NormFloat64()*v.Noise
			liq := uniform(rng, v.MinLiquidity, v.MaxLiquidity)
			spikeLiq := 0.0
			if g.spikeActive(v.ID, i) {
				spikeLiq = uniform(rng, g.Spike.MinLiquidity, g.Spike.MaxLiquidity)
			}

			if prev, ok := last[v.ID]; ok && stall < v.StallProb {
				tick.Samples = append(tick.Samples, prev)
				continue
			}

			if spikeLiq > 0 {
				p *= g.Spike.Factor
				liq = spikeLiq
			}
			if p <= 0 {
				p = price
			}

			sample := model.VenueSample{VenueID: v.ID, Timestamp: ts, Price: p, Liquidity: liq}
			if v.DEX {
				// Depth min(A*p, B) equals liq when both legs hold the same value.
				sample.Reserves = &model.Reserves{A: liq / p, B: liq}
			}
			last[v.ID] = sample
			tick.Samples = append(tick.Samples, sample)
		}
		ticks = append(ticks, tick)
	}
	return ticks, nil
}

func (g Generator) spikeActive(venue string, i int) bool {
	if g.Spike == nil || g.Spike.Venue != venue {
		return false
	}
	return i >= g.Spike.From && i < g.Spike.From+g.Spike.Length
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

package model

// ExclusionReason explains why a venue did not contribute to a benchmark.
type ExclusionReason string

const (
	ReasonNone            ExclusionReason = ""
	ReasonStale           ExclusionReason = "stale"
	ReasonInvalidPrice    ExclusionReason = "invalid_price"
	ReasonInvalidReserves ExclusionReason = "invalid_reserves"
	ReasonNoLiquidity     ExclusionReason = "no_liquidity"
	ReasonDuplicate       ExclusionReason = "duplicate"
)

// VenueView is the staleness-annotated view of one venue inside a benchmark point.
type VenueView struct {
	VenueID   string          `json:"venue_id"`
	Price     float64         `json:"price"`
	Liquidity float64         `json:"liquidity"`
	Age       int64           `json:"age"`
	Weight    float64         `json:"weight"`
	Included  bool            `json:"included"`
	Reason    ExclusionReason `json:"reason,omitempty"`
}

// BenchmarkPoint is the aggregator output for one tick.
// When Defined is false the benchmark is undefined and Price carries no meaning.
type BenchmarkPoint struct {
	Timestamp      int64              `json:"timestamp"`
	Price          float64            `json:"price"`
	Defined        bool               `json:"defined"`
	TotalLiquidity float64            `json:"total_liquidity"`
	Weights        map[string]float64 `json:"weights"`
	Venues         []VenueView        `json:"venues"`
}

// Included returns the ids of venues that carry weight, in tick order.
func (p BenchmarkPoint) Included() []string {
	out := make([]string, 0, len(p.Venues))
	for _, v := range p.Venues {
		if v.Included {
			out = append(out, v.VenueID)
		}
	}
	return out
}

// Excluded returns the views of venues left out of the weighting.
func (p BenchmarkPoint) Excluded() []VenueView {
	out := make([]VenueView, 0)
	for _, v := range p.Venues {
		if !v.Included {
			out = append(out, v)
		}
	}
	return out
}

// Venue returns the view for venue.
func (p BenchmarkPoint) Venue(venue string) (VenueView, bool) {
	for _, v := range p.Venues {
		if v.VenueID == venue {
			return v, true
		}
	}
	return VenueView{}, false
}

// TopWeight returns the venue with the largest weight.
func (p BenchmarkPoint) TopWeight() (string, float64) {
	var (
		top    string
		weight float64
	)
	for _, v := range p.Venues {
		if v.Included && v.Weight > weight {
			top, weight = v.VenueID, v.Weight
		}
	}
	return top, weight
}

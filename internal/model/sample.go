package model

// Reserves holds constant-product pool reserves for a DEX venue.
type Reserves struct {
	A float64 `json:"reserve_a"`
	B float64 `json:"reserve_b"`
}

// VenueSample is one price/liquidity observation from a single venue.
type VenueSample struct {
	VenueID   string    `json:"venue_id"`
	Timestamp int64     `json:"timestamp"`
	Price     float64   `json:"price"`
	Liquidity float64   `json:"liquidity"`
	Reserves  *Reserves `json:"reserves,omitempty"`
}

// IsDEX reports whether the sample carries pool reserves.
func (s VenueSample) IsDEX() bool {
	return s.Reserves != nil
}

// CrossVenueTick groups the samples observed at one logical timestamp.
// A venue without a sample is absent for the tick, which is not the same as stale.
type CrossVenueTick struct {
	Timestamp int64         `json:"timestamp"`
	Samples   []VenueSample `json:"samples"`
}

// Sample returns the first sample for venue.
func (t CrossVenueTick) Sample(venue string) (VenueSample, bool) {
	for _, s := range t.Samples {
		if s.VenueID == venue {
			return s, true
		}
	}
	return VenueSample{}, false
}

package source

// Filter holds the retention gates: a numeric overall threshold and a
// minimum credibility tier, composed by AND.
type Filter struct {
	Threshold float64
	MinTier   CredibilityTier
}

// Retain reports whether a scored source passes the filter.
func (f Filter) Retain(src *Source) bool {
	return src.Quality.Overall >= f.Threshold && src.Tier.Rank() >= f.MinTier.Rank()
}

// Partition splits scored sources into retained and filtered sets,
// preserving order.
func (f Filter) Partition(sources []*Source) (retained, filtered []*Source) {
	for _, src := range sources {
		if f.Retain(src) {
			retained = append(retained, src)
		} else {
			filtered = append(filtered, src)
		}
	}
	return retained, filtered
}

package strategy

// CreateRequest describes a new strategy. Venue and Mode default to
// binance and paper.
type CreateRequest struct {
	Name      string
	Type      string
	Params    map[string]float64
	Symbol    string
	Venue     string
	Mode      string
	MLModelID *uint
}

// UpdateRequest changes only the fields that are set.
type UpdateRequest struct {
	Params    map[string]float64
	MLModelID *uint
}

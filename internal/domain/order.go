package domain

// Order is a completed order handed to the order sink. ItemType always
// equals a catalog entry name exactly, never a raw user string, and
// Quantity is already clamped.
type Order struct {
	Product  string `json:"product"`
	ItemType string `json:"ptype"`
	Quantity int    `json:"qty"`
}

// PendingOrder accumulates order fields across conversation turns. It is
// discarded once persisted or cancelled.
type PendingOrder struct {
	ItemType string
	Quantity int
}

// OrderFields is the result of extracting order information from one
// free-text sentence. ItemType is empty when no type could be located.
type OrderFields struct {
	Quantity int
	ItemType string
}

// ClampQuantity forces q into [min, max]. Clamping happens at order
// finalization, not at extraction, so the dialogue can re-prompt instead of
// silently rewriting what the user said mid-flow.
func ClampQuantity(q, min, max int) int {
	if q < min {
		return min
	}
	if q > max {
		return max
	}
	return q
}

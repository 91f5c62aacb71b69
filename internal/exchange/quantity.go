package exchange

import "math"

// NormalizeQty adjusts a raw base-asset quantity so the exchange will
// accept it: floor to the nearest stepSize multiple, then clamp into
// [minQty, maxQty].
func NormalizeQty(qty float64, lot LotSize) float64 {
	if lot.StepSize > 0 {
		qty = math.Floor(qty/lot.StepSize) * lot.StepSize
	}
	if qty < lot.MinQty {
		qty = lot.MinQty
	}
	if qty > lot.MaxQty {
		qty = lot.MaxQty
	}
	return qty
}

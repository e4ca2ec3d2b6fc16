// Package money holds the pure price math shared by the cart summary
// preview and checkout. Nothing here touches the database or the clock.
package money

import "math"

const earthRadiusKm = 6371

// Line is the minimal shape the calculator needs from a cart or order line.
type Line struct {
	UnitPrice float64
	Quantity  int
}

// Round2 rounds to two decimal places, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func Subtotal(lines []Line) float64 {
	var sum float64
	for _, l := range lines {
		sum += l.UnitPrice * float64(l.Quantity)
	}
	return Round2(sum)
}

func Tax(subtotal, rate float64) float64 {
	return Round2(subtotal * rate)
}

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// DeliveryFee prices a delivery from the chef's location to the customer's
// coordinates. Withholding the fee for pickup or missing coordinates is the
// caller's decision; this function always computes.
func DeliveryFee(baseFee, perKmRate, chefLat, chefLon, custLat, custLon float64) float64 {
	dist := HaversineKm(chefLat, chefLon, custLat, custLon)
	return Round2(baseFee + perKmRate*dist)
}

// AllocateDiscount splits a cart-level discount across chef-group subtotals
// proportionally. Rounding remainder goes to the first share so the shares
// always sum to exactly the (capped) discount. The discount is capped at the
// sum of the subtotals.
func AllocateDiscount(discount float64, subtotals []float64) []float64 {
	shares := make([]float64, len(subtotals))
	if discount <= 0 || len(subtotals) == 0 {
		return shares
	}

	var total float64
	for _, s := range subtotals {
		total += s
	}
	if total <= 0 {
		return shares
	}
	if discount > total {
		discount = total
	}

	var allocated float64
	for i, s := range subtotals {
		shares[i] = Round2(discount * s / total)
		allocated += shares[i]
	}
	shares[0] = Round2(shares[0] + discount - allocated)
	return shares
}

// FinalAmount never goes below zero even when the discount share exceeds
// the charges.
func FinalAmount(subtotal, deliveryFee, tax, discount float64) float64 {
	v := Round2(subtotal + deliveryFee + tax - discount)
	if v < 0 {
		return 0
	}
	return v
}

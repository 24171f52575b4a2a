package domain

// AllocateDiscount splits discount across prices in proportion to each price,
// flooring every share and handing the remainder out one cent at a time in
// cart order. The result never exceeds a price and sums to min(discount, total).
func AllocateDiscount(prices []int64, discount int64) []int64 {
	paid := make([]int64, len(prices))
	copy(paid, prices)

	var total int64
	for _, p := range prices {
		total += p
	}
	if discount <= 0 || total <= 0 {
		return paid
	}
	if discount >= total {
		for i := range paid {
			paid[i] = 0
		}
		return paid
	}

	var allocated int64
	for i, p := range prices {
		share := p * discount / total
		paid[i] = p - share
		allocated += share
	}

	remainder := discount - allocated
	for remainder > 0 {
		progressed := false
		for i := range paid {
			if remainder == 0 {
				break
			}
			if paid[i] > 0 {
				paid[i]--
				remainder--
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return paid
}

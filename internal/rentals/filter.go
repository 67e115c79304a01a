package rentals

// Filter returns the records dated within r, inclusive on both ends, in
// their original order. An inverted range selects nothing.
func Filter(table Table, r DateRange) Table {
	out := make(Table, 0, len(table))
	if r.Empty() {
		return out
	}

	for _, rec := range table {
		if r.Contains(rec.Date) {
			out = append(out, rec)
		}
	}
	return out
}

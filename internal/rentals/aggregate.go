package rentals

const (
	CategoryCasual     = "casual"
	CategoryRegistered = "registered"
)

type Totals struct {
	Total      int64 `json:"total"`
	Casual     int64 `json:"casual"`
	Registered int64 `json:"registered"`
}

// CategoryTotal is one bar of the customer types chart.
type CategoryTotal struct {
	UserType    string `json:"user_type"`
	RentalCount int64  `json:"rental_count"`
}

// Sum adds up the rental counts of every record. An empty table sums to zero.
func Sum(table Table) Totals {
	var totals Totals
	for _, rec := range table {
		totals.Total += rec.TotalCount
		totals.Casual += rec.CasualCount
		totals.Registered += rec.RegisteredCount
	}
	return totals
}

// Categories lists the per-category sums, casual first.
func (t Totals) Categories() []CategoryTotal {
	return []CategoryTotal{
		{UserType: CategoryCasual, RentalCount: t.Casual},
		{UserType: CategoryRegistered, RentalCount: t.Registered},
	}
}

func (t Totals) CategoryMap() map[string]int64 {
	return map[string]int64{
		CategoryCasual:     t.Casual,
		CategoryRegistered: t.Registered,
	}
}

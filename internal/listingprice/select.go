package listingprice

import "github.com/google/uuid"

// SelectCheapest keeps one quote per rule: the one with the smallest gross, earliest on ties.
// Rules appear in the order they were first seen in quotes.
func SelectCheapest(quotes []Quote) []Quote {
	if len(quotes) == 0 {
		return nil
	}
	index := make(map[uuid.UUID]int)
	winners := make([]Quote, 0)
	for _, q := range quotes {
		pos, seen := index[q.RuleID]
		if !seen {
			index[q.RuleID] = len(winners)
			winners = append(winners, q)
			continue
		}
		// strict less keeps the earlier quote on equal gross
		if q.Price.Gross.LessThan(winners[pos].Price.Gross) {
			winners[pos] = q
		}
	}
	return winners
}

package feed

// Latest returns the newest observation for symbol whose close is present
// and finite. Invalid rows are dropped before the newest is chosen, so a
// trailing NaN bar never hides an earlier valid one. For equal timestamps,
// later input wins. ok is false when the symbol is absent or has no valid rows.
func Latest(t Table, symbol string) (obs Observation, ok bool) {
	for _, o := range t[symbol] {
		if !o.Valid() {
			continue
		}
		if !ok || !o.Time.Before(obs.Time) {
			obs = o
			ok = true
		}
	}
	return obs, ok
}

// LatestAll resolves Latest for every symbol. Symbols without a valid
// observation are returned in missing, in request order.
func LatestAll(t Table, symbols []string) (found map[string]Observation, missing []string) {
	found = make(map[string]Observation, len(symbols))
	for _, s := range symbols {
		if o, ok := Latest(t, s); ok {
			found[s] = o
			continue
		}
		missing = append(missing, s)
	}
	return found, missing
}

// Merge combines tables; rows for the same symbol are appended in argument order.
func Merge(tables ...Table) Table {
	out := make(Table)
	for _, t := range tables {
		for sym, obs := range t {
			out[sym] = append(out[sym], obs...)
		}
	}
	return out
}

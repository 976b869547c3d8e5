package domain

// ReconcileResult counts the changes a reconciliation made.
type ReconcileResult struct {
	// Added is the number of remote quotes appended because their text was new.
	Added int

	// Updated is the number of local quotes whose category was overwritten.
	Updated int
}

// Changed reports whether the reconciliation modified anything.
func (r ReconcileResult) Changed() bool {
	return r.Added > 0 || r.Updated > 0
}

// Reconcile merges remote into local using remote-wins by natural key.
//
// Every local quote whose text equals a remote quote's text takes the
// remote fields. Remote quotes with unseen texts are appended in batch
// order. A text repeated within the batch counts once, at its first
// position, carrying its last value. Only real changes are counted, so
// reconciling the same batch twice yields the same slice and a zero
// result the second time.
//
// local is not modified.
func Reconcile(local, remote []Quote) ([]Quote, ReconcileResult) {
	merged := append([]Quote(nil), local...)

	var result ReconcileResult

	index := make(map[string][]int, len(merged))
	for i, q := range merged {
		index[q.Key()] = append(index[q.Key()], i)
	}

	for _, r := range collapseBatch(remote) {
		positions, found := index[r.Key()]
		if !found {
			index[r.Key()] = []int{len(merged)}
			merged = append(merged, r)
			result.Added++

			continue
		}

		for _, i := range positions {
			if merged[i] != r {
				merged[i] = r
				result.Updated++
			}
		}
	}

	return merged, result
}

// collapseBatch keeps one entry per text: first position, last value.
func collapseBatch(batch []Quote) []Quote {
	collapsed := make([]Quote, 0, len(batch))
	position := make(map[string]int, len(batch))

	for _, q := range batch {
		if i, ok := position[q.Key()]; ok {
			collapsed[i] = q
			continue
		}

		position[q.Key()] = len(collapsed)
		collapsed = append(collapsed, q)
	}

	return collapsed
}

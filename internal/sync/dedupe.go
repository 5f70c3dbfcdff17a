package sync

// Deduplicator merges records across all configurations executed in one
// run, keyed by the provider-native unique id. First-seen order is
// preserved: earlier configurations rank higher, so their copy of a record
// wins. Membership is a hash set rather than a scan over the accumulated
// batch, so adding n records stays O(n).
type Deduplicator struct {
	idOf    func(ExternalRecord) string
	seen    map[string]struct{}
	records []ExternalRecord
}

func NewDeduplicator(idOf func(ExternalRecord) string) *Deduplicator {
	return &Deduplicator{
		idOf: idOf,
		seen: make(map[string]struct{}),
	}
}

// Add folds a batch into the accumulated set and returns how many records
// were new. Records without a unique id are discarded: they can neither be
// deduplicated nor upserted.
func (d *Deduplicator) Add(batch []ExternalRecord) int {
	added := 0
	for _, rec := range batch {
		id := d.idOf(rec)
		if id == "" {
			continue
		}
		if _, ok := d.seen[id]; ok {
			continue
		}
		d.seen[id] = struct{}{}
		d.records = append(d.records, rec)
		added++
	}
	return added
}

// Records returns the deduplicated records in first-seen order.
func (d *Deduplicator) Records() []ExternalRecord {
	return d.records
}

func (d *Deduplicator) Len() int {
	return len(d.records)
}

package domain

// RecordMap collects candidate revisions per GUID for one resolve pass.
// It is transient and not safe for concurrent use.
type RecordMap struct {
	order      []GUID
	candidates map[GUID][]Record
}

// NewRecordMap creates an empty RecordMap.
func NewRecordMap() *RecordMap {
	return &RecordMap{candidates: make(map[GUID][]Record)}
}

// Add appends a candidate for its GUID.
func (m *RecordMap) Add(r Record) {
	if _, ok := m.candidates[r.GUID]; !ok {
		m.order = append(m.order, r.GUID)
	}
	m.candidates[r.GUID] = append(m.candidates[r.GUID], r)
}

// GUIDs returns the GUIDs in the order they were first added.
func (m *RecordMap) GUIDs() []GUID {
	out := make([]GUID, len(m.order))
	copy(out, m.order)
	return out
}

// Candidates returns the candidates collected for guid.
func (m *RecordMap) Candidates(guid GUID) []Record {
	return m.candidates[guid]
}

// Len returns the number of distinct GUIDs.
func (m *RecordMap) Len() int {
	return len(m.order)
}

// Fold resolves every candidate for guid into existing, in insertion
// order, and returns the canonical result. The returned bool reports
// whether the result differs from existing.
//
// Candidates that conflict are returned separately so the caller can keep
// them as siblings; folding continues past them.
func (m *RecordMap) Fold(guid GUID, existing *Record) (Record, bool, []Record, error) {
	var current *Record
	if existing != nil {
		c := existing.Clone()
		current = &c
	}
	var conflicts []Record
	for _, candidate := range m.candidates[guid] {
		merged, err := Resolve(current, candidate)
		if err != nil {
			if IsPermanent(err) {
				conflicts = append(conflicts, candidate)
				continue
			}
			return Record{}, false, nil, err
		}
		current = &merged
	}
	if current == nil {
		return Record{}, false, conflicts, ErrNotFound
	}
	if existing == nil {
		current.Revision = 1
		return *current, true, conflicts, nil
	}
	if current.Revision == existing.Revision {
		return *existing, false, conflicts, nil
	}
	// Intermediate merges each bumped the revision; the write is one step.
	current.Revision = existing.Revision + 1
	return *current, true, conflicts, nil
}

package domain

import "time"

// ChangeType represents the type of record mutation.
type ChangeType int

const (
	// ChangeCreated indicates a new record.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a new revision of an existing record.
	ChangeUpdated

	// ChangeDeleted indicates a tombstone revision.
	ChangeDeleted

	// ChangeSibling indicates a candidate revision kept beside the
	// canonical record for a later resolve.
	ChangeSibling
)

func (t ChangeType) String() string {
	switch t {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	case ChangeSibling:
		return "sibling"
	default:
		return "unknown"
	}
}

// Change is one entry of the document store's mutation log.
type Change struct {
	// Seq is the store's monotonically increasing sequence number.
	Seq int64

	GUID     GUID
	Kind     RecordKind
	Revision int
	Type     ChangeType

	// Origin is the provenance source of the written revision.
	Origin Source

	// Record is the written revision. Stores may omit it.
	Record *Record

	At time.Time
}

// ChangeFromRecord describes the write of r as a change entry.
func ChangeFromRecord(r Record) Change {
	typ := ChangeUpdated
	switch {
	case r.Tombstone:
		typ = ChangeDeleted
	case r.Revision <= 1:
		typ = ChangeCreated
	}
	rec := r.Clone()
	return Change{
		GUID:     r.GUID,
		Kind:     r.Kind,
		Revision: r.Revision,
		Type:     typ,
		Origin:   r.Provenance.Source,
		Record:   &rec,
	}
}

// ChangeBatch is a group of changes delivered together, in Seq order.
type ChangeBatch struct {
	Changes []Change
}

// LastSeq returns the highest sequence in the batch, or 0 when empty.
func (b ChangeBatch) LastSeq() int64 {
	if len(b.Changes) == 0 {
		return 0
	}
	return b.Changes[len(b.Changes)-1].Seq
}

// ChangeCursor is the durable position of a change consumer.
// Sequence is the last fully processed change.
type ChangeCursor struct {
	Name      string
	Sequence  int64
	UpdatedAt time.Time
}

// DefaultCursorName is the cursor used by the pipeline's consumer.
const DefaultCursorName = "pipeline"

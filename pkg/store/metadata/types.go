package metadata

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Attribute is a typed name/value pair attached to a collection.
//
// Names are unique per collection: a collection never carries two values
// for the same name.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// EntryType distinguishes collections from data objects.
type EntryType int

const (
	// EntryCollection is a container of data objects and other collections
	EntryCollection EntryType = iota

	// EntryDataObject is a logical data object with one or more replicas
	EntryDataObject
)

func (t EntryType) String() string {
	switch t {
	case EntryCollection:
		return "collection"
	case EntryDataObject:
		return "data object"
	default:
		return "unknown"
	}
}

// ReplicaStatus is the consistency state of a single replica.
type ReplicaStatus int

const (
	// ReplicaGood is an up-to-date replica
	ReplicaGood ReplicaStatus = iota

	// ReplicaStale is a replica that no longer reflects the latest write
	ReplicaStale

	// ReplicaIntermediate is a replica with a write still in progress
	ReplicaIntermediate
)

func (s ReplicaStatus) String() string {
	switch s {
	case ReplicaGood:
		return "good"
	case ReplicaStale:
		return "stale"
	case ReplicaIntermediate:
		return "intermediate"
	default:
		return "unknown"
	}
}

// Replica is one physical copy of a data object on a storage resource.
type Replica struct {
	// Number identifies the replica within its data object, starting at 0
	Number int `json:"number"`

	// Resource is the name of the storage resource holding the replica
	Resource string `json:"resource"`

	// Size is the size reported for this replica in bytes
	Size uint64 `json:"size"`

	// Status is the consistency state of the replica
	Status ReplicaStatus `json:"status"`
}

// Collection is a namespace container.
type Collection struct {
	Path      string    `json:"path"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}

// DataObject is a logical object stored as one or more replicas.
type DataObject struct {
	ID         uuid.UUID `json:"id"`
	Path       string    `json:"path"`
	Owner      string    `json:"owner"`
	Replicas   []Replica `json:"replicas"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// LogicalSize returns the size of the object as accounted by quotas: the
// size of the lowest-numbered good replica, or 0 when no replica is good.
//
// Stale and intermediate replicas never contribute, and additional good
// replicas never add to the size.
func (o *DataObject) LogicalSize() uint64 {
	found := false
	var best Replica
	for _, r := range o.Replicas {
		if r.Status != ReplicaGood {
			continue
		}
		if !found || r.Number < best.Number {
			best = r
			found = true
		}
	}
	if !found {
		return 0
	}
	return best.Size
}

// Replica returns the replica with the given number.
func (o *DataObject) Replica(number int) (*Replica, bool) {
	for i := range o.Replicas {
		if o.Replicas[i].Number == number {
			return &o.Replicas[i], true
		}
	}
	return nil, false
}

// NextReplicaNumber returns the number to assign to a new replica.
func (o *DataObject) NextReplicaNumber() int {
	next := 0
	for _, r := range o.Replicas {
		if r.Number >= next {
			next = r.Number + 1
		}
	}
	return next
}

// SetSize rewrites every replica with the given size and marks them good.
// Used when the object content is replaced or extended in place.
func (o *DataObject) SetSize(size uint64) {
	for i := range o.Replicas {
		o.Replicas[i].Size = size
		o.Replicas[i].Status = ReplicaGood
	}
}

// Clone returns a deep copy of the object.
func (o *DataObject) Clone() *DataObject {
	c := *o
	c.Replicas = append([]Replica(nil), o.Replicas...)
	return &c
}

// Entry is the result of a Stat or a listing: either a collection or a
// data object.
type Entry struct {
	Type       EntryType
	Path       string
	Collection *Collection
	Object     *DataObject
}

// IsCollection reports whether the entry is a collection.
func (e *Entry) IsCollection() bool {
	return e.Type == EntryCollection
}

// Aggregate is the result of a hierarchy recount.
type Aggregate struct {
	// Objects is the number of distinct logical data objects
	Objects uint64

	// Bytes is the sum of LogicalSize over those objects
	Bytes uint64
}

// Add accumulates one data object into the aggregate.
func (a *Aggregate) Add(obj *DataObject) {
	a.Objects++
	a.Bytes += obj.LogicalSize()
}

// SortEntries orders entries by path.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
}

// SortAttributes orders attributes by name.
func SortAttributes(attrs []Attribute) {
	sort.Slice(attrs, func(i, j int) bool {
		return attrs[i].Name < attrs[j].Name
	})
}

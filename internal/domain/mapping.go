package domain

// MappingStatus tells whether an external id has been matched.
type MappingStatus string

const (
	MappingMapped  MappingStatus = "mapped"
	MappingPending MappingStatus = "pending"
)

// Mapping entity types.
const (
	MappingLeague    = "league"
	MappingEvent     = "event"
	MappingSelection = "selection"
)

// Mapping links a bookmaker-side identifier to an internal key. Pending rows
// record a failed automatic match and are left for manual resolution.
type Mapping struct {
	ID           string
	Source       string // bookmaker key
	Type         string // league, event, selection
	ExternalID   string
	ExternalName string
	Group        string
	InternalKey  string
	Status       MappingStatus
	Score        float64
}

// Candidate is an internal entity the mapper can match an external name to.
type Candidate struct {
	Key  string
	Name string
}

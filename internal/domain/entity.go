package domain

import "time"

// Kind distinguishes the two entity variants managed by the portal.
type Kind string

const (
	KindTicket         Kind = "ticket"
	KindServiceRequest Kind = "service_request"
)

// Valid reports whether k is one of the supported variants.
func (k Kind) Valid() bool {
	return k == KindTicket || k == KindServiceRequest
}

// DisplayPrefix is the prefix of human-readable codes issued for the kind.
func (k Kind) DisplayPrefix() string {
	if k == KindServiceRequest {
		return "SRQ"
	}
	return "TCK"
}

// Category enumerates equipment families an entity can be filed against.
type Category string

const (
	CategoryCCTV            Category = "CCTV"
	CategoryFireAlarm       Category = "Fire Alarm"
	CategoryIntruderAlarm   Category = "Intruder Alarm"
	CategoryElectrical      Category = "Electrical"
	CategoryPlumbing        Category = "Plumbing"
	CategoryAirConditioning Category = "Air Conditioning"
)

// Categories lists every accepted category in display order.
func Categories() []Category {
	return []Category{
		CategoryCCTV,
		CategoryFireAlarm,
		CategoryIntruderAlarm,
		CategoryElectrical,
		CategoryPlumbing,
		CategoryAirConditioning,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Status is the lifecycle value of an entity.
type Status string

const (
	StatusNew        Status = "New"
	StatusInProgress Status = "In Progress"
	StatusClosed     Status = "Closed"
	StatusCompleted  Status = "Completed"

	// StatusOpen is a legacy alias of StatusNew still present in older records.
	StatusOpen Status = "Open"
)

// Limits on attachments.
const (
	MaxCreateImages = 5
	MaxEntryImages  = 3
)

// Location is a geographic point.
type Location struct {
	Lat float64
	Lng float64
}

// OwnerRef links an entity to the user who submitted it.
type OwnerRef struct {
	ID   string
	Name string
}

// Entity is a Ticket or ServiceRequest.
type Entity struct {
	ID              string
	Kind            Kind
	DisplayID       string
	Category        Category
	Title           string
	Description     string
	Status          Status
	OutletName      string
	Address         string
	Location        Location
	Images          []string
	AssignedVisitAt *time.Time
	Timeline        []TimelineEntry
	Owner           OwnerRef
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (e Entity) Clone() Entity {
	out := e
	out.Images = append([]string(nil), e.Images...)
	if e.AssignedVisitAt != nil {
		visit := *e.AssignedVisitAt
		out.AssignedVisitAt = &visit
	}
	if e.Timeline != nil {
		out.Timeline = make([]TimelineEntry, len(e.Timeline))
		for i := range e.Timeline {
			out.Timeline[i] = e.Timeline[i].Clone()
		}
	}
	return out
}

package dto

import (
	"time"

	"github.com/spec-kit/service-portal/internal/domain"
)

// Location is a lat/lng pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Owner links an entity to its submitter.
type Owner struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PriceItem is one quotation line.
type PriceItem struct {
	SNo         int     `json:"sNo"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// TimelineEntry is a note or reply.
type TimelineEntry struct {
	Note       string      `json:"note"`
	AddedBy    string      `json:"addedBy"`
	AddedAt    time.Time   `json:"addedAt"`
	Images     []string    `json:"images"`
	PriceList  []PriceItem `json:"priceList,omitempty"`
	TotalPrice *float64    `json:"totalPrice,omitempty"`
}

// Entity is the wire form of a ticket or service request. Exactly one of
// TicketID and RequestID is set, depending on the kind.
type Entity struct {
	ID              string          `json:"id"`
	TicketID        string          `json:"ticketId,omitempty"`
	RequestID       string          `json:"requestId,omitempty"`
	Category        string          `json:"category"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Status          string          `json:"status"`
	OutletName      string          `json:"outletName"`
	Address         string          `json:"address"`
	Location        Location        `json:"location"`
	Images          []string        `json:"images"`
	AssignedVisitAt *time.Time      `json:"assignedVisitAt"`
	Timeline        []TimelineEntry `json:"timeline"`
	Owner           *Owner          `json:"owner,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ListResponse is a page of entities.
type ListResponse struct {
	Items   []Entity `json:"items"`
	HasMore bool     `json:"hasMore"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status        string     `json:"status"`
	VisitDateTime *time.Time `json:"visitDateTime,omitempty"`
}

// Multipart field names shared by server and client.
const (
	FieldCategory    = "category"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldOutletID    = "outletId"
	FieldImages      = "images"
	FieldNote        = "note"
	FieldVisitAt     = "visitDateTimeIso"
	FieldStatus      = "status"
	FieldPriceList   = "priceList"
	FieldTotalPrice  = "totalPrice"
)

// FromEntity converts a domain entity to its wire form.
func FromEntity(e *domain.Entity) Entity {
	out := Entity{
		ID:              e.ID,
		Category:        string(e.Category),
		Title:           e.Title,
		Description:     e.Description,
		Status:          string(e.Status),
		OutletName:      e.OutletName,
		Address:         e.Address,
		Location:        Location{Lat: e.Location.Lat, Lng: e.Location.Lng},
		Images:          nonNil(e.Images),
		AssignedVisitAt: e.AssignedVisitAt,
		Timeline:        make([]TimelineEntry, 0, len(e.Timeline)),
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
	if e.Kind == domain.KindServiceRequest {
		out.RequestID = e.DisplayID
	} else {
		out.TicketID = e.DisplayID
	}
	if e.Owner.ID != "" {
		out.Owner = &Owner{ID: e.Owner.ID, Name: e.Owner.Name}
	}
	for _, entry := range e.Timeline {
		out.Timeline = append(out.Timeline, FromTimelineEntry(entry))
	}
	return out
}

// FromTimelineEntry converts a domain timeline entry.
func FromTimelineEntry(t domain.TimelineEntry) TimelineEntry {
	return TimelineEntry{
		Note:       t.Note,
		AddedBy:    t.AddedBy,
		AddedAt:    t.AddedAt,
		Images:     nonNil(t.Images),
		PriceList:  FromPriceList(t.PriceList),
		TotalPrice: t.TotalPrice,
	}
}

// FromPriceList converts quotation lines.
func FromPriceList(items []domain.PriceItem) []PriceItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]PriceItem, 0, len(items))
	for _, item := range items {
		out = append(out, PriceItem{SNo: item.SNo, Description: item.Description, Price: item.Price})
	}
	return out
}

// ToPriceList converts wire quotation lines to domain values.
func ToPriceList(items []PriceItem) []domain.PriceItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]domain.PriceItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.PriceItem{SNo: item.SNo, Description: item.Description, Price: item.Price})
	}
	return out
}

// ToEntity converts the wire form back to a domain entity of kind.
func (d Entity) ToEntity(kind domain.Kind) domain.Entity {
	out := domain.Entity{
		ID:              d.ID,
		Kind:            kind,
		DisplayID:       d.TicketID,
		Category:        domain.Category(d.Category),
		Title:           d.Title,
		Description:     d.Description,
		Status:          domain.Status(d.Status),
		OutletName:      d.OutletName,
		Address:         d.Address,
		Location:        domain.Location{Lat: d.Location.Lat, Lng: d.Location.Lng},
		Images:          d.Images,
		AssignedVisitAt: d.AssignedVisitAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if kind == domain.KindServiceRequest {
		out.DisplayID = d.RequestID
	}
	if d.Owner != nil {
		out.Owner = domain.OwnerRef{ID: d.Owner.ID, Name: d.Owner.Name}
	}
	for _, entry := range d.Timeline {
		out.Timeline = append(out.Timeline, domain.TimelineEntry{
			EntityID:   d.ID,
			Note:       entry.Note,
			AddedBy:    entry.AddedBy,
			AddedAt:    entry.AddedAt,
			Images:     entry.Images,
			PriceList:  ToPriceList(entry.PriceList),
			TotalPrice: entry.TotalPrice,
		})
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

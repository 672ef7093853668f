package domain

import "time"

// PriceItem is one line of a price quotation attached to a reply.
type PriceItem struct {
	SNo         int
	Description string
	Price       float64
}

// TimelineEntry is an immutable note or reply on an entity.
type TimelineEntry struct {
	ID         string
	EntityID   string
	Note       string
	AddedBy    string
	AddedAt    time.Time
	Images     []string
	PriceList  []PriceItem
	TotalPrice *float64
}

// Clone returns a deep copy of the entry.
func (t TimelineEntry) Clone() TimelineEntry {
	out := t
	out.Images = append([]string(nil), t.Images...)
	out.PriceList = append([]PriceItem(nil), t.PriceList...)
	if t.TotalPrice != nil {
		total := *t.TotalPrice
		out.TotalPrice = &total
	}
	return out
}

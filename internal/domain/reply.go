package domain

import "time"

// Upload is a file selected for attachment, not yet stored.
type Upload struct {
	FileName string
	Data     []byte
}

// ReplySubmission is a validated reply ready to be sent or persisted.
type ReplySubmission struct {
	Note       string
	VisitAt    time.Time
	Status     Status
	Images     []Upload
	PriceList  []PriceItem
	TotalPrice *float64
}

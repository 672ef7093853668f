// Package stats derives dashboard counts from a loaded collection.
package stats

import (
	"github.com/spec-kit/service-portal/internal/domain"
	"github.com/spec-kit/service-portal/internal/status"
)

// Counts is the per-status breakdown of a collection.
type Counts struct {
	Total             int `json:"total"`
	New               int `json:"new"`
	InProgress        int `json:"inProgress"`
	ClosedOrCompleted int `json:"closedOrCompleted"`
	Unknown           int `json:"unknown"`
}

// Aggregate counts entities by status bucket.
// New + InProgress + ClosedOrCompleted + Unknown always equals Total.
func Aggregate(entities []domain.Entity) Counts {
	var c Counts
	for i := range entities {
		c.Total++
		switch status.Classify(entities[i].Status) {
		case status.BucketNew:
			c.New++
		case status.BucketInProgress:
			c.InProgress++
		case status.BucketTerminal:
			c.ClosedOrCompleted++
		default:
			c.Unknown++
		}
	}
	return c
}

// Open returns the number of entities not yet in a terminal status.
func (c Counts) Open() int {
	return c.New + c.InProgress
}

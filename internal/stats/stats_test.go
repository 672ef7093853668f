package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/service-portal/internal/domain"
)

func withStatuses(statuses ...domain.Status) []domain.Entity {
	out := make([]domain.Entity, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, domain.Entity{Status: s})
	}
	return out
}

func TestAggregateEmpty(t *testing.T) {
	assert.Equal(t, Counts{}, Aggregate(nil))
}

func TestAggregateCountsOpenAsNewOnce(t *testing.T) {
	c := Aggregate(withStatuses(domain.StatusOpen, domain.StatusNew, domain.StatusInProgress, domain.StatusClosed, domain.StatusCompleted, "Escalated"))
	assert.Equal(t, Counts{Total: 6, New: 2, InProgress: 1, ClosedOrCompleted: 2, Unknown: 1}, c)
	assert.Equal(t, 3, c.Open())
}

func TestAggregateBucketsSumToTotal(t *testing.T) {
	all := []domain.Status{domain.StatusOpen, domain.StatusNew, domain.StatusInProgress, domain.StatusClosed, domain.StatusCompleted, "", "??"}
	for n := 0; n < 40; n++ {
		statuses := make([]domain.Status, 0, n)
		for i := 0; i < n; i++ {
			statuses = append(statuses, all[(i*7+n)%len(all)])
		}
		entities := withStatuses(statuses...)
		c := Aggregate(entities)
		assert.Equal(t, len(entities), c.Total)
		assert.Equal(t, c.Total, c.New+c.InProgress+c.ClosedOrCompleted+c.Unknown)
	}
}

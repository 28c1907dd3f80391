// Package series groups slice records into ordered acquisition series.
package series

import (
	"sort"

	"dicomvolume/internal/models"
)

// MinSlices is the smallest series that can be stacked into a volume.
const MinSlices = 2

// Aggregate groups records by series id. Groups come back ordered by series
// id; within a group slices are stable-sorted by instance number, so records
// sharing an instance number keep their scan order.
func Aggregate(records []models.SliceRecord) []models.Series {
	index := make(map[string]int)
	var groups []models.Series

	for _, rec := range records {
		i, ok := index[rec.SeriesID]
		if !ok {
			i = len(groups)
			index[rec.SeriesID] = i
			groups = append(groups, models.Series{ID: rec.SeriesID})
		}
		groups[i].Slices = append(groups[i].Slices, rec)
	}

	for i := range groups {
		slices := groups[i].Slices
		sort.SliceStable(slices, func(a, b int) bool {
			return slices[a].InstanceNumber < slices[b].InstanceNumber
		})
	}
	sort.Slice(groups, func(a, b int) bool {
		return groups[a].ID < groups[b].ID
	})
	return groups
}

// Split partitions groups into those with at least min slices and the rest.
// Both outputs keep the input order.
func Split(groups []models.Series, min int) (qualifying, undersized []models.Series) {
	for _, g := range groups {
		if g.Len() >= min {
			qualifying = append(qualifying, g)
		} else {
			undersized = append(undersized, g)
		}
	}
	return qualifying, undersized
}

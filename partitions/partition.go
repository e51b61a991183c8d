package partitions

import (
	"github.com/pkg/errors"
)

// Partition is a set of work items executed together by one worker
type Partition struct {
	ID int

	Items    []int // Global item indices in this partition, ascending
	NumItems int
}

// PartitionLayout manages the complete decomposition of a work range
type PartitionLayout struct {
	Partitions []Partition

	MaxItems      int // max(NumItems) across all partitions
	TotalItems    int
	NumPartitions int

	// Item to partition mapping
	IToP []int // Length TotalItems: item k belongs to partition IToP[k]
}

// ValidateLayout checks that every item is owned exactly once and that the
// sizing information is consistent
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return errors.Errorf("layout has %d partitions, NumPartitions %d",
			len(pl.Partitions), pl.NumPartitions)
	}
	if len(pl.IToP) != pl.TotalItems {
		return errors.Errorf("IToP length %d != TotalItems %d", len(pl.IToP), pl.TotalItems)
	}
	seen := make([]bool, pl.TotalItems)
	actualMax := 0
	for _, p := range pl.Partitions {
		if p.NumItems != len(p.Items) {
			return errors.Errorf("partition %d: NumItems %d != %d items",
				p.ID, p.NumItems, len(p.Items))
		}
		if p.NumItems > actualMax {
			actualMax = p.NumItems
		}
		for _, it := range p.Items {
			if it < 0 || it >= pl.TotalItems {
				return errors.Errorf("partition %d: item %d out of range", p.ID, it)
			}
			if seen[it] {
				return errors.Errorf("partition %d: item %d owned twice", p.ID, it)
			}
			if pl.IToP[it] != p.ID {
				return errors.Errorf("item %d: IToP %d != owner %d", it, pl.IToP[it], p.ID)
			}
			seen[it] = true
		}
	}
	for it, ok := range seen {
		if !ok {
			return errors.Errorf("item %d not owned by any partition", it)
		}
	}
	if actualMax != pl.MaxItems {
		return errors.Errorf("computed MaxItems %d != stored MaxItems %d",
			actualMax, pl.MaxItems)
	}
	return nil
}

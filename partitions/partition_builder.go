package partitions

import (
	"math"

	"github.com/pkg/errors"
)

// PartitionStrategy defines how items are grouped
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // Consecutive items
	RoundRobin                              // Distribute cyclically
)

// PartitionBuilder splits the item range [0, NumItems) into partitions
type PartitionBuilder struct {
	NumItems            int
	TargetPartitionSize int // Desired items per partition
	Strategy            PartitionStrategy
}

// ForWorkers returns a block builder producing at most workers partitions
func ForWorkers(numItems, workers int) *PartitionBuilder {
	if workers < 1 {
		workers = 1
	}
	return &PartitionBuilder{
		NumItems:            numItems,
		TargetPartitionSize: int(math.Ceil(float64(numItems) / float64(workers))),
		Strategy:            BlockPartition,
	}
}

// BuildPartitions creates a partition layout
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.NumItems < 0 {
		return nil, errors.Errorf("invalid item count %d", pb.NumItems)
	}
	numPartitions := pb.calculateNumPartitions()
	iToP := pb.partitionItems(numPartitions)

	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i] = Partition{ID: i, Items: make([]int, 0)}
	}
	for item, part := range iToP {
		partitions[part].Items = append(partitions[part].Items, item)
		partitions[part].NumItems++
	}

	maxItems := 0
	for _, p := range partitions {
		if p.NumItems > maxItems {
			maxItems = p.NumItems
		}
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		MaxItems:      maxItems,
		TotalItems:    pb.NumItems,
		NumPartitions: numPartitions,
		IToP:          iToP,
	}
	if err := layout.ValidateLayout(); err != nil {
		return nil, errors.Wrap(err, "invalid partition layout")
	}
	return layout, nil
}

func (pb *PartitionBuilder) calculateNumPartitions() int {
	if pb.TargetPartitionSize < 1 || pb.NumItems == 0 {
		return 1
	}
	numPartitions := int(math.Ceil(float64(pb.NumItems) / float64(pb.TargetPartitionSize)))
	if numPartitions < 1 {
		numPartitions = 1
	}
	return numPartitions
}

func (pb *PartitionBuilder) partitionItems(numPartitions int) []int {
	iToP := make([]int, pb.NumItems)
	switch pb.Strategy {
	case RoundRobin:
		for i := range iToP {
			iToP[i] = i % numPartitions
		}
	default:
		per := int(math.Ceil(float64(pb.NumItems) / float64(numPartitions)))
		if per < 1 {
			per = 1
		}
		for i := range iToP {
			iToP[i] = i / per
			if iToP[i] >= numPartitions {
				iToP[i] = numPartitions - 1
			}
		}
	}
	return iToP
}

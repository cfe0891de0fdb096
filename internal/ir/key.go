package ir

// Keys carry the partition id in their high bits so that any key can be
// routed back to the partition that owns it.
const (
	partitionKeyBits = 51

	// MaxPartitionID is the largest partition id a key can encode.
	MaxPartitionID int32 = 1<<(63-partitionKeyBits) - 1

	// NoKey marks an absent key reference.
	NoKey int64 = -1
)

// EncodeKey combines a partition id and a partition-local counter.
func EncodeKey(partitionID int32, counter int64) int64 {
	return int64(partitionID)<<partitionKeyBits + counter
}

// PartitionOf extracts the partition id from a key.
func PartitionOf(key int64) int32 {
	if key < 0 {
		return 0
	}
	return int32(key >> partitionKeyBits)
}

// KeyCounter extracts the partition-local counter from a key.
func KeyCounter(key int64) int64 {
	if key < 0 {
		return key
	}
	return key & (1<<partitionKeyBits - 1)
}

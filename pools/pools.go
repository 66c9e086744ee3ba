package pools

import (
	"sync"

	"github.com/ChristianF88/searchviz/sliding"
)

// maxPooledBatch is the largest capacity handed back to the pool
const maxPooledBatch = 8192

// GlobalPools provides centralized memory pooling for the live ingest loop
type GlobalPools struct {
	TimedRecordSlices sync.Pool
}

// Pools is the global instance of memory pools
var Pools = &GlobalPools{
	TimedRecordSlices: sync.Pool{
		New: func() interface{} {
			slice := make([]sliding.TimedRecord, 0, 1024)
			return &slice
		},
	},
}

// GetTimedRecordSlice gets a batch slice from the pool and resets it
func (gp *GlobalPools) GetTimedRecordSlice() []sliding.TimedRecord {
	slicePtr := gp.TimedRecordSlices.Get().(*[]sliding.TimedRecord)
	*slicePtr = (*slicePtr)[:0] // Reset length while keeping capacity
	return *slicePtr
}

// ReturnTimedRecordSlice returns a batch slice to the pool. The window
// copies batches on insert, so the records can be released here.
func (gp *GlobalPools) ReturnTimedRecordSlice(slice []sliding.TimedRecord) {
	if cap(slice) > maxPooledBatch { // Prevent memory bloat
		return
	}
	clear(slice)
	emptySlice := slice[:0]
	gp.TimedRecordSlices.Put(&emptySlice)
}

package sliding

import (
	"time"

	"github.com/ChristianF88/searchviz/ingestor"
	"github.com/alphadose/haxmap"
)

// --- Sliding Window over streamed search nodes ---

type TimedRecord struct {
	Record *ingestor.Record
	Time   time.Time
}

type SlidingWindow struct {
	Queue      []TimedRecord
	Nodes      *haxmap.Map[int64, *ingestor.Record] // live nodes by id
	timeLimit  time.Duration
	maxEntries int
	evicted    int
	replaced   int
}

// NewSlidingWindow keeps at most maxEntries nodes no older than window. A
// zero limit disables that bound.
func NewSlidingWindow(window time.Duration, maxEntries int) *SlidingWindow {
	return &SlidingWindow{
		Queue:      make([]TimedRecord, 0),
		Nodes:      haxmap.New[int64, *ingestor.Record](1 << 16),
		timeLimit:  window,
		maxEntries: maxEntries,
	}
}

// InsertNew queues records. Records without an id live only in the queue.
func (s *SlidingWindow) InsertNew(records []TimedRecord) {
	s.Queue = append(s.Queue, records...)
	for _, tr := range records {
		if tr.Record.ID == ingestor.Missing {
			continue
		}
		if _, exists := s.Nodes.Get(tr.Record.ID); exists {
			s.replaced++
		}
		s.Nodes.Set(tr.Record.ID, tr.Record)
	}
}

func (s *SlidingWindow) evict(tr TimedRecord) {
	s.evicted++
	if tr.Record.ID == ingestor.Missing {
		return
	}
	// a newer row with the same id owns the map entry
	if current, ok := s.Nodes.Get(tr.Record.ID); ok && current == tr.Record {
		s.Nodes.Del(tr.Record.ID)
	}
}

func (s *SlidingWindow) DropOld() {
	idx := 0
	// enforce time limit
	if s.timeLimit > 0 {
		cutoff := time.Now().Add(-s.timeLimit)
		for idx < len(s.Queue) && s.Queue[idx].Time.Before(cutoff) {
			s.evict(s.Queue[idx])
			idx++
		}
	}
	// enforce max entries
	remainingLen := len(s.Queue) - idx
	if s.maxEntries > 0 && remainingLen > s.maxEntries {
		toDelete := remainingLen - s.maxEntries
		for i := 0; i < toDelete; i++ {
			s.evict(s.Queue[idx+i])
		}
		idx += toDelete
	}

	if idx > 0 {
		// Efficient memory-releasing slice copy
		s.Queue = append([]TimedRecord(nil), s.Queue[idx:]...)
	}
}

func (s *SlidingWindow) Update(records []TimedRecord) {
	s.InsertNew(records)
	s.DropOld()
}

// Len returns the number of queued rows.
func (s *SlidingWindow) Len() int {
	return len(s.Queue)
}

// Evicted returns how many rows have left the window so far.
func (s *SlidingWindow) Evicted() int {
	return s.evicted
}

// Replaced returns how many rows arrived with an id already in the window.
func (s *SlidingWindow) Replaced() int {
	return s.replaced
}

// Snapshot copies the live nodes for a rebuild and appends a synthetic root.
// Nodes whose parent has been evicted are hung under the synthetic root and
// marked Reparented, so the window always renders as one tree per restart.
// The window's own records are never handed out.
func (s *SlidingWindow) Snapshot() (records []*ingestor.Record, reparented int) {
	records = make([]*ingestor.Record, 0, len(s.Queue)+1)
	for _, tr := range s.Queue {
		if tr.Record.ID != ingestor.Missing {
			current, ok := s.Nodes.Get(tr.Record.ID)
			if !ok || current != tr.Record {
				continue
			}
		}
		c := *tr.Record
		c.Children = nil
		c.FutureNogoods = nil
		if c.ParentID >= 0 {
			if _, ok := s.Nodes.Get(c.ParentID); !ok {
				c.ParentID = ingestor.RootID
				c.Reparented = true
				reparented++
			}
		}
		records = append(records, &c)
	}
	records = append(records, ingestor.NewSyntheticRoot(len(records)))
	return records, reparented
}

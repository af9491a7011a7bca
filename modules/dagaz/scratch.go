package dagaz

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// QueryScratch holds the per-query deduplication set. A scratch may be reused
// across queries but never shared by queries running at the same time.
type QueryScratch struct {
	accepted *roaring.Bitmap
}

func NewQueryScratch() *QueryScratch {
	return &QueryScratch{
		accepted: roaring.New(),
	}
}

func (s *QueryScratch) reset() {
	s.accepted.Clear()
}

// accept records the object and reports whether it was not recorded yet.
// Slot indexes are unique among live objects, which is all a query sees.
func (s *QueryScratch) accept(h Handle) bool {
	return s.accepted.CheckedAdd(h.Index())
}

// Len returns the number of objects recorded by the last query.
func (s *QueryScratch) Len() int {
	return int(s.accepted.GetCardinality())
}

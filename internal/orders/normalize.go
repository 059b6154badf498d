package orders

import (
	"strings"
	"time"

	"orderscraper/lib/htmlutil"
)

type Verdict int

const (
	Admitted Verdict = iota
	// RejectedInvalid means the order lacks an id or a timestamp.
	RejectedInvalid
	RejectedExcluded
	RejectedTooOld
	RejectedDuplicate
)

func (v Verdict) String() string {
	switch v {
	case Admitted:
		return "admitted"
	case RejectedInvalid:
		return "invalid"
	case RejectedExcluded:
		return "excluded"
	case RejectedTooOld:
		return "too-old"
	case RejectedDuplicate:
		return "duplicate"
	}
	return "unknown"
}

type MergeStats struct {
	Added     int
	Invalid   int
	Excluded  int
	TooOld    int
	Duplicate int
}

func (s *MergeStats) count(v Verdict) {
	switch v {
	case Admitted:
		s.Added++
	case RejectedInvalid:
		s.Invalid++
	case RejectedExcluded:
		s.Excluded++
	case RejectedTooOld:
		s.TooOld++
	case RejectedDuplicate:
		s.Duplicate++
	}
}

// Add accumulates other into s.
func (s *MergeStats) Add(other MergeStats) {
	s.Added += other.Added
	s.Invalid += other.Invalid
	s.Excluded += other.Excluded
	s.TooOld += other.TooOld
	s.Duplicate += other.Duplicate
}

// Normalizer cleans extracted orders and merges them into a ResultSet.
type Normalizer struct {
	classifier Classifier
	since      time.Time
	excluded   map[Status]struct{}
}

func NewNormalizer(classifier Classifier, since time.Time, excluded []Status) Normalizer {
	set := make(map[Status]struct{}, len(excluded))
	for _, s := range excluded {
		set[s] = struct{}{}
	}
	return Normalizer{
		classifier: classifier,
		since:      since,
		excluded:   set,
	}
}

func (n Normalizer) Since() time.Time {
	return n.since
}

// Normalize returns a cleaned copy of the order: text fields are trimmed, the
// status is reclassified from its raw text and money is rounded to two places.
func (n Normalizer) Normalize(o Order) Order {
	out := o.Clone()
	out.ID = strings.TrimSpace(out.ID)
	out.RawStatus = htmlutil.CleanText(out.RawStatus)
	if out.RawStatus != "" {
		out.Status = n.classifier.Classify(out.RawStatus)
	}
	out.Total = out.Total.Round(2)

	for i := range out.Items {
		item := &out.Items[i]
		item.Name = htmlutil.CleanText(item.Name)
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		item.Price = item.Price.Round(2)
	}
	if out.ItemCount == 0 {
		out.ItemCount = len(out.Items)
	}
	return out
}

// Admit applies the filtering rules, in order: validity, excluded status, start date.
// It does not consider duplicates, see Merge.
func (n Normalizer) Admit(o Order) Verdict {
	if strings.TrimSpace(o.ID) == "" || o.PlacedAt.IsZero() {
		return RejectedInvalid
	}
	if _, excluded := n.excluded[o.Status]; excluded {
		return RejectedExcluded
	}
	if o.PlacedAt.Before(n.since) {
		return RejectedTooOld
	}
	return Admitted
}

// Merge normalizes every incoming order and inserts the admissible ones into rs.
// An id that is already present is ignored (first seen wins), so merging
// overlapping or repeated batches is idempotent. rs is the only thing mutated.
func (n Normalizer) Merge(rs *ResultSet, incoming []Order) MergeStats {
	var stats MergeStats
	for _, raw := range incoming {
		o := n.Normalize(raw)
		verdict := n.Admit(o)
		if verdict == Admitted && rs.Contains(o.ID) {
			verdict = RejectedDuplicate
		}
		stats.count(verdict)
		if verdict == Admitted {
			rs.insert(o)
		}
	}
	return stats
}

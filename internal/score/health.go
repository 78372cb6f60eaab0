// Package score implements the Health Scorer (C7), a pure function with
// no I/O. Weights and bucket boundaries are taken verbatim from §4.7.
package score

// PageType mirrors store.PageType without importing the store package,
// keeping this package dependency-free like the teacher's own scoring.go
// (pkg/agent/controller/scoring.go) which scores purely from in-memory
// inputs.
type PageType string

const (
	PageTypeLanding PageType = "landing"
	PageTypeSite    PageType = "site"
	PageTypeBlog    PageType = "blog"
	PageTypePillar  PageType = "pillar"
)

// Flagged and Critical are the total-score thresholds from §4.7.
const (
	FlaggedThreshold  = 50
	CriticalThreshold = 30
)

// Input bundles every signal the scorer reads for one page. Pointers
// distinguish "known zero" from "no data" for dimensions with a defined
// missing-data score.
type Input struct {
	PageType PageType

	// Traffic trend: percentage change in active users period-over-period.
	// nil means no analytics snapshot.
	TrafficChangePct *float64

	// SEO ranking: average search position, lower is better. nil means
	// no search snapshot.
	AvgPosition *float64

	// Page speed: Lighthouse-style performance score 0-100. nil means no
	// speed score on record.
	PerformanceScore *int

	// Content freshness: days since last update. nil means never updated.
	ContentAgeDays *int

	HasForm bool

	MissingMeta     bool
	MissingTitle    bool
	HasTitleIssue   bool // any title_too_long/title_too_short
	HasDuplicate    bool // any duplicate_title/duplicate_meta
	HasBrokenLinks  bool
	IsIndexed       bool
}

// Breakdown is the per-dimension decomposition; Total sums to the
// page's overall health score.
type Breakdown struct {
	TrafficTrend     int
	SEORanking       int
	PageSpeed        int
	ContentFreshness int
	ConversionHealth int
	TechnicalHealth  int
}

// Total sums the six dimensions (TESTABLE PROPERTIES #1: this must equal
// the persisted Page.HealthScore).
func (b Breakdown) Total() int {
	return b.TrafficTrend + b.SEORanking + b.PageSpeed + b.ContentFreshness + b.ConversionHealth + b.TechnicalHealth
}

// Score computes the weighted composite for one page.
func Score(in Input) Breakdown {
	return Breakdown{
		TrafficTrend:     trafficTrend(in.TrafficChangePct),
		SEORanking:       seoRanking(in.AvgPosition),
		PageSpeed:        pageSpeed(in.PerformanceScore),
		ContentFreshness: contentFreshness(in.ContentAgeDays),
		ConversionHealth: conversionHealth(in.HasForm, in.PageType),
		TechnicalHealth:  technicalHealth(in),
	}
}

// IsFlagged reports whether a total score requires surfacing for review.
func IsFlagged(total int) bool { return total < FlaggedThreshold }

// IsCritical reports whether a total score crosses the critical line.
func IsCritical(total int) bool { return total < CriticalThreshold }

func trafficTrend(changePct *float64) int {
	if changePct == nil {
		return 10
	}
	switch {
	case *changePct >= 0:
		return 20
	case *changePct > -10:
		return 15
	case *changePct > -30:
		return 8
	default:
		return 0
	}
}

func seoRanking(position *float64) int {
	if position == nil {
		return 0
	}
	switch {
	case *position <= 10:
		return 20
	case *position <= 20:
		return 15
	case *position <= 50:
		return 8
	default:
		return 0
	}
}

func pageSpeed(perf *int) int {
	if perf == nil {
		return 10
	}
	switch {
	case *perf >= 90:
		return 20
	case *perf >= 70:
		return 15
	case *perf >= 50:
		return 8
	default:
		return 0
	}
}

func contentFreshness(ageDays *int) int {
	if ageDays == nil {
		return 0
	}
	switch {
	case *ageDays < 90:
		return 15
	case *ageDays < 180:
		return 10
	case *ageDays < 365:
		return 5
	default:
		return 0
	}
}

func conversionHealth(hasForm bool, pageType PageType) int {
	switch {
	case hasForm:
		return 5
	case pageType == PageTypeBlog:
		return 10
	case pageType == PageTypeLanding:
		return 0
	default:
		return 8
	}
}

func technicalHealth(in Input) int {
	total := 10
	if in.MissingMeta {
		total -= 2
	}
	if in.MissingTitle {
		total -= 2
	}
	if in.HasTitleIssue {
		total--
	}
	if in.HasDuplicate {
		total--
	}
	if in.HasBrokenLinks {
		total -= 2
	}
	if !in.IsIndexed {
		total -= 2
	}
	if total < 0 {
		total = 0
	}
	return total
}

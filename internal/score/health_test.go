package score

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestScore_Dimensions(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want Breakdown
	}{
		{
			name: "all missing data",
			in:   Input{PageType: PageTypeSite, IsIndexed: true},
			want: Breakdown{TrafficTrend: 10, SEORanking: 0, PageSpeed: 10, ContentFreshness: 0, ConversionHealth: 8, TechnicalHealth: 10},
		},
		{
			name: "healthy landing page with form",
			in: Input{
				PageType:         PageTypeLanding,
				TrafficChangePct: ptr(5.0),
				AvgPosition:      ptr(4.0),
				PerformanceScore: ptr(95),
				ContentAgeDays:   ptr(10),
				HasForm:          true,
				IsIndexed:        true,
			},
			want: Breakdown{TrafficTrend: 20, SEORanking: 20, PageSpeed: 20, ContentFreshness: 15, ConversionHealth: 5, TechnicalHealth: 10},
		},
		{
			name: "declining blog page no form",
			in: Input{
				PageType:         PageTypeBlog,
				TrafficChangePct: ptr(-35.0),
				AvgPosition:      ptr(80.0),
				PerformanceScore: ptr(40),
				ContentAgeDays:   ptr(400),
				HasForm:          false,
				MissingMeta:      true,
				HasBrokenLinks:   true,
				IsIndexed:        true,
			},
			want: Breakdown{TrafficTrend: 0, SEORanking: 0, PageSpeed: 0, ContentFreshness: 0, ConversionHealth: 10, TechnicalHealth: 6},
		},
		{
			name: "technical health floors at zero",
			in: Input{
				PageType:       PageTypeSite,
				MissingMeta:    true,
				MissingTitle:   true,
				HasTitleIssue:  true,
				HasDuplicate:   true,
				HasBrokenLinks: true,
				IsIndexed:      false,
			},
			want: Breakdown{TrafficTrend: 10, SEORanking: 0, PageSpeed: 10, ContentFreshness: 0, ConversionHealth: 8, TechnicalHealth: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.in)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.want.Total(), got.Total())
		})
	}
}

// Minor traffic decline is stable: a page with a small week-over-week
// dip, good ranking, good speed, and recent content stays comfortably
// above the flagged threshold.
func TestScore_MinorTrafficDeclineStaysStable(t *testing.T) {
	in := Input{
		PageType:         PageTypeSite,
		TrafficChangePct: ptr(-8.333333333333334), // 110 vs 120
		AvgPosition:      ptr(8.0),
		PerformanceScore: ptr(95),
		ContentAgeDays:   ptr(45),
		HasForm:          true,
		IsIndexed:        true,
	}
	got := Score(in)
	want := Breakdown{TrafficTrend: 15, SEORanking: 20, PageSpeed: 20, ContentFreshness: 15, ConversionHealth: 5, TechnicalHealth: 10}
	require.Equal(t, want, got)
	require.Equal(t, 85, got.Total())
	require.False(t, IsFlagged(got.Total()))
}

// Severe decline triggers a flag: same shape as above but traffic,
// ranking, speed and freshness all collapse together with two
// technical penalties; the total must land below the critical line.
func TestScore_SevereDeclineTriggersFlag(t *testing.T) {
	in := Input{
		PageType:         PageTypeSite,
		TrafficChangePct: ptr(-58.333333333333336), // 50 vs 120
		AvgPosition:      ptr(25.0),
		PerformanceScore: ptr(45),
		ContentAgeDays:   ptr(400),
		HasForm:          true,
		MissingMeta:      true,
		HasTitleIssue:    true,
		IsIndexed:        true,
	}
	got := Score(in)
	want := Breakdown{TrafficTrend: 0, SEORanking: 8, PageSpeed: 0, ContentFreshness: 0, ConversionHealth: 5, TechnicalHealth: 7}
	require.Equal(t, want, got)
	require.Equal(t, 20, got.Total())
	require.True(t, IsFlagged(got.Total()))
	require.True(t, IsCritical(got.Total()))
}

func TestIsFlaggedAndCritical(t *testing.T) {
	require.True(t, IsFlagged(49))
	require.False(t, IsFlagged(50))
	require.True(t, IsCritical(29))
	require.False(t, IsCritical(30))
}

func TestBreakdownTotalMatchesSum(t *testing.T) {
	b := Breakdown{TrafficTrend: 20, SEORanking: 15, PageSpeed: 8, ContentFreshness: 5, ConversionHealth: 5, TechnicalHealth: 4}
	require.Equal(t, 57, b.Total())
}

// Coverage bitmap

package regions

import (
	"github.com/boljen/go-bitmap"
	"github.com/dargueta/fvkit"
)

// Extent is a half-open byte range [Offset, Offset+Length).
type Extent struct {
	Offset int64
	Length int64
}

// CoverageMap records which parts of an image have been identified, in units
// of a fixed size. A unit counts as claimed if any byte of it was claimed.
type CoverageMap struct {
	ClaimedUnits bitmap.Bitmap
	Origin       int64
	UnitSize     int64
	TotalUnits   int
	end          int64
}

// NewCoverageMap creates a map of [origin, end) with nothing claimed.
func NewCoverageMap(origin, end int64, unitSize int) (*CoverageMap, error) {
	if unitSize <= 0 || end < origin {
		return nil, fvkit.Errorf(
			fvkit.ErrInvalidArgument,
			"bad coverage range [%#x, %#x) with unit size %d",
			origin,
			end,
			unitSize,
		)
	}

	totalUnits := int((end - origin + int64(unitSize) - 1) / int64(unitSize))
	return &CoverageMap{
		ClaimedUnits: bitmap.New(totalUnits),
		Origin:       origin,
		UnitSize:     int64(unitSize),
		TotalUnits:   totalUnits,
		end:          end,
	}, nil
}

// CoverageOf builds a coverage map of [origin, end) with every descriptor and
// volume region claimed. Unknown regions don't count as identified.
func CoverageOf(regions []Region, origin, end int64, unitSize int) (*CoverageMap, error) {
	coverage, err := NewCoverageMap(origin, end, unitSize)
	if err != nil {
		return nil, err
	}
	for _, region := range regions {
		if region.Kind != KindUnknown {
			coverage.Claim(region.Offset, int64(len(region.Data)))
		}
	}
	return coverage, nil
}

// Claim marks the units overlapping [offset, offset+length) as claimed. The
// parts of the range outside the map are ignored.
func (m *CoverageMap) Claim(offset, length int64) {
	first, last, ok := m.unitRange(offset, length)
	if !ok {
		return
	}
	for i := first; i <= last; i++ {
		m.ClaimedUnits.Set(i, true)
	}
}

// IsClaimed returns true if the unit containing `offset` is claimed.
func (m *CoverageMap) IsClaimed(offset int64) bool {
	if offset < m.Origin || offset >= m.end {
		return false
	}
	return m.ClaimedUnits.Get(int((offset - m.Origin) / m.UnitSize))
}

// ClaimedBytes returns the number of bytes in claimed units.
func (m *CoverageMap) ClaimedBytes() int64 {
	total := int64(0)
	for _, extent := range m.runs(true) {
		total += extent.Length
	}
	return total
}

// Unclaimed returns every maximal run of unclaimed units, in offset order.
func (m *CoverageMap) Unclaimed() []Extent {
	return m.runs(false)
}

func (m *CoverageMap) unitRange(offset, length int64) (int, int, bool) {
	start := max(offset, m.Origin)
	stop := min(offset+length, m.end)
	if length <= 0 || start >= stop {
		return 0, 0, false
	}
	return int((start - m.Origin) / m.UnitSize), int((stop - 1 - m.Origin) / m.UnitSize), true
}

// runs returns the extents of every maximal run of units set to `value`,
// clamped to the end of the map.
func (m *CoverageMap) runs(value bool) []Extent {
	var extents []Extent
	runStart := -1

	for i := 0; i <= m.TotalUnits; i++ {
		if i < m.TotalUnits && m.ClaimedUnits.Get(i) == value {
			if runStart < 0 {
				// First unit of a new run.
				runStart = i
			}
			continue
		}
		if runStart < 0 {
			continue
		}

		// We hit the opposite value or ran off the end, so this is the end of
		// the run.
		offset := m.Origin + int64(runStart)*m.UnitSize
		stop := min(m.Origin+int64(i)*m.UnitSize, m.end)
		extents = append(extents, Extent{Offset: offset, Length: stop - offset})
		runStart = -1
	}
	return extents
}

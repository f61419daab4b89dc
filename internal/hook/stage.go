package hook

import (
	"fmt"
	"math"
)

// Stage range sentinels.
const (
	// MinStage is the unbounded-below sentinel.
	MinStage int64 = math.MinInt64

	// MaxStage is the unbounded-above sentinel.
	MaxStage int64 = math.MaxInt64
)

// SafeStage clamps a stage to the int32 domain.
func SafeStage(stage int64) int32 {
	switch {
	case stage < math.MinInt32:
		return math.MinInt32
	case stage > math.MaxInt32:
		return math.MaxInt32
	default:
		return int32(stage)
	}
}

// StageRange is the half-open interval [From, To) over tap stages.
type StageRange struct {
	From int64
	To   int64
}

// AllStages covers every stage.
var AllStages = StageRange{From: MinStage, To: MaxStage}

// Contains reports whether stage lies in the range.
func (r StageRange) Contains(stage int32) bool {
	s := int64(stage)
	return r.From <= s && s < r.To
}

// OpenBelow reports whether the range is unbounded below.
func (r StageRange) OpenBelow() bool {
	return r.From == MinStage
}

// OpenAbove reports whether the range is unbounded above.
func (r StageRange) OpenAbove() bool {
	return r.To == MaxStage
}

// String returns the range in interval notation.
func (r StageRange) String() string {
	return fmt.Sprintf("[%s, %s)", stageString(r.From), stageString(r.To))
}

func stageString(s int64) string {
	switch s {
	case MinStage:
		return "-inf"
	case MaxStage:
		return "+inf"
	default:
		return fmt.Sprintf("%d", s)
	}
}

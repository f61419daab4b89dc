package hook

import (
	"cmp"
	"slices"
)

// Segment is one stage interval of a hook split at breakpoints.
type Segment[T, R any] struct {
	// Stage is where a host should schedule the segment relative to its own
	// steps: one past the segment's lower bound, clamped.
	Stage int32
	Hook  *QueriedHook[T, R]
}

// Segments splits the hook at the given breakpoints into consecutive
// ranges [MinStage, b1), [b1, b2), ..., [bn, MaxStage). Breakpoints are
// sorted and deduplicated; segments that are not used are omitted.
// An unused hook yields no segments.
func (h *Hook[T, R]) Segments(breakpoints ...int64) []Segment[T, R] {
	if !h.IsUsed() {
		return nil
	}

	bounds := make([]int64, 0, len(breakpoints)+2)
	bounds = append(bounds, MinStage)
	sorted := slices.Clone(breakpoints)
	slices.Sort(sorted)
	for _, b := range slices.Compact(sorted) {
		if b != MinStage && b != MaxStage {
			bounds = append(bounds, b)
		}
	}
	bounds = append(bounds, MaxStage)

	var segments []Segment[T, R]
	for i := 0; i+1 < len(bounds); i++ {
		q := h.QueryStageRange(StageRange{From: bounds[i], To: bounds[i+1]})
		if !q.IsUsed() {
			continue
		}
		segments = append(segments, Segment[T, R]{
			Stage: SafeStage(bounds[i] + 1),
			Hook:  q,
		})
	}
	return segments
}

// Step is a host-owned action interleaved with hook segments by CallStaged.
// For waterfall hooks the returned value replaces the threaded value; other
// kinds ignore it.
type Step[T any] struct {
	Name  string
	Stage int32
	Run   func(arg T) (T, error)
}

type stagedItem[T, R any] struct {
	stage   int32
	step    *Step[T]
	segment *QueriedHook[T, R]
}

// CallStaged runs the hook split at the stages of steps, running each step
// between the segments below and above its stage. Unlike a bounded
// QueriedHook, it tracks completion across every segment: cb runs exactly
// once with the first error, a bail result, or the final result, and done
// interceptors fire once after the last segment.
//
// A step error is reported to the hook's error interceptors.
func (h *Hook[T, R]) CallStaged(arg T, steps []Step[T], cb Callback[R]) {
	breakpoints := make([]int64, len(steps))
	for i, s := range steps {
		breakpoints[i] = int64(s.Stage)
	}

	items := make([]stagedItem[T, R], 0, len(steps)*2+1)
	for i := range steps {
		items = append(items, stagedItem[T, R]{stage: steps[i].Stage, step: &steps[i]})
	}
	for _, seg := range h.Segments(breakpoints...) {
		items = append(items, stagedItem[T, R]{stage: seg.Stage, segment: seg.Hook})
	}
	slices.SortStableFunc(items, func(a, b stagedItem[T, R]) int {
		return cmp.Compare(a.stage, b.stage)
	})

	ics := h.snapshotInterceptors()
	current := arg
	chain(len(items), func(i int, next func(bool)) {
		item := items[i]
		if item.step != nil {
			v, err := item.step.Run(current)
			if err != nil {
				ics.fireError(err)
				next(false)
				cb(err, None[R]())
				return
			}
			if h.thread != nil {
				current = v
			}
			next(true)
			return
		}
		h.runner.run(h, item.segment, ics, current, func(o outcome[R]) {
			switch {
			case o.err != nil:
				next(false)
				cb(o.err, None[R]())
			case o.bailed:
				next(false)
				cb(nil, o.result)
			default:
				if v, ok := o.result.Get(); ok && h.thread != nil {
					current = h.thread.toArg(v)
				}
				next(true)
			}
		})
	}, func() {
		ics.fireDone()
		if h.thread != nil {
			cb(nil, Some(h.thread.toResult(current)))
			return
		}
		cb(nil, None[R]())
	})
}

package hook

// Kind identifies a hook's execution discipline.
type Kind uint8

// Hook kinds.
const (
	KindSync Kind = iota
	KindSyncBail
	KindSyncWaterfall
	KindAsyncParallel
	KindAsyncSeries
	KindAsyncSeriesBail
	KindAsyncSeriesWaterfall
)

var kindNames = [...]string{
	KindSync:                 "SyncHook",
	KindSyncBail:             "SyncBailHook",
	KindSyncWaterfall:        "SyncWaterfallHook",
	KindAsyncParallel:        "AsyncParallelHook",
	KindAsyncSeries:          "AsyncSeriesHook",
	KindAsyncSeriesBail:      "AsyncSeriesBailHook",
	KindAsyncSeriesWaterfall: "AsyncSeriesWaterfallHook",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UnknownHook"
}

// Blocking reports whether the kind supports the blocking Call entry point
// and is restricted to sync taps.
func (k Kind) Blocking() bool {
	return k <= KindSyncWaterfall
}

// Bail reports whether the kind stops at the first Some result.
func (k Kind) Bail() bool {
	return k == KindSyncBail || k == KindAsyncSeriesBail
}

// Waterfall reports whether the kind threads results into the next tap.
func (k Kind) Waterfall() bool {
	return k == KindSyncWaterfall || k == KindAsyncSeriesWaterfall
}

// TapKind identifies the shape of a tap body.
type TapKind uint8

// Tap kinds.
const (
	SyncTap TapKind = iota
	AsyncTap
	PromiseTap
)

// String returns the tap kind name.
func (k TapKind) String() string {
	switch k {
	case SyncTap:
		return "sync"
	case AsyncTap:
		return "async"
	case PromiseTap:
		return "promise"
	default:
		return "unknown"
	}
}

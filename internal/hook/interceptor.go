package hook

// Interceptor observes a hook. Every handler is optional.
//
// Register runs for taps inserted after the interceptor was installed; it
// may return a replacement tap, or an error to veto the registration.
// Interceptors are never removed and are invoked in installation order.
type Interceptor[T, R any] struct {
	Name string

	Register func(tap Tap[T, R]) (Tap[T, R], error)
	Call     func(arg T)
	Tap      func(tap Tap[T, R])
	Error    func(err error)
	Result   func(result R)
	Done     func()
}

type interceptors[T, R any] []Interceptor[T, R]

func (ics interceptors[T, R]) fireCall(arg T) {
	for i := range ics {
		if ics[i].Call != nil {
			ics[i].Call(arg)
		}
	}
}

func (ics interceptors[T, R]) fireTap(t Tap[T, R]) {
	for i := range ics {
		if ics[i].Tap != nil {
			ics[i].Tap(t)
		}
	}
}

func (ics interceptors[T, R]) fireError(err error) {
	for i := range ics {
		if ics[i].Error != nil {
			ics[i].Error(err)
		}
	}
}

func (ics interceptors[T, R]) fireResult(r R) {
	for i := range ics {
		if ics[i].Result != nil {
			ics[i].Result(r)
		}
	}
}

func (ics interceptors[T, R]) fireDone() {
	for i := range ics {
		if ics[i].Done != nil {
			ics[i].Done()
		}
	}
}

func (ics interceptors[T, R]) hasCall() bool {
	for i := range ics {
		if ics[i].Call != nil {
			return true
		}
	}
	return false
}

func (ics interceptors[T, R]) hasDone() bool {
	for i := range ics {
		if ics[i].Done != nil {
			return true
		}
	}
	return false
}

package profile

// Profiler selects a profiling mode and the directory its output is written
// to. The zero value profiles nothing.
type Profiler struct {
	Mode  string
	Dir   string
	Quiet bool
}

// Start begins profiling and returns an interface for stopping it.
//
// If built without the pprof tag, or if Mode is empty or unknown, Start
// returns a no-op implementation. Both Start and Stop are always safely
// callable.
func (p Profiler) Start() interface{ Stop() } {
	if p.Mode == "" {
		return ignore{}
	}

	return start(p.Mode, p.Dir, p.Quiet)
}

type ignore struct{}

func (ignore) Stop() {}

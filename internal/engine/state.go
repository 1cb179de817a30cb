package engine

import "fmt"

// Phase is the Sync Controller's current step.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetchRemoteFirstTime
	PhaseFetchRemoteIncremental
	PhaseFetchRemoteOlder
	PhaseFetchCallLogFirstTime
	PhaseUpdateCallLogFromDevice
	PhaseFetchOlderCallLogPage
	PhaseFetchMessageLog
)

var phaseNames = map[Phase]string{
	PhaseIdle:                    "idle",
	PhaseFetchRemoteFirstTime:    "fetch_remote_first_time",
	PhaseFetchRemoteIncremental:  "fetch_remote_incremental",
	PhaseFetchRemoteOlder:        "fetch_remote_older",
	PhaseFetchCallLogFirstTime:   "fetch_call_log_first_time",
	PhaseUpdateCallLogFromDevice: "update_call_log_from_device",
	PhaseFetchOlderCallLogPage:   "fetch_older_call_log_page",
	PhaseFetchMessageLog:         "fetch_message_log",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText renders the phase name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// IsRemote reports whether the phase waits on a remote fetch.
func (p Phase) IsRemote() bool {
	return p == PhaseFetchRemoteFirstTime || p == PhaseFetchRemoteIncremental || p == PhaseFetchRemoteOlder
}

// IsDevice reports whether the phase is driving a device log reader.
func (p Phase) IsDevice() bool {
	switch p {
	case PhaseFetchCallLogFirstTime, PhaseUpdateCallLogFromDevice, PhaseFetchOlderCallLogPage, PhaseFetchMessageLog:
		return true
	}
	return false
}

// State is the whole in-memory state of the machine.
type State struct {
	Phase Phase
	Op    Op
	// Updated is set once any device phase of the current run moved a watermark.
	Updated bool
	// RemoteFetchRequired is armed when a request was deferred as not ready.
	RemoteFetchRequired bool
}

// Event is an input to Transition.
type Event interface {
	event()
}

// RefreshRequested starts a refresh. FirstTime is set when the remote feed was never synced.
type RefreshRequested struct {
	FirstTime bool
	Ready     bool
}

// OlderRequested starts a load of older activities.
type OlderRequested struct {
	Ready bool
}

// DeviceChanged starts a pull of one device log.
type DeviceChanged struct {
	Kind  DeviceKind
	Ready bool
}

// RemoteFetched reports that the remote batch was applied.
type RemoteFetched struct{}

// RemoteFailed reports a failed remote fetch or apply.
type RemoteFailed struct {
	Status Status
	Err    error
}

// PhaseProgress reports one device reader invocation.
type PhaseProgress struct {
	Done    bool
	Updated bool
}

// PhaseFailed reports a device reader failure.
type PhaseFailed struct {
	Err error
}

// Cancelled aborts whatever is running.
type Cancelled struct{}

func (RefreshRequested) event() {}
func (OlderRequested) event()   {}
func (DeviceChanged) event()    {}
func (RemoteFetched) event()    {}
func (RemoteFailed) event()     {}
func (PhaseProgress) event()    {}
func (PhaseFailed) event()      {}
func (Cancelled) event()        {}

// Effect is an action the controller performs after a transition.
type Effect interface {
	effect()
}

// RemoteMode selects the remote filter.
type RemoteMode int

const (
	RemoteFirstPage RemoteMode = iota
	RemoteIncremental
	RemoteOlder
)

func (m RemoteMode) String() string {
	switch m {
	case RemoteFirstPage:
		return "first_page"
	case RemoteIncremental:
		return "incremental"
	default:
		return "older"
	}
}

// ReaderKind selects a device log reader.
type ReaderKind int

const (
	ReaderCallLog ReaderKind = iota
	ReaderMessageLog
)

// FetchRemote issues one asynchronous remote fetch.
type FetchRemote struct {
	Mode RemoteMode
}

// StartReader creates a device reader and schedules its first invocation.
type StartReader struct {
	Reader  ReaderKind
	Refresh bool
}

// ContinueReader schedules another invocation of the current reader.
type ContinueReader struct{}

// CancelReader releases the current reader.
type CancelReader struct{}

// Prune cleans up the timeline store.
type Prune struct{}

// Complete reports the terminal result of the current operation.
type Complete struct {
	Status Status
	Err    error
}

func (FetchRemote) effect()    {}
func (StartReader) effect()    {}
func (ContinueReader) effect() {}
func (CancelReader) effect()   {}
func (Prune) effect()          {}
func (Complete) effect()       {}

// Transition is the pure state machine. Events that do not apply to the
// current phase leave the state unchanged and produce no effects.
func Transition(s State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case RefreshRequested:
		if s.Phase != PhaseIdle {
			return s, nil
		}
		if !ev.Ready {
			return notReady(s, OpRefresh)
		}
		next := State{Op: OpRefresh, Phase: PhaseFetchRemoteIncremental}
		mode := RemoteIncremental
		if ev.FirstTime {
			next.Phase = PhaseFetchRemoteFirstTime
			mode = RemoteFirstPage
		}
		return next, []Effect{FetchRemote{Mode: mode}}

	case OlderRequested:
		if s.Phase != PhaseIdle {
			return s, nil
		}
		if !ev.Ready {
			return notReady(s, OpOlder)
		}
		next := State{Op: OpOlder, Phase: PhaseFetchRemoteOlder, RemoteFetchRequired: s.RemoteFetchRequired}
		return next, []Effect{FetchRemote{Mode: RemoteOlder}}

	case DeviceChanged:
		if s.Phase != PhaseIdle {
			return s, nil
		}
		if !ev.Ready {
			s.Op = OpDeviceChanged
			return s, []Effect{Complete{Status: StatusNotReady}}
		}
		next := State{Op: OpDeviceChanged, RemoteFetchRequired: s.RemoteFetchRequired}
		if ev.Kind == DeviceMessageLog {
			next.Phase = PhaseFetchMessageLog
			return next, []Effect{StartReader{Reader: ReaderMessageLog, Refresh: true}}
		}
		next.Phase = PhaseUpdateCallLogFromDevice
		return next, []Effect{StartReader{Reader: ReaderCallLog, Refresh: true}}

	case RemoteFetched:
		switch s.Phase {
		case PhaseFetchRemoteFirstTime:
			s.Phase = PhaseFetchCallLogFirstTime
			return s, []Effect{StartReader{Reader: ReaderCallLog, Refresh: true}}
		case PhaseFetchRemoteIncremental:
			return finish(s, StatusSuccess, nil)
		case PhaseFetchRemoteOlder:
			s.Phase = PhaseFetchOlderCallLogPage
			return s, []Effect{StartReader{Reader: ReaderCallLog, Refresh: false}}
		}
		return s, nil

	case RemoteFailed:
		if !s.Phase.IsRemote() {
			return s, nil
		}
		return finish(s, ev.Status, ev.Err)

	case PhaseProgress:
		if !s.Phase.IsDevice() {
			return s, nil
		}
		s.Updated = s.Updated || ev.Updated
		if !ev.Done {
			return s, []Effect{ContinueReader{}}
		}
		switch s.Phase {
		case PhaseFetchCallLogFirstTime, PhaseUpdateCallLogFromDevice:
			s.Phase = PhaseFetchMessageLog
			return s, []Effect{StartReader{Reader: ReaderMessageLog, Refresh: true}}
		case PhaseFetchOlderCallLogPage:
			s.Phase = PhaseFetchMessageLog
			return s, []Effect{StartReader{Reader: ReaderMessageLog, Refresh: false}}
		}
		status := StatusSuccess
		if s.Updated {
			status = StatusUpdatedFromDevice
		}
		return finish(s, status, nil)

	case PhaseFailed:
		if !s.Phase.IsDevice() {
			return s, nil
		}
		next, effects := finish(s, StatusInternalError, ev.Err)
		return next, append([]Effect{CancelReader{}}, effects...)

	case Cancelled:
		if s.Phase == PhaseIdle {
			return s, nil
		}
		var effects []Effect
		if s.Phase.IsDevice() {
			effects = append(effects, CancelReader{})
		}
		next, rest := finish(s, StatusInternalError, ErrCancelled)
		return next, append(effects, rest...)
	}
	return s, nil
}

func notReady(s State, op Op) (State, []Effect) {
	return State{Op: op, RemoteFetchRequired: true}, []Effect{Complete{Status: StatusNotReady}}
}

// finish returns to Idle through cleanup.
func finish(s State, status Status, err error) (State, []Effect) {
	next := State{Op: s.Op, RemoteFetchRequired: s.RemoteFetchRequired}
	return next, []Effect{Prune{}, Complete{Status: status, Err: err}}
}

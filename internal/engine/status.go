package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is reported when a running operation is cancelled.
	ErrCancelled = errors.New("sync cancelled")
	// ErrUnknownDeviceKind rejects a device log name.
	ErrUnknownDeviceKind = errors.New("unknown device log")
)

// Status is the terminal outcome of one caller-facing operation.
type Status int

const (
	StatusSuccess Status = iota
	StatusUpdatedFromDevice
	StatusNoConnectivity
	StatusNotReady
	StatusCommsTimeout
	StatusServerError
	StatusInternalError
)

var statusNames = map[Status]string{
	StatusSuccess:           "success",
	StatusUpdatedFromDevice: "updated_from_device",
	StatusNoConnectivity:    "no_connectivity",
	StatusNotReady:          "not_ready",
	StatusCommsTimeout:      "comms_timeout",
	StatusServerError:       "server_error",
	StatusInternalError:     "internal_error",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText renders the status name in JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// OK reports whether the status is a successful outcome.
func (s Status) OK() bool {
	return s == StatusSuccess || s == StatusUpdatedFromDevice
}

// Op is a caller-facing operation.
type Op int

const (
	OpRefresh Op = iota
	OpOlder
	OpDeviceChanged
)

func (o Op) String() string {
	switch o {
	case OpRefresh:
		return "refresh"
	case OpOlder:
		return "older"
	case OpDeviceChanged:
		return "device_changed"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// MarshalText renders the op name in JSON payloads.
func (o Op) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// DeviceKind names a device log that can report changes.
type DeviceKind int

const (
	DeviceCallLog DeviceKind = iota
	DeviceMessageLog
)

func (k DeviceKind) String() string {
	if k == DeviceMessageLog {
		return "messagelog"
	}
	return "calllog"
}

// ParseDeviceKind validates a device log name.
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch s {
	case "calllog", "calls":
		return DeviceCallLog, nil
	case "messagelog", "messages":
		return DeviceMessageLog, nil
	default:
		return 0, fmt.Errorf("%w %q", ErrUnknownDeviceKind, s)
	}
}

// Result is delivered once per logical operation.
type Result struct {
	Op     Op     `json:"op"`
	Status Status `json:"status"`
	Err    error  `json:"-"`
}

// Message returns the error message, if any.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

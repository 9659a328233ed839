// Package gitproto implements the Smart HTTP request model: the service
// enum, the pending/accepted/rejected request lifecycle, and the request
// parser that turns an incoming (method, URL, content-type, body) into a
// Request ready for the gateway controller.
package gitproto

import (
	"sync/atomic"

	"github.com/bravo68web/githttpgw/internal/headers"
)

// Service identifies which Git service a request targets. The zero value,
// ServiceUnknown, is a distinct third state -- not a value the wire format
// ever names -- used whenever the request could not be classified.
type Service int

const (
	ServiceUnknown Service = iota
	ServiceUploadPack
	ServiceReceivePack
)

// String returns the wire name of the service ("git-upload-pack",
// "git-receive-pack"), or "" for ServiceUnknown.
func (s Service) String() string {
	switch s {
	case ServiceUploadPack:
		return "git-upload-pack"
	case ServiceReceivePack:
		return "git-receive-pack"
	default:
		return ""
	}
}

// Command is shorthand for the service-rooted command name used when
// invoking the local git subprocess ("upload-pack"/"receive-pack").
func (s Service) Command() string {
	switch s {
	case ServiceUploadPack:
		return "upload-pack"
	case ServiceReceivePack:
		return "receive-pack"
	default:
		return ""
	}
}

// ParseService maps a "service" query parameter or content-type suffix back
// to a Service, returning ServiceUnknown for anything else.
func ParseService(name string) Service {
	switch name {
	case "git-upload-pack":
		return ServiceUploadPack
	case "git-receive-pack":
		return ServiceReceivePack
	default:
		return ServiceUnknown
	}
}

// Status is the request lifecycle state machine: Pending -> Accepted ->
// Failure, or Pending -> Rejected. Once out of Pending, MarkAccepted and
// MarkRejected are no-ops; only MarkFailure still moves an Accepted
// request on to Failure.
type Status int32

const (
	Pending Status = iota
	Accepted
	Rejected
	Failure
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// CommandKind tags which variant a Command represents.
type CommandKind string

const (
	CommandCreate CommandKind = "create"
	CommandUpdate CommandKind = "update"
	CommandDelete CommandKind = "delete"
	CommandWant   CommandKind = "want"
	CommandHave   CommandKind = "have"
)

// Command is one parsed pack-protocol command line. For receive-pack frames
// Kind is one of create/update/delete and OldOID/NewOID/Ref are populated;
// for upload-pack frames Kind is want/have and OID is populated.
type Command struct {
	Kind   CommandKind
	OldOID string
	NewOID string
	Ref    string
	OID    string
}

// Request is the immutable (save for Status and Path) record the parser
// builds for one HTTP request and the controller subsequently drives
// through its lifecycle.
type Request struct {
	Headers         *headers.Headers
	IsAdvertisement bool
	Service         Service
	Path            string
	Capabilities    map[string]string
	Commands        []Command

	status int32 // guarded with atomics so concurrent Accept/Reject races are safe
}

// NewRequest constructs a Request in the Pending state.
func NewRequest() *Request {
	return &Request{
		Capabilities: make(map[string]string),
		status:       int32(Pending),
	}
}

// Status returns the request's current lifecycle state.
func (r *Request) Status() Status {
	return Status(atomic.LoadInt32(&r.status))
}

// transition moves the request from any status in from to target, returning
// true if this call performed the transition and false if the request was
// not in one of the from states (in which case the call is a no-op per the
// spec).
func (r *Request) transition(target Status, from ...Status) bool {
	for _, f := range from {
		if atomic.CompareAndSwapInt32(&r.status, int32(f), int32(target)) {
			return true
		}
	}
	return false
}

// MarkAccepted transitions Pending -> Accepted; a no-op once the request
// has already left Pending.
func (r *Request) MarkAccepted() bool { return r.transition(Accepted, Pending) }

// MarkRejected transitions Pending -> Rejected; a no-op once the request
// has already left Pending.
func (r *Request) MarkRejected() bool { return r.transition(Rejected, Pending) }

// MarkFailure transitions Accepted -> Failure (Failure is reachable only
// after Accept per the state machine), or directly from Pending -> Failure
// when the driver raised before the controller ever called MarkAccepted.
// A no-op once the request has already reached Rejected or Failure.
func (r *Request) MarkFailure() bool { return r.transition(Failure, Accepted, Pending) }

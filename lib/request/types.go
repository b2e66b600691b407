package request

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Request Types
// --------------------------------------------------------------------------

// RequestType identifies the operation a command targets
type RequestType int32

const (
	InvalidRequest RequestType = iota
	CustomCommand
	Ping
	Echo
	Get
	Set
	Del
	Exists
	Incr
	Decr
	MGet
	MSet
	Expire
	TTL
	HGet
	HSet
	LPush
	RPush
	LPop
	RPop
	SAdd
	ZAdd
	Auth
)

var requestTypeNames = map[RequestType]string{
	InvalidRequest: "INVALID",
	CustomCommand:  "CUSTOM",
	Ping:           "PING",
	Echo:           "ECHO",
	Get:            "GET",
	Set:            "SET",
	Del:            "DEL",
	Exists:         "EXISTS",
	Incr:           "INCR",
	Decr:           "DECR",
	MGet:           "MGET",
	MSet:           "MSET",
	Expire:         "EXPIRE",
	TTL:            "TTL",
	HGet:           "HGET",
	HSet:           "HSET",
	LPush:          "LPUSH",
	RPush:          "RPUSH",
	LPop:           "LPOP",
	RPop:           "RPOP",
	SAdd:           "SADD",
	ZAdd:           "ZADD",
	Auth:           "AUTH",
}

func (t RequestType) String() string {
	if name, ok := requestTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("RequestType(%d)", int32(t))
}

// ParseRequestType looks up a request type by its command name (case-insensitive)
func ParseRequestType(name string) (RequestType, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for t, n := range requestTypeNames {
		if n == name && t != InvalidRequest {
			return t, true
		}
	}
	return InvalidRequest, false
}

// --------------------------------------------------------------------------
// Arguments
// --------------------------------------------------------------------------

// Args is the argument field of a command. It is implemented by InlineArgs
// and HandleArgs only.
type Args interface {
	isArgs()
}

// InlineArgs carries the arguments inside the message
type InlineArgs [][]byte

// HandleArgs references an argument vector registered in the argument table
type HandleArgs uint64

func (InlineArgs) isArgs() {}
func (HandleArgs) isArgs() {}

// --------------------------------------------------------------------------
// Requests
// --------------------------------------------------------------------------

// Payload is the command part of a request. It is implemented by *Command
// and *Batch only.
type Payload interface {
	isPayload()
}

// Command is a single operation with its arguments
type Command struct {
	Type RequestType
	Args Args
}

// Batch is a pipeline or transaction of commands
type Batch struct {
	Atomic       bool
	Commands     []*Command
	RaiseOnError bool
	TimeoutMs    uint32
}

func (*Command) isPayload() {}
func (*Batch) isPayload()   {}

// Request is the deserialized body of one frame
type Request struct {
	CallbackIdx uint32
	Payload     Payload
}

// NewCommand creates a single command request with inline arguments
func NewCommand(callbackIdx uint32, t RequestType, args ...[]byte) *Request {
	return &Request{
		CallbackIdx: callbackIdx,
		Payload:     &Command{Type: t, Args: InlineArgs(args)},
	}
}

// NewHandleCommand creates a single command request whose arguments live in
// the argument table under handle
func NewHandleCommand(callbackIdx uint32, t RequestType, handle uint64) *Request {
	return &Request{
		CallbackIdx: callbackIdx,
		Payload:     &Command{Type: t, Args: HandleArgs(handle)},
	}
}

// NewBatch creates a batch request
func NewBatch(callbackIdx uint32, atomic bool, commands ...*Command) *Request {
	return &Request{
		CallbackIdx: callbackIdx,
		Payload:     &Batch{Atomic: atomic, Commands: commands},
	}
}

// Commands returns the commands of the request in order
func (r *Request) Commands() []*Command {
	switch p := r.Payload.(type) {
	case *Command:
		return []*Command{p}
	case *Batch:
		return p.Commands
	default:
		return nil
	}
}

// Handles returns every argument handle the request carries
func (r *Request) Handles() []uint64 {
	var handles []uint64
	for _, cmd := range r.Commands() {
		if h, ok := cmd.Args.(HandleArgs); ok {
			handles = append(handles, uint64(h))
		}
	}
	return handles
}

func (r *Request) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("#%d", r.CallbackIdx))
	switch p := r.Payload.(type) {
	case *Command:
		sb.WriteString(" ")
		sb.WriteString(p.Type.String())
	case *Batch:
		sb.WriteString(fmt.Sprintf(" BATCH(atomic=%t, %d commands)", p.Atomic, len(p.Commands)))
	default:
		sb.WriteString(" <empty>")
	}
	return sb.String()
}

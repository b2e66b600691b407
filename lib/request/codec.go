package request

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned (wrapped) when a message body is not valid protobuf
var ErrMalformed = errors.New("request: malformed message")

// Field numbers of the wire schema (see package documentation)
const (
	fieldRequestCallbackIdx   protowire.Number = 1
	fieldRequestSingleCommand protowire.Number = 2
	fieldRequestBatch         protowire.Number = 3

	fieldCommandRequestType protowire.Number = 1
	fieldCommandArgsArray   protowire.Number = 2
	fieldCommandArgsPointer protowire.Number = 3

	fieldArgsArrayArgs protowire.Number = 1

	fieldBatchIsAtomic     protowire.Number = 1
	fieldBatchCommands     protowire.Number = 2
	fieldBatchRaiseOnError protowire.Number = 3
	fieldBatchTimeout      protowire.Number = 4

	fieldResponseCallbackIdx  protowire.Number = 1
	fieldResponsePointer      protowire.Number = 2
	fieldResponseConstant     protowire.Number = 3
	fieldResponseRequestError protowire.Number = 4
	fieldResponseClosingError protowire.Number = 5
	fieldResponseInlineValue  protowire.Number = 6

	fieldRequestErrorType    protowire.Number = 1
	fieldRequestErrorMessage protowire.Number = 2
)

// --------------------------------------------------------------------------
// Request encoding
// --------------------------------------------------------------------------

// MarshalRequest serializes a request
func MarshalRequest(r *Request) []byte {
	return AppendRequest(make([]byte, 0, SizeRequest(r)), r)
}

// SizeRequest returns the serialized size of a request
func SizeRequest(r *Request) int {
	if r == nil {
		return 0
	}
	n := 0
	if r.CallbackIdx != 0 {
		n += protowire.SizeTag(fieldRequestCallbackIdx) + protowire.SizeVarint(uint64(r.CallbackIdx))
	}
	switch p := r.Payload.(type) {
	case *Command:
		n += protowire.SizeTag(fieldRequestSingleCommand) + protowire.SizeBytes(sizeCommand(p))
	case *Batch:
		n += protowire.SizeTag(fieldRequestBatch) + protowire.SizeBytes(sizeBatch(p))
	}
	return n
}

// AppendRequest appends the serialized request to b
func AppendRequest(b []byte, r *Request) []byte {
	if r == nil {
		return b
	}
	if r.CallbackIdx != 0 {
		b = protowire.AppendTag(b, fieldRequestCallbackIdx, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.CallbackIdx))
	}
	switch p := r.Payload.(type) {
	case *Command:
		b = protowire.AppendTag(b, fieldRequestSingleCommand, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(sizeCommand(p)))
		b = appendCommand(b, p)
	case *Batch:
		b = protowire.AppendTag(b, fieldRequestBatch, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(sizeBatch(p)))
		b = appendBatch(b, p)
	}
	return b
}

func sizeCommand(c *Command) int {
	if c == nil {
		return 0
	}
	n := 0
	if c.Type != InvalidRequest {
		n += protowire.SizeTag(fieldCommandRequestType) + protowire.SizeVarint(uint64(int64(c.Type)))
	}
	switch a := c.Args.(type) {
	case InlineArgs:
		n += protowire.SizeTag(fieldCommandArgsArray) + protowire.SizeBytes(sizeArgsArray(a))
	case HandleArgs:
		n += protowire.SizeTag(fieldCommandArgsPointer) + protowire.SizeVarint(uint64(a))
	}
	return n
}

func appendCommand(b []byte, c *Command) []byte {
	if c == nil {
		return b
	}
	if c.Type != InvalidRequest {
		b = protowire.AppendTag(b, fieldCommandRequestType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(c.Type)))
	}
	switch a := c.Args.(type) {
	case InlineArgs:
		b = protowire.AppendTag(b, fieldCommandArgsArray, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(sizeArgsArray(a)))
		b = appendArgsArray(b, a)
	case HandleArgs:
		b = protowire.AppendTag(b, fieldCommandArgsPointer, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(a))
	}
	return b
}

func sizeArgsArray(args [][]byte) int {
	n := 0
	for _, arg := range args {
		n += protowire.SizeTag(fieldArgsArrayArgs) + protowire.SizeBytes(len(arg))
	}
	return n
}

func appendArgsArray(b []byte, args [][]byte) []byte {
	for _, arg := range args {
		b = protowire.AppendTag(b, fieldArgsArrayArgs, protowire.BytesType)
		b = protowire.AppendBytes(b, arg)
	}
	return b
}

func sizeBatch(bt *Batch) int {
	if bt == nil {
		return 0
	}
	n := 0
	if bt.Atomic {
		n += protowire.SizeTag(fieldBatchIsAtomic) + 1
	}
	for _, c := range bt.Commands {
		n += protowire.SizeTag(fieldBatchCommands) + protowire.SizeBytes(sizeCommand(c))
	}
	if bt.RaiseOnError {
		n += protowire.SizeTag(fieldBatchRaiseOnError) + 1
	}
	if bt.TimeoutMs != 0 {
		n += protowire.SizeTag(fieldBatchTimeout) + protowire.SizeVarint(uint64(bt.TimeoutMs))
	}
	return n
}

func appendBatch(b []byte, bt *Batch) []byte {
	if bt == nil {
		return b
	}
	if bt.Atomic {
		b = protowire.AppendTag(b, fieldBatchIsAtomic, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	for _, c := range bt.Commands {
		b = protowire.AppendTag(b, fieldBatchCommands, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(sizeCommand(c)))
		b = appendCommand(b, c)
	}
	if bt.RaiseOnError {
		b = protowire.AppendTag(b, fieldBatchRaiseOnError, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	if bt.TimeoutMs != 0 {
		b = protowire.AppendTag(b, fieldBatchTimeout, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(bt.TimeoutMs))
	}
	return b
}

// --------------------------------------------------------------------------
// Request decoding
// --------------------------------------------------------------------------

// UnmarshalRequest parses a request body. Byte strings of inline arguments
// alias b.
func UnmarshalRequest(b []byte) (*Request, error) {
	req := &Request{}
	for len(b) > 0 {
		num, typ, rest, err := consumeTag(b, "request")
		if err != nil {
			return nil, err
		}
		b = rest

		switch {
		case num == fieldRequestCallbackIdx && typ == protowire.VarintType:
			var v uint64
			if v, b, err = consumeVarint(b, "request.callback_idx"); err != nil {
				return nil, err
			}
			req.CallbackIdx = uint32(v)

		case num == fieldRequestSingleCommand && typ == protowire.BytesType:
			var msg []byte
			if msg, b, err = consumeBytes(b, "request.single_command"); err != nil {
				return nil, err
			}
			cmd, err := unmarshalCommand(msg)
			if err != nil {
				return nil, err
			}
			req.Payload = cmd

		case num == fieldRequestBatch && typ == protowire.BytesType:
			var msg []byte
			if msg, b, err = consumeBytes(b, "request.batch"); err != nil {
				return nil, err
			}
			batch, err := unmarshalBatch(msg)
			if err != nil {
				return nil, err
			}
			req.Payload = batch

		default:
			if b, err = skipField(num, typ, b, "request"); err != nil {
				return nil, err
			}
		}
	}
	return req, nil
}

func unmarshalCommand(b []byte) (*Command, error) {
	cmd := &Command{}
	for len(b) > 0 {
		num, typ, rest, err := consumeTag(b, "command")
		if err != nil {
			return nil, err
		}
		b = rest

		switch {
		case num == fieldCommandRequestType && typ == protowire.VarintType:
			var v uint64
			if v, b, err = consumeVarint(b, "command.request_type"); err != nil {
				return nil, err
			}
			cmd.Type = RequestType(int32(v))

		case num == fieldCommandArgsArray && typ == protowire.BytesType:
			var msg []byte
			if msg, b, err = consumeBytes(b, "command.args_array"); err != nil {
				return nil, err
			}
			args, err := unmarshalArgsArray(msg)
			if err != nil {
				return nil, err
			}
			cmd.Args = InlineArgs(args)

		case num == fieldCommandArgsPointer && typ == protowire.VarintType:
			var v uint64
			if v, b, err = consumeVarint(b, "command.args_vec_pointer"); err != nil {
				return nil, err
			}
			cmd.Args = HandleArgs(v)

		default:
			if b, err = skipField(num, typ, b, "command"); err != nil {
				return nil, err
			}
		}
	}
	return cmd, nil
}

func unmarshalArgsArray(b []byte) ([][]byte, error) {
	var args [][]byte
	for len(b) > 0 {
		num, typ, rest, err := consumeTag(b, "args_array")
		if err != nil {
			return nil, err
		}
		b = rest

		if num == fieldArgsArrayArgs && typ == protowire.BytesType {
			var arg []byte
			if arg, b, err = consumeBytes(b, "args_array.args"); err != nil {
				return nil, err
			}
			args = append(args, arg)
			continue
		}
		if b, err = skipField(num, typ, b, "args_array"); err != nil {
			return nil, err
		}
	}
	return args, nil
}

func unmarshalBatch(b []byte) (*Batch, error) {
	batch := &Batch{}
	for len(b) > 0 {
		num, typ, rest, err := consumeTag(b, "batch")
		if err != nil {
			return nil, err
		}
		b = rest

		switch {
		case num == fieldBatchIsAtomic && typ == protowire.VarintType:
			var v uint64
			if v, b, err = consumeVarint(b, "batch.is_atomic"); err != nil {
				return nil, err
			}
			batch.Atomic = protowire.DecodeBool(v)

		case num == fieldBatchCommands && typ == protowire.BytesType:
			var msg []byte
			if msg, b, err = consumeBytes(b, "batch.commands"); err != nil {
				return nil, err
			}
			cmd, err := unmarshalCommand(msg)
			if err != nil {
				return nil, err
			}
			batch.Commands = append(batch.Commands, cmd)

		case num == fieldBatchRaiseOnError && typ == protowire.VarintType:
			var v uint64
			if v, b, err = consumeVarint(b, "batch.raise_on_error"); err != nil {
				return nil, err
			}
			batch.RaiseOnError = protowire.DecodeBool(v)

		case num == fieldBatchTimeout && typ == protowire.VarintType:
			var v uint64
			if v, b, err = consumeVarint(b, "batch.timeout"); err != nil {
				return nil, err
			}
			batch.TimeoutMs = uint32(v)

		default:
			if b, err = skipField(num, typ, b, "batch"); err != nil {
				return nil, err
			}
		}
	}
	return batch, nil
}

// --------------------------------------------------------------------------
// Response encoding
// --------------------------------------------------------------------------

// MarshalResponse serializes a response
func MarshalResponse(r *Response) []byte {
	return AppendResponse(make([]byte, 0, SizeResponse(r)), r)
}

// SizeResponse returns the serialized size of a response
func SizeResponse(r *Response) int {
	if r == nil {
		return 0
	}
	n := 0
	if r.CallbackIdx != 0 {
		n += protowire.SizeTag(fieldResponseCallbackIdx) + protowire.SizeVarint(uint64(r.CallbackIdx))
	}
	switch v := r.Value.(type) {
	case HandleValue:
		n += protowire.SizeTag(fieldResponsePointer) + protowire.SizeVarint(uint64(v))
	case ConstantValue:
		n += protowire.SizeTag(fieldResponseConstant) + protowire.SizeVarint(uint64(int64(v)))
	case *RequestError:
		n += protowire.SizeTag(fieldResponseRequestError) + protowire.SizeBytes(sizeRequestError(v))
	case ClosingError:
		n += protowire.SizeTag(fieldResponseClosingError) + protowire.SizeBytes(len(v))
	case InlineValue:
		n += protowire.SizeTag(fieldResponseInlineValue) + protowire.SizeBytes(sizeArgsArray(v))
	}
	return n
}

// AppendResponse appends the serialized response to b
func AppendResponse(b []byte, r *Response) []byte {
	if r == nil {
		return b
	}
	if r.CallbackIdx != 0 {
		b = protowire.AppendTag(b, fieldResponseCallbackIdx, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.CallbackIdx))
	}
	switch v := r.Value.(type) {
	case HandleValue:
		b = protowire.AppendTag(b, fieldResponsePointer, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v))
	case ConstantValue:
		b = protowire.AppendTag(b, fieldResponseConstant, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(v)))
	case *RequestError:
		b = protowire.AppendTag(b, fieldResponseRequestError, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(sizeRequestError(v)))
		b = appendRequestError(b, v)
	case ClosingError:
		b = protowire.AppendTag(b, fieldResponseClosingError, protowire.BytesType)
		b = protowire.AppendString(b, string(v))
	case InlineValue:
		b = protowire.AppendTag(b, fieldResponseInlineValue, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(sizeArgsArray(v)))
		b = appendArgsArray(b, v)
	}
	return b
}

func sizeRequestError(e *RequestError) int {
	if e == nil {
		return 0
	}
	n := 0
	if e.Type != ErrorUnspecified {
		n += protowire.SizeTag(fieldRequestErrorType) + protowire.SizeVarint(uint64(int64(e.Type)))
	}
	if e.Message != "" {
		n += protowire.SizeTag(fieldRequestErrorMessage) + protowire.SizeBytes(len(e.Message))
	}
	return n
}

func appendRequestError(b []byte, e *RequestError) []byte {
	if e == nil {
		return b
	}
	if e.Type != ErrorUnspecified {
		b = protowire.AppendTag(b, fieldRequestErrorType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(e.Type)))
	}
	if e.Message != "" {
		b = protowire.AppendTag(b, fieldRequestErrorMessage, protowire.BytesType)
		b = protowire.AppendString(b, e.Message)
	}
	return b
}

// --------------------------------------------------------------------------
// Response decoding
// --------------------------------------------------------------------------

// UnmarshalResponse parses a response body. Byte strings of inline values
// alias b.
func UnmarshalResponse(b []byte) (*Response, error) {
	resp := &Response{}
	for len(b) > 0 {
		num, typ, rest, err := consumeTag(b, "response")
		if err != nil {
			return nil, err
		}
		b = rest

		switch {
		case num == fieldResponseCallbackIdx && typ == protowire.VarintType:
			var v uint64
			if v, b, err = consumeVarint(b, "response.callback_idx"); err != nil {
				return nil, err
			}
			resp.CallbackIdx = uint32(v)

		case num == fieldResponsePointer && typ == protowire.VarintType:
			var v uint64
			if v, b, err = consumeVarint(b, "response.resp_pointer"); err != nil {
				return nil, err
			}
			resp.Value = HandleValue(v)

		case num == fieldResponseConstant && typ == protowire.VarintType:
			var v uint64
			if v, b, err = consumeVarint(b, "response.constant_response"); err != nil {
				return nil, err
			}
			resp.Value = ConstantValue(int32(v))

		case num == fieldResponseRequestError && typ == protowire.BytesType:
			var msg []byte
			if msg, b, err = consumeBytes(b, "response.request_error"); err != nil {
				return nil, err
			}
			reqErr, err := unmarshalRequestError(msg)
			if err != nil {
				return nil, err
			}
			resp.Value = reqErr

		case num == fieldResponseClosingError && typ == protowire.BytesType:
			var msg []byte
			if msg, b, err = consumeBytes(b, "response.closing_error"); err != nil {
				return nil, err
			}
			resp.Value = ClosingError(msg)

		case num == fieldResponseInlineValue && typ == protowire.BytesType:
			var msg []byte
			if msg, b, err = consumeBytes(b, "response.inline_value"); err != nil {
				return nil, err
			}
			values, err := unmarshalArgsArray(msg)
			if err != nil {
				return nil, err
			}
			resp.Value = InlineValue(values)

		default:
			if b, err = skipField(num, typ, b, "response"); err != nil {
				return nil, err
			}
		}
	}
	return resp, nil
}

func unmarshalRequestError(b []byte) (*RequestError, error) {
	reqErr := &RequestError{}
	for len(b) > 0 {
		num, typ, rest, err := consumeTag(b, "request_error")
		if err != nil {
			return nil, err
		}
		b = rest

		switch {
		case num == fieldRequestErrorType && typ == protowire.VarintType:
			var v uint64
			if v, b, err = consumeVarint(b, "request_error.type"); err != nil {
				return nil, err
			}
			reqErr.Type = RequestErrorType(int32(v))

		case num == fieldRequestErrorMessage && typ == protowire.BytesType:
			var msg []byte
			if msg, b, err = consumeBytes(b, "request_error.message"); err != nil {
				return nil, err
			}
			reqErr.Message = string(msg)

		default:
			if b, err = skipField(num, typ, b, "request_error"); err != nil {
				return nil, err
			}
		}
	}
	return reqErr, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func malformed(what string, n int) error {
	return errors.Wrapf(ErrMalformed, "%s: %v", what, protowire.ParseError(n))
}

func consumeTag(b []byte, what string) (protowire.Number, protowire.Type, []byte, error) {
	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 {
		return 0, 0, nil, malformed(what, n)
	}
	return num, typ, b[n:], nil
}

func consumeVarint(b []byte, what string) (uint64, []byte, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, nil, malformed(what, n)
	}
	return v, b[n:], nil
}

func consumeBytes(b []byte, what string) ([]byte, []byte, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, nil, malformed(what, n)
	}
	return v, b[n:], nil
}

func skipField(num protowire.Number, typ protowire.Type, b []byte, what string) ([]byte, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return nil, malformed(what, n)
	}
	return b[n:], nil
}

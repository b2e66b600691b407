// Package request defines the messages exchanged between a foreign-language
// caller and the engine, together with their protobuf wire encoding.
//
// Every frame body is a CommandRequest carrying a caller-chosen callback index
// and either a single Command or a Batch of commands. Each command names its
// operation (RequestType) and carries its arguments in exactly one of two
// encodings:
//
//   - InlineArgs: the argument byte strings are embedded in the message.
//
//   - HandleArgs: an opaque handle into the process-wide argument table
//     (package args). The caller registered the argument vector before it
//     sent the frame, so large payloads cross the language boundary without
//     being copied into the stream.
//
// Responses travel the other way with the same callback index and one of an
// inline value, a handle to a value, the constant OK, a request error or a
// closing error.
//
// Wire format:
//
//	CommandRequest { uint32 callback_idx = 1;
//	                 oneof command { Command single_command = 2; Batch batch = 3; } }
//	Command        { RequestType request_type = 1;
//	                 oneof args { ArgsArray args_array = 2; uint64 args_vec_pointer = 3; } }
//	ArgsArray      { repeated bytes args = 1; }
//	Batch          { bool is_atomic = 1; repeated Command commands = 2;
//	                 bool raise_on_error = 3; uint32 timeout = 4; }
//	Response       { uint32 callback_idx = 1;
//	                 oneof value { uint64 resp_pointer = 2; ConstantResponse constant_response = 3;
//	                               RequestError request_error = 4; string closing_error = 5;
//	                               ArgsArray inline_value = 6; } }
//	RequestError   { RequestErrorType type = 1; string message = 2; }
//
// The codec is written directly against protowire. Unknown fields are
// skipped as protobuf requires, so newer callers can add fields without
// breaking older engines. Decoded byte strings alias the input slice, which
// is safe because frame bodies handed out by the framer are never rewritten.
package request

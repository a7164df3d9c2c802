package gateway

import (
	"encoding/json"
	"strconv"
)

// Inbound methods recognised by the handler.
const (
	MethodRegisterDevice = "registerDevice"
	MethodHeartBeat      = "heartBeat"
	MethodUploadRecords  = "uploadRecords"
	MethodInsertPerson   = "insertPerson"
	MethodUpdatePerson   = "updatePerson"
	MethodRemovePerson   = "removePerson"
)

// Outbound push methods sent to terminals.
const (
	MethodPushDisplayImage   = "pushDisplayImage"
	MethodPushRemoteOpenDoor = "pushRemoteOpenDoor"
	MethodPushRelayOut       = "pushRelayOut"
)

// Protocol error codes.
const (
	CodeBadParams    = 100
	CodeNotSupported = 105
	CodeInternal     = 900
)

// Frame is an outbound protocol frame.
//
// Success envelopes carry result 0 and always include params, even when
// empty. Error envelopes omit params. Push frames carry only method,
// params, and a fresh req_id.
type Frame struct {
	Method string          `json:"method"`
	Params any             `json:"params,omitempty"`
	Result *int            `json:"result,omitempty"`
	ErrMsg string          `json:"errMsg,omitempty"`
	ReqID  json.RawMessage `json:"req_id,omitempty"`
}

// inboundFrame is the parsed shape of a frame received from a terminal.
// Params stays raw until the method handler knows what to decode, and
// ReqID stays raw so replies echo whatever the terminal sent.
type inboundFrame struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ReqID  json.RawMessage `json:"req_id"`
}

// successFrame builds a success envelope. A nil params becomes an empty
// object so the envelope shape is stable on the wire.
func successFrame(method string, reqID json.RawMessage, params any) Frame {
	if params == nil {
		params = map[string]any{}
	}
	zero := 0
	return Frame{
		Method: method,
		Params: params,
		Result: &zero,
		ErrMsg: "Success",
		ReqID:  reqID,
	}
}

// errorFrame builds an error envelope.
func errorFrame(method string, reqID json.RawMessage, code int, msg string) Frame {
	if method == "" {
		method = "unknown"
	}
	if len(reqID) == 0 {
		reqID = numericReqID(0)
	}
	return Frame{
		Method: method,
		Result: &code,
		ErrMsg: msg,
		ReqID:  reqID,
	}
}

// NewPush builds an outbound push frame with a fresh correlation id.
func NewPush(method string, params any) Frame {
	return pushFrame(method, params, NextReqID())
}

// pushFrame builds an outbound push with the given correlation id.
func pushFrame(method string, params any, reqID int64) Frame {
	return Frame{
		Method: method,
		Params: params,
		ReqID:  numericReqID(reqID),
	}
}

// numericReqID renders an integer req_id as raw JSON.
func numericReqID(n int64) json.RawMessage {
	return json.RawMessage(strconv.FormatInt(n, 10))
}

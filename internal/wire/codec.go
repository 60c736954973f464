package wire

import (
	"encoding/json"
	"fmt"
)

// FrameKind tags the variant returned by ParseFrame.
type FrameKind int

const (
	FrameEvent FrameKind = iota
	FrameOK
	FrameEOSE
	FrameUnknown
	FrameInvalid
)

// Frame is the tagged union spec.md §4.3 describes: exactly one of
// Event/OK/EOSE is populated according to Kind; Unknown/Invalid carry
// the raw string that could not be (fully) interpreted.
type Frame struct {
	Kind FrameKind

	Event Event
	OK    OK
	EOSE  EOSE
	Raw   string
}

// ParseFrame decodes one relay frame. Non-array JSON, or an array whose
// first element is not a string, yields Invalid. A well-formed array
// whose tag-0 is not one of EVENT/OK/EOSE yields Unknown.
func ParseFrame(data []byte) Frame {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil || len(arr) == 0 {
		return Frame{Kind: FrameInvalid, Raw: string(data)}
	}

	var tag string
	if err := json.Unmarshal(arr[0], &tag); err != nil {
		return Frame{Kind: FrameInvalid, Raw: string(data)}
	}

	switch tag {
	case "EVENT":
		evt, err := parseEventFrame(arr)
		if err != nil {
			return Frame{Kind: FrameInvalid, Raw: string(data)}
		}
		return Frame{Kind: FrameEvent, Event: evt}
	case "OK":
		ok, err := parseOKFrame(arr)
		if err != nil {
			return Frame{Kind: FrameInvalid, Raw: string(data)}
		}
		return Frame{Kind: FrameOK, OK: ok}
	case "EOSE":
		eose, err := parseEOSEFrame(arr)
		if err != nil {
			return Frame{Kind: FrameInvalid, Raw: string(data)}
		}
		return Frame{Kind: FrameEOSE, EOSE: eose}
	default:
		return Frame{Kind: FrameUnknown, Raw: string(data)}
	}
}

func parseEventFrame(arr []json.RawMessage) (Event, error) {
	switch len(arr) {
	case 2:
		var data EventData
		if err := json.Unmarshal(arr[1], &data); err != nil {
			return Event{}, err
		}
		return Event{Data: data}, nil
	case 3:
		var subID string
		if err := json.Unmarshal(arr[1], &subID); err != nil {
			return Event{}, err
		}
		var data EventData
		if err := json.Unmarshal(arr[2], &data); err != nil {
			return Event{}, err
		}
		return Event{SubscriptionID: subID, Data: data}, nil
	default:
		return Event{}, fmt.Errorf("EVENT frame has unexpected arity %d", len(arr))
	}
}

func parseOKFrame(arr []json.RawMessage) (OK, error) {
	if len(arr) < 3 {
		return OK{}, fmt.Errorf("OK frame too short")
	}
	var eventID string
	if err := json.Unmarshal(arr[1], &eventID); err != nil {
		return OK{}, err
	}
	var accepted bool
	if err := json.Unmarshal(arr[2], &accepted); err != nil {
		return OK{}, err
	}
	message := ""
	if len(arr) > 3 {
		_ = json.Unmarshal(arr[3], &message)
	}
	return OK{EventID: eventID, Accepted: accepted, Message: message}, nil
}

func parseEOSEFrame(arr []json.RawMessage) (EOSE, error) {
	if len(arr) < 2 {
		return EOSE{}, fmt.Errorf("EOSE frame too short")
	}
	var subID string
	if err := json.Unmarshal(arr[1], &subID); err != nil {
		return EOSE{}, err
	}
	return EOSE{SubscriptionID: subID}, nil
}

// SerializeEvent encodes an EVENT frame. Outgoing events (subscriptionID
// == "") omit the subscription id element; inbound ones carry it.
func SerializeEvent(data EventData, subscriptionID string) ([]byte, error) {
	var frame []any
	if subscriptionID == "" {
		frame = []any{"EVENT", data}
	} else {
		frame = []any{"EVENT", subscriptionID, data}
	}
	return json.Marshal(frame)
}

// SerializeReq encodes a REQ frame.
func SerializeReq(subscriptionID string, filters map[string]any) ([]byte, error) {
	if err := ValidateSubscriptionID(subscriptionID); err != nil {
		return nil, err
	}
	frame := []any{"REQ", subscriptionID, filters}
	return json.Marshal(frame)
}

// SerializeClose encodes a CLOSE frame.
func SerializeClose(subscriptionID string) ([]byte, error) {
	frame := []any{"CLOSE", subscriptionID}
	return json.Marshal(frame)
}

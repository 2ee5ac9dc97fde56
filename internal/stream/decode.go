package stream

import (
	"encoding/json"

	"scanorder/internal/domain"
	"scanorder/internal/port"
)

// Decode translates one raw push-stream message into a notification. It returns
// false for messages that should be dropped: unknown event names, malformed
// JSON, a status without a label or an extraction without data.
//
// An "error" event is a failure even when its body cannot be read.
func Decode(raw port.RawEvent) (domain.Notification, bool) {
	switch raw.Name {
	case domain.EventStatus:
		var ev domain.StreamEvent
		if err := json.Unmarshal(raw.Data, &ev); err != nil || ev.Status == "" {
			return nil, false
		}
		return domain.StageChanged{Label: ev.Status}, true

	case domain.EventExtracted:
		var ev domain.StreamEvent
		if err := json.Unmarshal(raw.Data, &ev); err != nil || ev.Data == nil {
			return nil, false
		}
		return domain.ResultReady{Payload: ev.Data}, true

	case domain.EventError:
		msg := domain.MsgProcessingFailed
		var ev domain.StreamEvent
		if err := json.Unmarshal(raw.Data, &ev); err == nil && ev.Message != "" {
			msg = ev.Message
		}
		return domain.Failed{Message: msg}, true

	case "", "message":
		// Unnamed events fall back to the type carried in the body.
		var ev domain.StreamEvent
		if err := json.Unmarshal(raw.Data, &ev); err != nil {
			return nil, false
		}
		switch ev.Type {
		case domain.EventStatus, domain.EventExtracted, domain.EventError:
			return Decode(port.RawEvent{Name: ev.Type, Data: raw.Data})
		}
		return nil, false

	default:
		return nil, false
	}
}

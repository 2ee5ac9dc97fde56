package stream_test

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanorder/internal/domain"
	"scanorder/internal/port"
	"scanorder/internal/stream"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		raw    port.RawEvent
		want   domain.Notification
		wantOK bool
	}{
		{"status", port.RawEvent{Name: "status", Data: []byte(`{"type":"status","status":"processing"}`)}, domain.StageChanged{Label: "processing"}, true},
		{"status without label", port.RawEvent{Name: "status", Data: []byte(`{"type":"status"}`)}, nil, false},
		{"status malformed", port.RawEvent{Name: "status", Data: []byte(`{"status":`)}, nil, false},
		{"extracted without data", port.RawEvent{Name: "extracted", Data: []byte(`{"type":"extracted"}`)}, nil, false},
		{"extracted malformed", port.RawEvent{Name: "extracted", Data: []byte(`not json`)}, nil, false},
		{"error with message", port.RawEvent{Name: "error", Data: []byte(`{"message":"unreadable scan"}`)}, domain.Failed{Message: "unreadable scan"}, true},
		{"error without body", port.RawEvent{Name: "error", Data: []byte(``)}, domain.Failed{Message: domain.MsgProcessingFailed}, true},
		{"unknown event", port.RawEvent{Name: "progress", Data: []byte(`{"status":"x"}`)}, nil, false},
		{"unnamed with type", port.RawEvent{Name: "message", Data: []byte(`{"type":"status","status":"calling_llm"}`)}, domain.StageChanged{Label: "calling_llm"}, true},
		{"unnamed without type", port.RawEvent{Data: []byte(`{"status":"processing"}`)}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := stream.Decode(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Extracted(t *testing.T) {
	raw := port.RawEvent{
		Name: "extracted",
		Data: []byte(`{"type":"extracted","data":{"invoice_number":"INV-7","items":[{"description":"Widget","qty":2,"unit_price":5,"line_total":10}],"freight":3,"tax_rate":8,"confidence":0.9,"warnings":["w1"]}}`),
	}

	n, ok := stream.Decode(raw)
	require.True(t, ok)
	rr, isResult := n.(domain.ResultReady)
	require.True(t, isResult)
	assert.Equal(t, "INV-7", rr.Payload.InvoiceNumber)
	require.Len(t, rr.Payload.Items, 1)
	assert.Equal(t, "Widget", rr.Payload.Items[0].Description)
	assert.InDelta(t, 3, *rr.Payload.Freight, 1e-9)
	assert.InDelta(t, 0.9, *rr.Payload.Confidence, 1e-9)
	assert.Nil(t, rr.Payload.TaxAmt)
	assert.Equal(t, []string{"w1"}, rr.Payload.Warnings)
}

func TestSSEStream_Next(t *testing.T) {
	body := strings.Join([]string{
		": keep-alive",
		"event: status",
		`data: {"status":"connected"}`,
		"",
		"event: extracted",
		`data: {"data":`,
		`data: {"items":[]}}`,
		"id: 7",
		"retry: 1000",
		"",
		"",
		"event: error\r",
		`data: {"message":"boom"}` + "\r",
		"\r",
		"event: status",
		`data: {"status":"cut off"}`,
	}, "\n")

	s := stream.NewSSEStream(io.NopCloser(strings.NewReader(body)))

	ev, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "status", ev.Name)
	assert.JSONEq(t, `{"status":"connected"}`, string(ev.Data))

	ev, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, "extracted", ev.Name)
	assert.Equal(t, "{\"data\":\n{\"items\":[]}}", string(ev.Data))

	ev, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, "error", ev.Name)
	assert.Equal(t, `{"message":"boom"}`, string(ev.Data))

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

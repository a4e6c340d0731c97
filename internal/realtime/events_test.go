package realtime

import (
	"encoding/json"
	"testing"
)

func TestDecodeMessagePayload(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    string
		wantErr bool
	}{
		{name: "object form", data: `{"content":"hello ward"}`, want: "hello ward"},
		{name: "bare string form", data: `"hello ward"`, want: "hello ward"},
		{name: "empty object", data: `{}`, wantErr: true},
		{name: "number", data: `42`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeMessagePayload(json.RawMessage(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeMessagePayload(%s) error = %v, wantErr %v", tt.data, err, tt.wantErr)
			}
			if got != tt.want && !tt.wantErr {
				t.Errorf("decodeMessagePayload(%s) = %q, want %q", tt.data, got, tt.want)
			}
		})
	}
}

func TestNewEventRoundTrip(t *testing.T) {
	event, err := NewEvent(EventDisplay, DisplayPayload{Typing: true})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	if event.Event != EventDisplay {
		t.Errorf("event name = %q, want %q", event.Event, EventDisplay)
	}
	var payload DisplayPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !payload.Typing {
		t.Error("payload.Typing = false, want true")
	}
}

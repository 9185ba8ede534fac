package mention

import (
	"testing"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

const botUser = id.UserID("@nestor:example.org")

func msgEvent(sender id.UserID, body string) *event.Event {
	return &event.Event{
		Sender: sender,
		Type:   event.EventMessage,
		Content: event.Content{Parsed: &event.MessageEventContent{
			MsgType: event.MsgText,
			Body:    body,
		}},
	}
}

func TestMentioned(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{"!nestor what's the weather?", true},
		{"!NESTOR HELLO", true},
		{"!n ping", true},
		{"!nothing else", true}, // plain prefix, no word boundary
		{"@nestor:example.org hello", true},
		{"@NESTOR:EXAMPLE.ORG hello", true},
		{"hello", false},
		{"hi !nestor", false},
		{"", false},
		{"nestor hello", false},
	}
	for _, tt := range tests {
		if got := Mentioned(tt.body, botUser); got != tt.want {
			t.Errorf("Mentioned(%q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}

func TestShouldRespond_SelfMessage(t *testing.T) {
	evt := msgEvent(botUser, "!nestor talking to myself")
	if ShouldRespond(evt, botUser, false) {
		t.Error("expected self message to be ignored in group room")
	}
	if ShouldRespond(evt, botUser, true) {
		t.Error("expected self message to be ignored in direct room")
	}
}

func TestShouldRespond_DirectRoom(t *testing.T) {
	evt := msgEvent("@alice:example.org", "no mention token here")
	if !ShouldRespond(evt, botUser, true) {
		t.Error("expected any non-self message in a direct room to qualify")
	}
}

func TestShouldRespond_GroupRoom(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{"!nestor what's the weather?", true},
		{"!N quick one", true},
		{"@nestor:example.org are you there", true},
		{"hello", false},
		{"", false},
	}
	for _, tt := range tests {
		evt := msgEvent("@alice:example.org", tt.body)
		if got := ShouldRespond(evt, botUser, false); got != tt.want {
			t.Errorf("ShouldRespond(%q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}

func TestExtractPrompt(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"!nestor what's the weather?", "what's the weather?"},
		{"!n", ""},
		{"!nestor", ""},
		{"!nestor   padded   ", "padded"},
		{"!n\ttab separated", "tab separated"},
		{"@nestor:example.org help me", "help me"},
		{"hello there", "hello there"}, // direct room, no token
		{"  hello  ", "hello"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtractPrompt(tt.body, botUser); got != tt.want {
			t.Errorf("ExtractPrompt(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

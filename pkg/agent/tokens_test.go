package agent

import (
	"testing"

	"github.com/nestorlabs/nestor/pkg/threads"
)

func TestTrimToBudget(t *testing.T) {
	turns := []threads.Turn{
		{Role: threads.RoleUser, Text: "oldest"},
		{Role: threads.RoleAssistant, Text: "middle"},
		{Role: threads.RoleUser, Text: "newest"},
	}
	// Fixed cost per turn: 10 text tokens + tokensPerTurn overhead = 13.
	count := func(string) int { return 10 }

	tests := []struct {
		name   string
		budget int
		want   []string
	}{
		{"disabled", 0, []string{"oldest", "middle", "newest"}},
		{"fits all", 39, []string{"oldest", "middle", "newest"}},
		{"drops oldest", 26, []string{"middle", "newest"}},
		{"keeps newest only", 13, []string{"newest"}},
		{"too small for anything", 12, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := trimToBudget(turns, test.budget, count)
			if len(got) != len(test.want) {
				t.Fatalf("kept %d turns, want %d: %+v", len(got), len(test.want), got)
			}
			for i, text := range test.want {
				if got[i].Text != text {
					t.Errorf("turn %d = %q, want %q", i, got[i].Text, text)
				}
			}
		})
	}
}

func TestTrimHistory(t *testing.T) {
	turns := []threads.Turn{
		{Role: threads.RoleUser, Text: "oldest"},
		{Role: threads.RoleAssistant, Text: "middle"},
		{Role: threads.RoleUser, Text: "newest"},
	}
	// Fixed costs: 10 text tokens + tokensPerTurn = 13 per message, so the
	// system prompt and the current prompt reserve 26 together.
	count := func(string) int { return 10 }

	tests := []struct {
		name   string
		budget int
		want   []string
	}{
		{"disabled", 0, []string{"oldest", "middle", "newest"}},
		{"fits all", 65, []string{"oldest", "middle", "newest"}},
		{"prompts squeeze out oldest", 52, []string{"middle", "newest"}},
		{"prompts leave room for one", 39, []string{"newest"}},
		{"prompts eat the whole budget", 26, nil},
		{"prompts alone exceed budget", 20, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := trimHistory(turns, "system", "prompt", test.budget, count)
			if len(got) != len(test.want) {
				t.Fatalf("kept %d turns, want %d: %+v", len(got), len(test.want), got)
			}
			for i, text := range test.want {
				if got[i].Text != text {
					t.Errorf("turn %d = %q, want %q", i, got[i].Text, text)
				}
			}
		})
	}
}

func TestTrimToBudget_Empty(t *testing.T) {
	if got := trimToBudget(nil, 100, func(string) int { return 1 }); len(got) != 0 {
		t.Errorf("got %+v for empty input", got)
	}
}

func TestApproxTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 1},
		{"abcd", 2},
		{"abcdefgh", 3},
	}
	for _, test := range tests {
		if got := approxTokens(test.text); got != test.want {
			t.Errorf("approxTokens(%q) = %d, want %d", test.text, got, test.want)
		}
	}
}

package llm

import (
	"context"
	"errors"
	"testing"
)

func TestJoinSystemPrompt(t *testing.T) {
	cases := []struct {
		base, extra, expected string
	}{
		{"", "", ""},
		{" base ", "", "base"},
		{"", " extra ", "extra"},
		{"base", "extra", "base\n\nextra"},
	}
	for _, tc := range cases {
		if got := JoinSystemPrompt(tc.base, tc.extra); got != tc.expected {
			t.Fatalf("JoinSystemPrompt(%q, %q) = %q, want %q", tc.base, tc.extra, got, tc.expected)
		}
	}
}

func TestCleanReplyStripsReasoning(t *testing.T) {
	cases := []struct {
		input, expected string
	}{
		{"<think>should I?</think> 别戳啦！", "别戳啦！"},
		{"```think\nhmm\n``` 再戳就生气了", "再戳就生气了"},
		{"<think>unterminated 哼", "unterminated 哼"},
		{"  第一行\n  第二行  ", "第一行 第二行"},
		{"<THINK data=1>x</THINK>ok", "ok"},
	}
	for _, tc := range cases {
		if got := CleanReply(tc.input); got != tc.expected {
			t.Fatalf("CleanReply(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestDisabledIsUnavailable(t *testing.T) {
	if _, err := (Disabled{}).Reply(context.Background(), MessageInput{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

package llm

import (
	"regexp"
	"strings"
)

// ReplyTokens caps completions. Poke replies are one or two short sentences.
const ReplyTokens = 256

// ReplyBodyLimit bounds how much of a provider response is read.
const ReplyBodyLimit = 1 << 20

var (
	reasoningBlock = regexp.MustCompile(`(?is)<think\b[^>]*>.*?</think>`)
	reasoningFence = regexp.MustCompile("(?is)```think\\s*.*?```")
)

// JoinSystemPrompt appends a per-request prompt to the configured one.
func JoinSystemPrompt(base, extra string) string {
	base = strings.TrimSpace(base)
	extra = strings.TrimSpace(extra)
	switch {
	case base == "":
		return extra
	case extra == "":
		return base
	}
	return base + "\n\n" + extra
}

// CleanReply drops reasoning blocks some models emit ahead of the answer and
// flattens the rest onto one line, since chat replies are sent as a single
// text message.
func CleanReply(raw string) string {
	text := reasoningBlock.ReplaceAllString(raw, "")
	text = reasoningFence.ReplaceAllString(text, "")
	text = strings.NewReplacer("<think>", "", "</think>", "").Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

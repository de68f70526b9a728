package phrases

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Set holds every text the poke handler can send. Templates use {name},
// {count}, {window}, {code} and {error} placeholders.
type Set struct {
	Replies           []string `yaml:"replies"`
	CooldownNotice    string   `yaml:"cooldown_notice"`
	PokeBack          string   `yaml:"poke_back"`
	SuperPokeBack     string   `yaml:"super_poke_back"`
	MemeStatusFailure string   `yaml:"meme_status_failure"`
	MemeFailure       string   `yaml:"meme_failure"`
	SystemPrompt      string   `yaml:"system_prompt"`
	PromptTemplate    string   `yaml:"prompt_template"`
}

func Defaults() Set {
	return Set{
		Replies: []string{
			"别戳啦！",
			"哎呀，还戳呀，别闹啦！",
			"别戳我啦  你要做什么  不理你了",
		},
		CooldownNotice:    "戳太多啦，我要休息一会儿，待会再来找我玩吧",
		PokeBack:          "戳回去",
		SuperPokeBack:     "喜欢戳是吧",
		MemeStatusFailure: "表情包请求失败，状态码：{code}",
		MemeFailure:       "表情包处理出错：{error}",
		SystemPrompt:      "你是群聊里一个可爱、有点小脾气的机器人。有人用“戳一戳”戳了你，请只用一句简短俏皮的中文回应，不要超过三十个字，不要使用引号。",
		PromptTemplate:    "群友「{name}」在最近{window}内第{count}次戳了你，请回应。",
	}
}

// Load reads a YAML file and overlays it on the defaults.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("read phrases file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Set, error) {
	var overlay Set
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return Set{}, fmt.Errorf("decode phrases: %w", err)
	}
	merged := Defaults()
	if overlay.Replies != nil {
		replies := make([]string, 0, len(overlay.Replies))
		for _, reply := range overlay.Replies {
			if trimmed := strings.TrimSpace(reply); trimmed != "" {
				replies = append(replies, trimmed)
			}
		}
		if len(replies) == 0 {
			return Set{}, fmt.Errorf("phrases replies must not be empty")
		}
		merged.Replies = replies
	}
	overrideString(&merged.CooldownNotice, overlay.CooldownNotice)
	overrideString(&merged.PokeBack, overlay.PokeBack)
	overrideString(&merged.SuperPokeBack, overlay.SuperPokeBack)
	overrideString(&merged.MemeStatusFailure, overlay.MemeStatusFailure)
	overrideString(&merged.MemeFailure, overlay.MemeFailure)
	overrideString(&merged.SystemPrompt, overlay.SystemPrompt)
	overrideString(&merged.PromptTemplate, overlay.PromptTemplate)
	return merged, nil
}

func overrideString(target *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*target = trimmed
	}
}

// Reply picks the canned reply for the count-th poke; counts past the end
// reuse the last reply.
func (s Set) Reply(count int) string {
	if len(s.Replies) == 0 {
		return ""
	}
	index := count - 1
	if index < 0 {
		index = 0
	}
	if index >= len(s.Replies) {
		index = len(s.Replies) - 1
	}
	return s.Replies[index]
}

func (s Set) Prompt(name string, count int, window time.Duration) string {
	return Render(s.PromptTemplate, map[string]string{
		"name":   name,
		"count":  strconv.Itoa(count),
		"window": formatWindow(window),
	})
}

func (s Set) MemeStatusText(code int) string {
	return Render(s.MemeStatusFailure, map[string]string{"code": strconv.Itoa(code)})
}

func (s Set) MemeErrorText(err error) string {
	text := ""
	if err != nil {
		text = err.Error()
	}
	return Render(s.MemeFailure, map[string]string{"error": text})
}

func Render(template string, values map[string]string) string {
	out := template
	for key, value := range values {
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	return out
}

func formatWindow(window time.Duration) string {
	if window >= time.Minute && window%time.Minute == 0 {
		return strconv.Itoa(int(window/time.Minute)) + "分钟"
	}
	return strconv.Itoa(int(window/time.Second)) + "秒"
}

package onebot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	PostTypeMessage   = "message"
	PostTypeNotice    = "notice"
	PostTypeRequest   = "request"
	PostTypeMetaEvent = "meta_event"

	NoticeTypeNotify = "notify"
	SubTypePoke      = "poke"
)

// Event is a decoded OneBot v11 event. ID and ReceivedAt are assigned by the
// dispatcher, not by the protocol.
type Event struct {
	ID            string
	ReceivedAt    time.Time
	PostType      string
	NoticeType    string
	SubType       string
	MessageType   string
	MetaEventType string
	SelfID        int64
	UserID        int64
	TargetID      int64
	GroupID       int64
	Time          int64
	Raw           json.RawMessage
}

// IsPoke reports whether the event is a "notify/poke" notice.
func (e Event) IsPoke() bool {
	return e.PostType == PostTypeNotice && e.NoticeType == NoticeTypeNotify && e.SubType == SubTypePoke
}

// Target returns where replies to the event should go.
func (e Event) Target() Target {
	if e.GroupID > 0 {
		return Target{GroupID: e.GroupID}
	}
	return Target{UserID: e.UserID}
}

// Target addresses a group chat or, when GroupID is zero, a private chat.
type Target struct {
	GroupID int64
	UserID  int64
}

func (t Target) IsGroup() bool {
	return t.GroupID > 0
}

func (t Target) Valid() bool {
	return t.GroupID > 0 || t.UserID > 0
}

func (t Target) Key() string {
	if t.IsGroup() {
		return "group:" + strconv.FormatInt(t.GroupID, 10)
	}
	return "private:" + strconv.FormatInt(t.UserID, 10)
}

type rawFrame struct {
	PostType      string          `json:"post_type"`
	NoticeType    string          `json:"notice_type"`
	SubType       string          `json:"sub_type"`
	MessageType   string          `json:"message_type"`
	MetaEventType string          `json:"meta_event_type"`
	SelfID        json.RawMessage `json:"self_id"`
	UserID        json.RawMessage `json:"user_id"`
	TargetID      json.RawMessage `json:"target_id"`
	GroupID       json.RawMessage `json:"group_id"`
	Time          json.RawMessage `json:"time"`
	Echo          json.RawMessage `json:"echo"`
}

func (f rawFrame) echo() string {
	return parseJSONString(f.Echo)
}

func (f rawFrame) toEvent(payload []byte) (Event, error) {
	selfID, err := parseJSONInt64(f.SelfID)
	if err != nil {
		return Event{}, fmt.Errorf("parse self_id: %w", err)
	}
	userID, err := parseJSONInt64(f.UserID)
	if err != nil {
		return Event{}, fmt.Errorf("parse user_id: %w", err)
	}
	targetID, err := parseJSONInt64(f.TargetID)
	if err != nil {
		return Event{}, fmt.Errorf("parse target_id: %w", err)
	}
	groupID, err := parseJSONInt64(f.GroupID)
	if err != nil {
		return Event{}, fmt.Errorf("parse group_id: %w", err)
	}
	ts, _ := parseJSONInt64(f.Time)
	raw := make(json.RawMessage, len(payload))
	copy(raw, payload)
	return Event{
		PostType:      strings.TrimSpace(f.PostType),
		NoticeType:    strings.TrimSpace(f.NoticeType),
		SubType:       strings.TrimSpace(f.SubType),
		MessageType:   strings.TrimSpace(f.MessageType),
		MetaEventType: strings.TrimSpace(f.MetaEventType),
		SelfID:        selfID,
		UserID:        userID,
		TargetID:      targetID,
		GroupID:       groupID,
		Time:          ts,
		Raw:           raw,
	}, nil
}

type apiRequest struct {
	Action string `json:"action"`
	Params any    `json:"params"`
	Echo   string `json:"echo"`
}

// Response is the reply to an action call.
type Response struct {
	Status  string          `json:"status"`
	RetCode json.RawMessage `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Wording string          `json:"wording"`
	Echo    json.RawMessage `json:"echo"`
}

func (r Response) retCode() int64 {
	code, _ := parseJSONInt64(r.RetCode)
	return code
}

func (r Response) ok() bool {
	status := strings.ToLower(strings.TrimSpace(r.Status))
	return (status == "ok" || status == "async") && r.retCode() == 0
}

func (r Response) failureText() string {
	for _, text := range []string{r.Wording, r.Message, r.Status} {
		if strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	return "unknown error"
}

type segment struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

func textSegment(text string) segment {
	return segment{Type: "text", Data: map[string]string{"text": text}}
}

func base64ImageSegment(encoded string) segment {
	return segment{Type: "image", Data: map[string]string{"file": "base64://" + encoded}}
}

type memberInfo struct {
	Card     string `json:"card"`
	Nickname string `json:"nickname"`
}

func parseJSONInt64(raw json.RawMessage) (int64, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return 0, nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
		return strconv.ParseInt(s, 10, 64)
	}
	return 0, fmt.Errorf("cannot parse as int64: %s", trimmed)
}

func parseJSONString(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}

// Package message classifies inbound push-channel frames.
//
// Every frame is classified exactly once into one of three kinds: a heartbeat
// reply, a completion payload carrying the finished transcript, or a plain
// progress line. Classification never fails; anything that cannot be read as a
// completion payload is returned as text.
package message

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/bosley/lyrical/segments"
)

const (
	// HeartbeatToken is sent by the client on every heartbeat tick.
	HeartbeatToken = "ping"
	// HeartbeatReply is the server's answer to HeartbeatToken.
	HeartbeatReply = "pong"

	// legacyResultPrefix marks completion payloads from older backends that
	// did not carry a status field.
	legacyResultPrefix = "RESULT:"
)

type Kind int

const (
	KindText Kind = iota
	KindHeartbeat
	KindCompletion
)

func (k Kind) String() string {
	switch k {
	case KindHeartbeat:
		return "heartbeat"
	case KindCompletion:
		return "completion"
	default:
		return "text"
	}
}

// Message is the tagged result of Classify. Completion is set only for
// KindCompletion, Text only for KindText.
type Message struct {
	Kind       Kind
	Text       string
	Completion *Completion
}

// Completion is a decoded completion payload.
type Completion struct {
	Segments        []segments.Segment
	FullText        string
	Transliteration string
}

type wireSegment struct {
	ID              *int    `json:"id"`
	Start           float64 `json:"start"`
	End             float64 `json:"end"`
	Text            string  `json:"text"`
	Transliteration string  `json:"transliteration"`
}

type wireTransliterated struct {
	Text string `json:"text"`
}

type wirePayload struct {
	Status                 string               `json:"status"`
	Segments               []wireSegment        `json:"segments"`
	TransliteratedSegments []wireTransliterated `json:"transliterated_segments"`
	FullText               *string              `json:"full_text"`
	Text                   *string              `json:"text"`
	Transliteration        string               `json:"transliteration"`
}

// Classify inspects one raw frame. The first matching rule wins: the exact
// heartbeat reply, then a structured payload with a completion status, then
// plain text.
func Classify(raw string) Message {
	if raw == HeartbeatReply {
		return Message{Kind: KindHeartbeat}
	}

	body := raw
	legacy := false
	if strings.HasPrefix(body, legacyResultPrefix) {
		body = body[len(legacyResultPrefix):]
		legacy = true
	}

	trimmed := bytes.TrimSpace([]byte(body))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Message{Kind: KindText, Text: raw}
	}

	var p wirePayload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return Message{Kind: KindText, Text: raw}
	}
	if !legacy && !isComplete(p.Status) {
		return Message{Kind: KindText, Text: raw}
	}

	return Message{Kind: KindCompletion, Completion: p.completion()}
}

func isComplete(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "complete", "completed":
		return true
	}
	return false
}

func (p wirePayload) completion() *Completion {
	ids := segmentIDs(p.Segments)
	segs := make([]segments.Segment, len(p.Segments))
	for i, ws := range p.Segments {
		id := ids[i]
		start := ws.Start
		if start < 0 {
			start = 0
		}
		end := ws.End
		if end < start {
			end = start
		}
		segs[i] = segments.Segment{
			ID:              id,
			Start:           start,
			End:             end,
			Text:            ws.Text,
			Transliteration: ws.Transliteration,
		}
	}

	c := &Completion{Segments: segs}

	if len(p.TransliteratedSegments) > 0 {
		for i := range segs {
			if i < len(p.TransliteratedSegments) {
				segs[i].Transliteration = p.TransliteratedSegments[i].Text
			} else {
				segs[i].Transliteration = ""
			}
		}

		parts := make([]string, 0, len(p.TransliteratedSegments))
		for _, t := range p.TransliteratedSegments {
			if text := strings.TrimSpace(t.Text); text != "" {
				parts = append(parts, text)
			}
		}
		c.Transliteration = strings.TrimSpace(strings.Join(parts, " "))
	} else {
		c.Transliteration = strings.TrimSpace(p.Transliteration)
	}

	switch {
	case p.FullText != nil:
		c.FullText = *p.FullText
	case p.Text != nil:
		c.FullText = *p.Text
	}

	return c
}

// segmentIDs keeps explicit ids in payload order. A missing or repeated id is
// replaced by the lowest unused id at or above the segment's position.
func segmentIDs(segs []wireSegment) []int {
	taken := make(map[int]bool, len(segs))
	for _, ws := range segs {
		if ws.ID != nil {
			taken[*ws.ID] = true
		}
	}

	ids := make([]int, len(segs))
	kept := make(map[int]bool, len(segs))
	for i, ws := range segs {
		if ws.ID != nil && !kept[*ws.ID] {
			ids[i] = *ws.ID
			kept[*ws.ID] = true
			continue
		}
		id := i
		for taken[id] {
			id++
		}
		taken[id] = true
		kept[id] = true
		ids[i] = id
	}
	return ids
}

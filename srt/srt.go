// Package srt renders segment collections as SubRip subtitle documents.
package srt

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bosley/lyrical/segments"
)

const ContentType = "text/plain"

// Encode turns segs into an SRT document using the selected text field.
// Blocks are numbered from 1 and separated by a blank line.
func Encode(segs []segments.Segment, field segments.Field) string {
	if len(segs) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(segs))
	for i, seg := range segs {
		var b strings.Builder
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteByte('\n')
		b.WriteString(Timestamp(seg.Start))
		b.WriteString(" --> ")
		b.WriteString(Timestamp(seg.End))
		b.WriteByte('\n')
		b.WriteString(strings.TrimSpace(seg.Value(field)))
		b.WriteByte('\n')
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n")
}

// Timestamp formats seconds as HH:MM:SS,mmm, rounded to the nearest millisecond.
func Timestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// Filename returns the export name for a document built from field.
func Filename(language string, field segments.Field) string {
	if field == segments.FieldTransliteration {
		return "lyrics_transliteration.srt"
	}
	language = strings.TrimSpace(language)
	if language == "" {
		language = "original"
	}
	return "lyrics_" + language + ".srt"
}

package srt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bosley/lyrical/segments"
)

func TestEncodeEmpty(t *testing.T) {
	assert.Equal(t, "", Encode(nil, segments.FieldText))
	assert.Equal(t, "", Encode([]segments.Segment{}, segments.FieldTransliteration))
}

func TestEncodeSingleSegment(t *testing.T) {
	got := Encode([]segments.Segment{{Start: 1.5, End: 3.2, Text: "hi"}}, segments.FieldText)
	assert.Equal(t, "1\n00:00:01,500 --> 00:00:03,200\nhi\n", got)
}

func TestEncodeSeparatesBlocksAndTrims(t *testing.T) {
	segs := []segments.Segment{
		{ID: 7, Start: 0, End: 2.25, Text: "  first line ", Transliteration: "modati"},
		{ID: 9, Start: 3661.007, End: 3662, Text: "second", Transliteration: " rendava "},
	}

	assert.Equal(t,
		"1\n00:00:00,000 --> 00:00:02,250\nfirst line\n\n2\n01:01:01,007 --> 01:01:02,000\nsecond\n",
		Encode(segs, segments.FieldText))
	assert.Equal(t,
		"1\n00:00:00,000 --> 00:00:02,250\nmodati\n\n2\n01:01:01,007 --> 01:01:02,000\nrendava\n",
		Encode(segs, segments.FieldTransliteration))
}

func TestTimestamp(t *testing.T) {
	cases := map[float64]string{
		0:       "00:00:00,000",
		0.29:    "00:00:00,290",
		59.9999: "00:01:00,000",
		-3:      "00:00:00,000",
		36000.5: "10:00:00,500",
	}
	for in, want := range cases {
		assert.Equal(t, want, Timestamp(in), "seconds=%v", in)
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "lyrics_te.srt", Filename("te", segments.FieldText))
	assert.Equal(t, "lyrics_transliteration.srt", Filename("te", segments.FieldTransliteration))
	assert.Equal(t, "lyrics_original.srt", Filename("", segments.FieldText))
}

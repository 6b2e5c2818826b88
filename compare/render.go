package compare

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
)

var opColors = map[Op]text.Colors{
	OpMatch:        {text.FgGreen},
	OpSubstitution: {text.FgYellow},
	OpDeletion:     {text.FgRed, text.CrossedOut},
	OpInsertion:    {text.FgMagenta},
}

// Render zips the alignment into a reference line and a hypothesis line,
// one word per aligned unit. A side with no word for a unit (pure insertion
// or deletion) contributes nothing to that line.
func Render(r Result, colorize bool) (reference, hypothesis string) {
	var refWords, hypWords []string
	for _, t := range r.Alignment {
		if t.Ref != "" {
			refWords = append(refWords, paint(t.Ref, t.Type, colorize))
		}
		if t.Hyp != "" {
			hypWords = append(hypWords, paint(t.Hyp, t.Type, colorize))
		}
	}
	return strings.Join(refWords, " "), strings.Join(hypWords, " ")
}

// Summary is the one-line score shown above the rendered alignment.
func Summary(r Result) string {
	c := r.Counts()
	return fmt.Sprintf("WER %.2f%% over %d words (%d substitutions, %d deletions, %d insertions)",
		r.ErrorRate, r.TotalWords, c[OpSubstitution], c[OpDeletion], c[OpInsertion])
}

func paint(word string, op Op, colorize bool) string {
	if !colorize {
		return word
	}
	if colors, ok := opColors[op]; ok {
		return colors.Sprint(word)
	}
	return word
}

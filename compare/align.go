package compare

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Align computes the word-level edit-distance alignment between reference
// and hypothesis. Words are compared after NFC normalization and case
// folding; the emitted tokens keep their original spelling.
func Align(reference, hypothesis string) Result {
	ref := strings.Fields(reference)
	hyp := strings.Fields(hypothesis)
	refKey := keys(ref)
	hypKey := keys(hyp)

	n, m := len(ref), len(hyp)
	dist := make([][]int, n+1)
	for i := range dist {
		dist[i] = make([]int, m+1)
		dist[i][0] = i
	}
	for j := 0; j <= m; j++ {
		dist[0][j] = j
	}

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			cost := 1
			if refKey[i-1] == hypKey[j-1] {
				cost = 0
			}
			del := dist[i-1][j] + 1
			ins := dist[i][j-1] + 1
			sub := dist[i-1][j-1] + cost
			dist[i][j] = min(del, ins, sub)
		}
	}

	tokens := make([]Token, 0, max(n, m))
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && refKey[i-1] == hypKey[j-1] && dist[i][j] == dist[i-1][j-1]:
			tokens = append(tokens, Token{Ref: ref[i-1], Hyp: hyp[j-1], Type: OpMatch})
			i, j = i-1, j-1
		case i > 0 && j > 0 && dist[i][j] == dist[i-1][j-1]+1:
			tokens = append(tokens, Token{Ref: ref[i-1], Hyp: hyp[j-1], Type: OpSubstitution})
			i, j = i-1, j-1
		case i > 0 && dist[i][j] == dist[i-1][j]+1:
			tokens = append(tokens, Token{Ref: ref[i-1], Type: OpDeletion})
			i--
		default:
			tokens = append(tokens, Token{Hyp: hyp[j-1], Type: OpInsertion})
			j--
		}
	}
	for l, r := 0, len(tokens)-1; l < r; l, r = l+1, r-1 {
		tokens[l], tokens[r] = tokens[r], tokens[l]
	}

	res := Result{Alignment: tokens, TotalWords: n}
	if n > 0 {
		rate := float64(dist[n][m]) / float64(n) * 100
		res.ErrorRate = math.Round(rate*100) / 100
	}
	return res
}

func keys(words []string) []string {
	fold := cases.Fold()
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = fold.String(norm.NFC.String(w))
	}
	return out
}

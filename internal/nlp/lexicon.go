package nlp

import (
	"math"
	"strings"
)

// valenceLexicon is a small domain-adapted VADER-style valence table:
// word → strength in [-1, 1]. No ecosystem VADER port exists in the
// retrieved pack, so this table and the scorer built over it are the one
// hand-rolled piece of domain logic C6 needs (see DESIGN.md).
var valenceLexicon = map[string]float64{
	"approved":      0.6,
	"breakthrough":  0.8,
	"effective":     0.6,
	"encouraging":   0.5,
	"hope":          0.5,
	"hopeful":       0.5,
	"improve":       0.5,
	"improved":      0.5,
	"improvement":   0.5,
	"innovative":    0.5,
	"positive":      0.5,
	"promising":     0.6,
	"recovery":      0.5,
	"safe":          0.4,
	"success":       0.6,
	"successful":    0.6,
	"survival":      0.4,
	"advance":       0.4,
	"advances":      0.4,
	"benefit":       0.4,
	"benefits":      0.4,
	"good":          0.3,
	"remission":     0.7,
	"relief":        0.4,

	"aggressive":    -0.4,
	"concern":       -0.4,
	"concerns":      -0.4,
	"death":         -0.7,
	"deaths":        -0.7,
	"decline":       -0.5,
	"delay":         -0.3,
	"delayed":       -0.3,
	"die":           -0.7,
	"died":          -0.7,
	"disappointing": -0.5,
	"fail":          -0.6,
	"failed":        -0.6,
	"failure":       -0.6,
	"fatal":         -0.8,
	"grim":          -0.6,
	"harmful":       -0.6,
	"risk":          -0.3,
	"risks":         -0.3,
	"risky":         -0.4,
	"setback":       -0.5,
	"severe":        -0.5,
	"side effect":   -0.4,
	"side effects":  -0.4,
	"worsen":        -0.5,
	"worsening":     -0.5,
	"worse":         -0.5,
	"alarming":      -0.6,
	"controversial": -0.3,
}

// negators flip the sign of the valence word they precede (within a
// 3-token lookback window).
var negators = map[string]bool{
	"not": true, "no": true, "never": true, "without": true, "barely": true,
}

// intensifiers scale a following valence word's strength.
var intensifiers = map[string]float64{
	"very":       1.3,
	"extremely":  1.5,
	"significantly": 1.4,
	"highly":     1.3,
	"slightly":   0.7,
	"somewhat":   0.8,
	"marginally": 0.6,
}

// CompoundScore implements the lexicon-based valence scorer (spec.md
// §4.6): a word-level sum of matched lexicon entries, each adjustable by a
// preceding negator or intensifier, normalised into [-1, 1] via the
// VADER-style x/sqrt(x²+α) normalisation of that sum.
func CompoundScore(text string) float64 {
	tokens := tokenize(text)
	var sum float64
	for i, tok := range tokens {
		val, ok := valenceLexicon[tok]
		if !ok {
			// try a 2-word phrase ("side effect")
			if i+1 < len(tokens) {
				phrase := tok + " " + tokens[i+1]
				if v, ok2 := valenceLexicon[phrase]; ok2 {
					val, ok = v, true
				}
			}
		}
		if !ok {
			continue
		}

		scale := 1.0
		for back := 1; back <= 3 && i-back >= 0; back++ {
			prev := tokens[i-back]
			if negators[prev] {
				scale = -scale
			}
			if mult, ok := intensifiers[prev]; ok {
				scale *= mult
			}
		}
		sum += val * scale
	}

	if sum == 0 {
		return 0
	}
	const alpha = 15.0
	normalised := sum / math.Sqrt(sum*sum+alpha)
	if normalised > 1 {
		return 1
	}
	if normalised < -1 {
		return -1
	}
	return normalised
}

func tokenize(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return out
}

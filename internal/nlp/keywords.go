package nlp

import (
	"sort"
	"strings"
)

// medicalEntities is a small named-entity vocabulary of medical relevance
// beyond the topic phrase lists (drug names, gene names, test names),
// contributing keyword_type="entity" candidates.
var medicalEntities = []string{
	"brca1", "brca2", "her2", "tamoxifen", "herceptin", "trastuzumab",
	"letrozole", "anastrozole", "paclitaxel", "doxorubicin", "pembrolizumab",
	"fda", "who", "nih",
}

// Keyword is one extracted keyword candidate before it is attached to an
// Article (spec.md §4.6 keyword extraction; persisted as
// domain.ArticleKeyword once article_id is known).
type Keyword struct {
	Keyword        string
	RelevanceScore float64
	KeywordType    string
}

// ExtractKeywords implements spec.md §4.6's keyword extraction: top-N
// distinct phrases across every topic list that matched, plus detected
// named entities, each scored by normalised occurrence frequency.
func ExtractKeywords(text string, matches []matchedPhrase, topN int) []Keyword {
	if topN <= 0 {
		topN = 15
	}
	padded := " " + wordBoundaryNormalize(strings.ToLower(text)) + " "

	counts := make(map[string]int)
	types := make(map[string]string)

	seen := make(map[string]bool)
	for _, m := range matches {
		if seen[m.Phrase] {
			continue
		}
		seen[m.Phrase] = true
		counts[m.Phrase] = strings.Count(padded, " "+m.Phrase+" ")
		types[m.Phrase] = "topic"
	}
	for _, entity := range medicalEntities {
		n := strings.Count(padded, " "+entity+" ")
		if n == 0 {
			continue
		}
		counts[entity] = n
		types[entity] = "entity"
	}

	if len(counts) == 0 {
		return nil
	}

	maxCount := 0
	for _, n := range counts {
		if n > maxCount {
			maxCount = n
		}
	}

	type candidate struct {
		phrase string
		count  int
	}
	ordered := make([]candidate, 0, len(counts))
	for phrase, n := range counts {
		ordered = append(ordered, candidate{phrase, n})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].phrase < ordered[j].phrase
	})

	if len(ordered) > topN {
		ordered = ordered[:topN]
	}

	out := make([]Keyword, 0, len(ordered))
	for _, c := range ordered {
		out = append(out, Keyword{
			Keyword:        c.phrase,
			RelevanceScore: float64(c.count) / float64(maxCount),
			KeywordType:    types[c.phrase],
		})
	}
	return out
}

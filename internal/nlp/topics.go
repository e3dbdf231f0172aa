package nlp

import (
	"strings"

	"github.com/preventia/preventia-core/internal/domain"
)

// topicPhrases is TOPIC_SET → ordered keyword/phrase list (spec.md §4.6).
// The order within a topic does not affect scoring: scoreTopics weights
// every matched phrase by its word count, so longer, more specific phrases
// count for more.
var topicPhrases = map[domain.Topic][]string{
	domain.TopicTreatment: {
		"targeted therapy", "radiation therapy", "hormone therapy",
		"immunotherapy", "chemotherapy", "clinical trial", "treatment",
		"therapy", "medication", "drug",
	},
	domain.TopicResearch: {
		"clinical study", "research study", "peer-reviewed", "researchers",
		"study finds", "scientists", "research", "study", "trial",
	},
	domain.TopicSurgery: {
		"double mastectomy", "breast reconstruction", "lumpectomy",
		"mastectomy", "surgical", "surgery", "operation",
	},
	domain.TopicDiagnosis: {
		"early diagnosis", "biopsy result", "pathology report",
		"diagnosis", "diagnosed", "biopsy", "staging",
	},
	domain.TopicGenetics: {
		"brca1", "brca2", "genetic mutation", "genetic testing",
		"hereditary", "genetics", "gene", "mutation",
	},
	domain.TopicPrevention: {
		"risk reduction", "preventive measure", "healthy lifestyle",
		"prevention", "prevent", "preventive",
	},
	domain.TopicScreening: {
		"breast self-exam", "clinical exam", "mammography", "mammogram",
		"screening", "ultrasound",
	},
	domain.TopicLifestyle: {
		"physical activity", "diet and exercise", "lifestyle", "nutrition",
		"exercise", "diet", "wellness",
	},
	domain.TopicPolicy: {
		"insurance coverage", "public health policy", "healthcare policy",
		"legislation", "policy", "funding", "regulation",
	},
}

// scoreTopics implements spec.md §4.6's rule-assisted classifier: each
// topic's score is the count of distinct matching phrases, weighted by
// phrase length (longer phrase, more weight), matched case-insensitively
// on a word boundary. Returns the winning topic, its confidence, and the
// distinct phrases that matched across every topic (for keyword
// extraction).
func scoreTopics(text string) (domain.Topic, float64, []matchedPhrase) {
	lower := strings.ToLower(text)
	padded := " " + wordBoundaryNormalize(lower) + " "

	scores := make(map[domain.Topic]float64, len(topicPhrases))
	var matches []matchedPhrase

	for _, topic := range domain.TopicSet {
		phrases, ok := topicPhrases[topic]
		if !ok {
			continue
		}
		var score float64
		for _, phrase := range phrases {
			needle := " " + phrase + " "
			if strings.Contains(padded, needle) {
				weight := float64(len(strings.Fields(phrase)))
				score += weight
				matches = append(matches, matchedPhrase{Topic: topic, Phrase: phrase})
			}
		}
		if score > 0 {
			scores[topic] = score
		}
	}

	best := domain.TopicGeneral
	bestScore := 0.0
	for _, topic := range domain.TopicSet {
		s, ok := scores[topic]
		if !ok {
			continue
		}
		if s > bestScore {
			bestScore = s
			best = topic
		}
	}

	if bestScore == 0 {
		return domain.TopicGeneral, 0.3, matches
	}

	confidence := bestScore / 5.0
	if confidence > 1.0 {
		confidence = 1.0
	}
	return best, confidence, matches
}

type matchedPhrase struct {
	Topic  domain.Topic
	Phrase string
}

// wordBoundaryNormalize collapses punctuation to spaces so phrase
// matching against " phrase " behaves as a word-boundary match.
func wordBoundaryNormalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

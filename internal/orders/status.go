package orders

import (
	"orderscraper/lib/textutil"
)

// DefaultVocabulary maps each status to the phrases the storefront is known to render for it.
// The storefront's vocabulary is not documented, so it can be replaced through configuration.
var DefaultVocabulary = map[string][]string{
	"cancelled": {"cancelled", "canceled", "order failed", "payment failed"},
	"returned":  {"returned", "refunded", "refund", "return"},
	"delivered": {"delivered", "arrived", "completed"},
}

// classification precedence, "delivered, refund initiated" is a return and not a delivery
var precedence = []Status{StatusCancelled, StatusReturned, StatusDelivered}

// DefaultSimilarityThreshold is the minimum Jaro-Winkler similarity for a fuzzy status match.
const DefaultSimilarityThreshold = 0.88

type Classifier struct {
	phrases   map[Status][]string
	threshold float64
}

// NewClassifier builds a Classifier from a status name -> phrases vocabulary, a
// threshold <= 0 uses DefaultSimilarityThreshold.
func NewClassifier(vocabulary map[string][]string, threshold float64) (Classifier, error) {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	phrases := make(map[Status][]string, len(vocabulary))
	for name, list := range vocabulary {
		status, err := ParseStatus(name)
		if err != nil {
			return Classifier{}, err
		}
		phrases[status] = append(phrases[status], list...)
	}
	return Classifier{phrases: phrases, threshold: threshold}, nil
}

// MustDefaultClassifier returns the classifier over DefaultVocabulary.
func MustDefaultClassifier() Classifier {
	c, err := NewClassifier(DefaultVocabulary, DefaultSimilarityThreshold)
	if err != nil {
		panic(err)
	}
	return c
}

// Classify maps rendered status text to a Status, first by phrase containment
// (in precedence order) then by fuzzy similarity, otherwise StatusOther.
func (c Classifier) Classify(text string) Status {
	if textutil.Normalize(text) == "" {
		return StatusOther
	}

	for _, status := range precedence {
		_, ok := textutil.MatchAny(text, c.phrases[status])
		if ok {
			return status
		}
	}

	best := StatusOther
	var bestScore float64
	for _, status := range precedence {
		_, score := textutil.MostSimilar(text, c.phrases[status])
		if score > bestScore {
			best = status
			bestScore = score
		}
	}
	if bestScore >= c.threshold {
		return best
	}
	return StatusOther
}

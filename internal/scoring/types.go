package scoring

// Question types gradable by this package. Options and answer-key payloads
// are JSON whose shape is keyed by the type; the structs below are the only
// shapes the grader accepts.
const (
	SingleChoice   = "single_choice"
	MultipleChoice = "multiple_choice"
	TrueFalse      = "true_false"
	ShortText      = "short_text"
	Ordering       = "ordering"
	Matching       = "matching"
)

// ChoiceAnswer is the payload for single_choice, true_false and short_text.
// Answer holds an option id, "true"/"false", or free text respectively.
// For true_false a bare JSON boolean is also accepted on the wire.
type ChoiceAnswer struct {
	Answer string `json:"answer"`
}

// MultiChoiceAnswer is the payload for multiple_choice.
type MultiChoiceAnswer struct {
	Answers []string `json:"answers"`
}

// OrderingAnswer is the payload for ordering. Element order is significant.
type OrderingAnswer struct {
	Order []string `json:"order"`
}

// MatchingAnswer is the payload for matching. Keys are left-side item ids,
// values the matched right-side ids.
type MatchingAnswer struct {
	Matches map[string]string `json:"matches"`
}

// ChoiceOption is one entry of the options payload for choice questions.
type ChoiceOption struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	TextRu string `json:"textRu,omitempty"`
}

// OrderingItem is one entry of the options payload for ordering questions.
// Items are presented shuffled; the answer key carries the correct sequence.
type OrderingItem struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	TextRu string `json:"textRu,omitempty"`
}

// MatchingPair is one entry of the options payload for matching questions.
type MatchingPair struct {
	Left    string `json:"left"`
	Right   string `json:"right"`
	LeftRu  string `json:"leftRu,omitempty"`
	RightRu string `json:"rightRu,omitempty"`
}

func IsValidType(t string) bool {
	switch t {
	case SingleChoice, MultipleChoice, TrueFalse, ShortText, Ordering, Matching:
		return true
	}
	return false
}

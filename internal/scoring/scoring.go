package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Score compares a learner's submitted payload against the stored answer key
// for one question and reports whether the answer is correct. Scoring is
// all-or-nothing for every type; the caller awards either the question's full
// point value or zero.
//
// A missing, empty or malformed submission grades incorrect and never
// returns an error: the grading pass over a test must be total. Only a
// malformed answer key is an error, since that is an authoring defect.
func Score(questionType string, key, submitted json.RawMessage) (bool, error) {
	if isEmptyPayload(key) {
		return false, fmt.Errorf("question type %s: empty answer key", questionType)
	}

	switch questionType {
	case SingleChoice:
		return scoreSingleChoice(key, submitted)
	case MultipleChoice:
		return scoreMultipleChoice(key, submitted)
	case TrueFalse:
		return scoreTrueFalse(key, submitted)
	case ShortText:
		return scoreShortText(key, submitted)
	case Ordering:
		return scoreOrdering(key, submitted)
	case Matching:
		return scoreMatching(key, submitted)
	}
	return false, fmt.Errorf("unknown question type %q", questionType)
}

// Award maps a correctness verdict to the points earned.
func Award(correct bool, points int) int {
	if correct {
		return points
	}
	return 0
}

func scoreSingleChoice(key, submitted json.RawMessage) (bool, error) {
	var want ChoiceAnswer
	if err := json.Unmarshal(key, &want); err != nil || want.Answer == "" {
		return false, fmt.Errorf("single_choice: malformed answer key")
	}
	var got ChoiceAnswer
	if isEmptyPayload(submitted) || json.Unmarshal(submitted, &got) != nil {
		return false, nil
	}
	return got.Answer != "" && got.Answer == want.Answer, nil
}

func scoreMultipleChoice(key, submitted json.RawMessage) (bool, error) {
	var want MultiChoiceAnswer
	if err := json.Unmarshal(key, &want); err != nil || len(want.Answers) == 0 {
		return false, fmt.Errorf("multiple_choice: malformed answer key")
	}
	var got MultiChoiceAnswer
	if isEmptyPayload(submitted) || json.Unmarshal(submitted, &got) != nil {
		return false, nil
	}
	if len(got.Answers) != len(want.Answers) {
		return false, nil
	}
	a := append([]string(nil), want.Answers...)
	b := append([]string(nil), got.Answers...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false, nil
		}
	}
	return true, nil
}

func scoreTrueFalse(key, submitted json.RawMessage) (bool, error) {
	want, ok := decodeBoolAnswer(key)
	if !ok {
		return false, fmt.Errorf("true_false: malformed answer key")
	}
	got, ok := decodeBoolAnswer(submitted)
	if !ok {
		return false, nil
	}
	return got == want, nil
}

func scoreShortText(key, submitted json.RawMessage) (bool, error) {
	var want ChoiceAnswer
	if err := json.Unmarshal(key, &want); err != nil || strings.TrimSpace(want.Answer) == "" {
		return false, fmt.Errorf("short_text: malformed answer key")
	}
	var got ChoiceAnswer
	if isEmptyPayload(submitted) || json.Unmarshal(submitted, &got) != nil {
		return false, nil
	}
	// Trimmed, case-insensitive comparison. No fuzzy matching.
	return strings.EqualFold(strings.TrimSpace(got.Answer), strings.TrimSpace(want.Answer)), nil
}

func scoreOrdering(key, submitted json.RawMessage) (bool, error) {
	var want OrderingAnswer
	if err := json.Unmarshal(key, &want); err != nil || len(want.Order) == 0 {
		return false, fmt.Errorf("ordering: malformed answer key")
	}
	var got OrderingAnswer
	if isEmptyPayload(submitted) || json.Unmarshal(submitted, &got) != nil {
		return false, nil
	}
	if len(got.Order) != len(want.Order) {
		return false, nil
	}
	// Sequence equality: element order is the whole point here.
	for i := range want.Order {
		if got.Order[i] != want.Order[i] {
			return false, nil
		}
	}
	return true, nil
}

func scoreMatching(key, submitted json.RawMessage) (bool, error) {
	var want MatchingAnswer
	if err := json.Unmarshal(key, &want); err != nil || len(want.Matches) == 0 {
		return false, fmt.Errorf("matching: malformed answer key")
	}
	var got MatchingAnswer
	if isEmptyPayload(submitted) || json.Unmarshal(submitted, &got) != nil {
		return false, nil
	}
	if len(got.Matches) != len(want.Matches) {
		return false, nil
	}
	for left, right := range want.Matches {
		if got.Matches[left] != right {
			return false, nil
		}
	}
	return true, nil
}

// decodeBoolAnswer accepts {"answer": true}, {"answer": "true"} and a bare
// JSON boolean. Clients are not consistent about which one they send.
func decodeBoolAnswer(raw json.RawMessage) (bool, bool) {
	if isEmptyPayload(raw) {
		return false, false
	}
	var wrapped struct {
		Answer json.RawMessage `json:"answer"`
	}
	inner := raw
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Answer) > 0 {
		inner = wrapped.Answer
	}
	var b bool
	if err := json.Unmarshal(inner, &b); err == nil {
		return b, true
	}
	var s string
	if err := json.Unmarshal(inner, &s); err == nil {
		parsed, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return false, false
		}
		return parsed, true
	}
	return false, false
}

func isEmptyPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

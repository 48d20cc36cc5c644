package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ValidateQuestion checks an authored question's payloads: the answer key
// must have the shape the grader expects for the type, and key entries must
// reference ids that exist in the options payload. true_false and short_text
// carry no options.
func ValidateQuestion(questionType string, options, key json.RawMessage) error {
	if !IsValidType(questionType) {
		return fmt.Errorf("unknown question type %q", questionType)
	}
	if isEmptyPayload(key) {
		return errors.New("correct answer is required")
	}

	switch questionType {
	case SingleChoice, MultipleChoice:
		var opts []ChoiceOption
		if err := json.Unmarshal(options, &opts); err != nil || len(opts) < 2 {
			return errors.New("choice questions need at least two options")
		}
		ids := make(map[string]bool, len(opts))
		for _, o := range opts {
			if o.ID == "" {
				return errors.New("option id must not be empty")
			}
			ids[o.ID] = true
		}
		if questionType == SingleChoice {
			var k ChoiceAnswer
			if err := json.Unmarshal(key, &k); err != nil || k.Answer == "" {
				return errors.New("single_choice answer key must be {\"answer\": optionId}")
			}
			if !ids[k.Answer] {
				return fmt.Errorf("answer key references unknown option %q", k.Answer)
			}
		} else {
			var k MultiChoiceAnswer
			if err := json.Unmarshal(key, &k); err != nil || len(k.Answers) == 0 {
				return errors.New("multiple_choice answer key must be {\"answers\": [optionId]}")
			}
			for _, id := range k.Answers {
				if !ids[id] {
					return fmt.Errorf("answer key references unknown option %q", id)
				}
			}
		}

	case TrueFalse:
		if _, ok := decodeBoolAnswer(key); !ok {
			return errors.New("true_false answer key must be {\"answer\": bool}")
		}

	case ShortText:
		var k ChoiceAnswer
		if err := json.Unmarshal(key, &k); err != nil || k.Answer == "" {
			return errors.New("short_text answer key must be {\"answer\": string}")
		}

	case Ordering:
		var items []OrderingItem
		if err := json.Unmarshal(options, &items); err != nil || len(items) < 2 {
			return errors.New("ordering questions need at least two items")
		}
		ids := make(map[string]bool, len(items))
		for _, it := range items {
			ids[it.ID] = true
		}
		var k OrderingAnswer
		if err := json.Unmarshal(key, &k); err != nil || len(k.Order) != len(items) {
			return errors.New("ordering answer key must sequence every item id")
		}
		for _, id := range k.Order {
			if !ids[id] {
				return fmt.Errorf("answer key references unknown item %q", id)
			}
		}

	case Matching:
		var pairs []MatchingPair
		if err := json.Unmarshal(options, &pairs); err != nil || len(pairs) < 2 {
			return errors.New("matching questions need at least two pairs")
		}
		var k MatchingAnswer
		if err := json.Unmarshal(key, &k); err != nil || len(k.Matches) == 0 {
			return errors.New("matching answer key must be {\"matches\": {left: right}}")
		}
	}
	return nil
}

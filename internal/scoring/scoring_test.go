package scoring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(s string) json.RawMessage {
	return json.RawMessage(s)
}

func TestScoreSingleChoice(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		submitted string
		want      bool
	}{
		{"correct option", `{"answer":"2"}`, `{"answer":"2"}`, true},
		{"wrong option", `{"answer":"2"}`, `{"answer":"1"}`, false},
		{"empty answer", `{"answer":"2"}`, `{"answer":""}`, false},
		{"malformed payload", `{"answer":"2"}`, `{"answer":`, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Score(SingleChoice, raw(tc.key), raw(tc.submitted))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestScoreMultipleChoiceOrderInvariant(t *testing.T) {
	key := raw(`{"answers":["1","2"]}`)

	correct, err := Score(MultipleChoice, key, raw(`{"answers":["2","1"]}`))
	require.NoError(t, err)
	assert.True(t, correct, "reordered selection must still be correct")

	correct, err = Score(MultipleChoice, key, raw(`{"answers":["1"]}`))
	require.NoError(t, err)
	assert.False(t, correct, "missing selection must be wrong")

	correct, err = Score(MultipleChoice, key, raw(`{"answers":["1","2","3"]}`))
	require.NoError(t, err)
	assert.False(t, correct, "extra selection must be wrong")
}

func TestScoreTrueFalse(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		submitted string
		want      bool
	}{
		{"bool payload", `{"answer":false}`, `{"answer":false}`, true},
		{"bool mismatch", `{"answer":false}`, `{"answer":true}`, false},
		{"string payload", `{"answer":true}`, `{"answer":"true"}`, true},
		{"bare bool", `{"answer":true}`, `true`, true},
		{"garbage payload", `{"answer":true}`, `{"answer":"maybe"}`, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Score(TrueFalse, raw(tc.key), raw(tc.submitted))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestScoreShortText(t *testing.T) {
	key := raw(`{"answer":"Von Neumann"}`)

	tests := []struct {
		submitted string
		want      bool
	}{
		{`{"answer":"von neumann"}`, true},
		{`{"answer":"  Von Neumann  "}`, true},
		{`{"answer":"VON NEUMANN"}`, true},
		{`{"answer":"Turing"}`, false},
		{`{"answer":""}`, false},
	}

	for _, tc := range tests {
		got, err := Score(ShortText, key, raw(tc.submitted))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "submitted %s", tc.submitted)
	}
}

func TestScoreOrderingIsOrderSensitive(t *testing.T) {
	key := raw(`{"order":["1","2","3"]}`)

	correct, err := Score(Ordering, key, raw(`{"order":["1","2","3"]}`))
	require.NoError(t, err)
	assert.True(t, correct)

	correct, err = Score(Ordering, key, raw(`{"order":["2","1","3"]}`))
	require.NoError(t, err)
	assert.False(t, correct, "changing element order must flip correctness")

	correct, err = Score(Ordering, key, raw(`{"order":["1","2"]}`))
	require.NoError(t, err)
	assert.False(t, correct)
}

func TestScoreMatchingOrderIndependent(t *testing.T) {
	key := raw(`{"matches":{"a":"1","b":"2"}}`)

	correct, err := Score(Matching, key, raw(`{"matches":{"b":"2","a":"1"}}`))
	require.NoError(t, err)
	assert.True(t, correct)

	correct, err = Score(Matching, key, raw(`{"matches":{"a":"2","b":"1"}}`))
	require.NoError(t, err)
	assert.False(t, correct)

	correct, err = Score(Matching, key, raw(`{"matches":{"a":"1"}}`))
	require.NoError(t, err)
	assert.False(t, correct)
}

// Grading must be total: an absent submission grades incorrect for every
// type and never errors.
func TestScoreUnansweredNeverErrors(t *testing.T) {
	keys := map[string]string{
		SingleChoice:   `{"answer":"1"}`,
		MultipleChoice: `{"answers":["1","2"]}`,
		TrueFalse:      `{"answer":true}`,
		ShortText:      `{"answer":"x"}`,
		Ordering:       `{"order":["1","2"]}`,
		Matching:       `{"matches":{"a":"1","b":"2"}}`,
	}

	for qt, key := range keys {
		for _, submitted := range []string{"", "null", "{}"} {
			got, err := Score(qt, raw(key), raw(submitted))
			require.NoError(t, err, "%s with submission %q", qt, submitted)
			assert.False(t, got, "%s with submission %q", qt, submitted)
		}
	}
}

func TestScoreRejectsBadKeys(t *testing.T) {
	_, err := Score(SingleChoice, raw(`{}`), raw(`{"answer":"1"}`))
	assert.Error(t, err)

	_, err = Score("essay", raw(`{"answer":"x"}`), raw(`{"answer":"x"}`))
	assert.Error(t, err)

	_, err = Score(Ordering, raw(``), raw(`{"order":["1"]}`))
	assert.Error(t, err)
}

func TestAward(t *testing.T) {
	assert.Equal(t, 5, Award(true, 5))
	assert.Equal(t, 0, Award(false, 5))
}

func TestValidateQuestion(t *testing.T) {
	choiceOpts := raw(`[{"id":"1","text":"Yes"},{"id":"2","text":"No"}]`)

	tests := []struct {
		name    string
		qt      string
		options string
		key     string
		wantErr bool
	}{
		{"valid single choice", SingleChoice, string(choiceOpts), `{"answer":"2"}`, false},
		{"key references unknown option", SingleChoice, string(choiceOpts), `{"answer":"9"}`, true},
		{"one option only", SingleChoice, `[{"id":"1","text":"Yes"}]`, `{"answer":"1"}`, true},
		{"valid multiple choice", MultipleChoice, string(choiceOpts), `{"answers":["1","2"]}`, false},
		{"valid true false", TrueFalse, ``, `{"answer":false}`, false},
		{"valid short text", ShortText, ``, `{"answer":"ok"}`, false},
		{"short text empty key", ShortText, ``, `{"answer":""}`, true},
		{"valid ordering", Ordering, `[{"id":"1","text":"a"},{"id":"2","text":"b"}]`, `{"order":["2","1"]}`, false},
		{"ordering key misses item", Ordering, `[{"id":"1","text":"a"},{"id":"2","text":"b"}]`, `{"order":["1"]}`, true},
		{"valid matching", Matching, `[{"left":"a","right":"1"},{"left":"b","right":"2"}]`, `{"matches":{"a":"1","b":"2"}}`, false},
		{"unknown type", "essay", ``, `{"answer":"x"}`, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateQuestion(tc.qt, raw(tc.options), raw(tc.key))
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

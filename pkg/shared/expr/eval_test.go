package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvalBool(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		payload    string
		want       bool
		wantErr    bool
	}{
		{
			name:       "json field match",
			expression: `json(payload).lang == "en"`,
			payload:    `{"lang": "en", "text": "the cat sat"}`,
			want:       true,
		},
		{
			name:       "json field mismatch",
			expression: `json(payload).lang == "en"`,
			payload:    `{"lang": "fr", "text": "le chat"}`,
			want:       false,
		},
		{
			name:       "sprig contains",
			expression: `sprig.contains("cat", string(payload))`,
			payload:    `the cat sat`,
			want:       true,
		},
		{
			name:       "int conversion",
			expression: `int(json(payload).retweets) > 10`,
			payload:    `{"retweets": 42}`,
			want:       true,
		},
		{
			name:       "non boolean result",
			expression: `json(payload).lang`,
			payload:    `{"lang": "en"}`,
			wantErr:    true,
		},
		{
			name:       "bad expression",
			expression: `this is not an expression`,
			payload:    `{}`,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalBool(tt.expression, []byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalStr(t *testing.T) {
	got, err := EvalStr(`json(payload).created_at`, []byte(`{"created_at": "2021-08-01T10:00:00Z"}`))
	assert.NoError(t, err)
	assert.Equal(t, "2021-08-01T10:00:00Z", got)

	got, err = EvalStr(`sprig.upper(json(payload).lang)`, []byte(`{"lang": "en"}`))
	assert.NoError(t, err)
	assert.Equal(t, "EN", got)

	_, err = EvalStr(`json(payload`, []byte(`{}`))
	assert.Error(t, err)
}

func TestExpand(t *testing.T) {
	m := Expand(map[string]interface{}{"a.b": 1, "a.c": 2, "d": 3})
	assert.Equal(t, 3, m["d"])
	nested, ok := m["a"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, 1, nested["b"])
	assert.Equal(t, 2, nested["c"])
}

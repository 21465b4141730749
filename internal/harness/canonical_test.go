package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"type":   "tick",
		"seq":    int64(4),
		"script": "bot",
		"fatal":  false,
		"list":   []any{"b", 1},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"fatal":false,"list":["b",1],"script":"bot","seq":4,"type":"tick"}`, string(got))
}

func TestMarshalCanonical_UTF16KeyOrder(t *testing.T) {
	// U+E000 sorts before U+1F600 in UTF-8 byte order but after it in
	// UTF-16, where the emoji is a surrogate pair starting 0xD83D.
	got, err := MarshalCanonical(map[string]any{
		"\U0001F600": 1,
		"\uE000":     2,
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":1,\"\uE000\":2}", string(got))
}

func TestMarshalCanonical_Strings(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no html escaping", "<a & b>", `"<a & b>"`},
		{"nfc", "e\u0301", "\"\u00e9\""},
		{"control", "a\nb", `"a\nb"`},
		{"line separator", "a\u2028b", "\"a\u2028b\""},
		{"escaped backslash before u2028 text", `\u2028`, `"\\u2028"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	for name, v := range map[string]any{
		"null":       nil,
		"float":      1.5,
		"nested nil": map[string]any{"a": []any{nil}},
		"struct":     struct{}{},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := MarshalCanonical(v)
			assert.Error(t, err)
		})
	}
}

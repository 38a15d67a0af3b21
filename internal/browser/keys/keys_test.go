package keys

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

func TestParse(t *testing.T) {
	tests := []struct {
		expr string
		want schemas.KeyEventData
	}{
		{"Enter", schemas.KeyEventData{Key: "Enter", Code: "Enter", KeyCode: 13, Text: "\r"}},
		{"esc", schemas.KeyEventData{Key: "Escape", Code: "Escape", KeyCode: 27}},
		{"Control+a", schemas.KeyEventData{Key: "a", Code: "KeyA", KeyCode: 'A', Modifiers: schemas.ModCtrl}},
		{"Meta+a", schemas.KeyEventData{Key: "a", Code: "KeyA", KeyCode: 'A', Modifiers: schemas.ModMeta}},
		{"Shift+Tab", schemas.KeyEventData{Key: "Tab", Code: "Tab", KeyCode: 9, Modifiers: schemas.ModShift}},
		{"shift+a", schemas.KeyEventData{Key: "A", Code: "KeyA", KeyCode: 'A', Text: "A", Modifiers: schemas.ModShift}},
		{"ctrl+shift+F5", schemas.KeyEventData{Key: "F5", Code: "F5", KeyCode: 116, Modifiers: schemas.ModCtrl | schemas.ModShift}},
		{"7", schemas.KeyEventData{Key: "7", Code: "Digit7", KeyCode: '7', Text: "7"}},
		{"Control++", schemas.KeyEventData{Key: "+", Text: "", Modifiers: schemas.ModCtrl}},
		{"+", schemas.KeyEventData{Key: "+", Text: "+"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Parse(tt.expr)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.expr, diff)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, expr := range []string{"", "Hyper+a", "Control+", "NoSuchKey", "F13"} {
		_, err := Parse(expr)
		assert.Error(t, err, expr)
	}
}

func TestModifierKeys(t *testing.T) {
	got := ModifierKeys(schemas.ModShift | schemas.ModCtrl)
	require.Len(t, got, 2)
	assert.Equal(t, "Control", got[0].Key)
	assert.Equal(t, "Shift", got[1].Key)
	assert.Empty(t, ModifierKeys(0))
}

func TestChar_Newline(t *testing.T) {
	assert.Equal(t, "Enter", Char('\n', false).Key)
}

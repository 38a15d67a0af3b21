package locator

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

func TestToSelector(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		in   schemas.Locator
		want schemas.Selector
	}{
		{"css", Normalize("#save"), schemas.Selector{Kind: schemas.SelectorCSS, Expr: "#save"}},
		{"xpath", Normalize("//div[1]"), schemas.Selector{Kind: schemas.SelectorXPath, Expr: "//div[1]"}},
		{"test id", Normalize("[data-testid=save-btn]"), schemas.Selector{Kind: schemas.SelectorCSS, Expr: `[data-testid="save-btn"]`}},
		{"test id with quote", schemas.Locator{Strategy: schemas.StrategyTestID, Value: `a"b`}, schemas.Selector{Kind: schemas.SelectorCSS, Expr: `[data-testid="a\"b"]`}},
		{"role", Normalize("role=button"), schemas.Selector{Kind: schemas.SelectorRole, Expr: "button"}},
		{"role with name", Normalize(`role=button[name="Save file"]`), schemas.Selector{Kind: schemas.SelectorRole, Expr: "button", Name: "Save file"}},
		{"role with other attribute", Normalize(`role=checkbox[checked=true]`), schemas.Selector{Kind: schemas.SelectorRole, Expr: "checkbox"}},
		{"text", Normalize("text=Save"), schemas.Selector{
			Kind: schemas.SelectorXPath,
			Expr: `//*[contains(normalize-space(.), "Save") and not(*[contains(normalize-space(.), "Save")])]`,
		}},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ToSelector(tc.in)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ToSelector() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestToSelector_Untranslatable(t *testing.T) {
	t.Parallel()
	for _, l := range []schemas.Locator{Normalize("@e1"), Visual("the blue save icon")} {
		_, err := ToSelector(l)
		assert.ErrorIs(t, err, ErrUntranslatable)
	}
}

func TestXPathLiteral(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `"plain"`, xpathLiteral("plain"))
	assert.Equal(t, `'say "hi"'`, xpathLiteral(`say "hi"`))
	assert.Equal(t, `concat("it's ", '"', "fine", '"', "")`, xpathLiteral(`it's "fine"`))
}

func TestDescribe(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `element with text "Save"`, Describe(Normalize("text=Save")))
	assert.Equal(t, "button element", Describe(Normalize("role=button")))
	assert.Equal(t, "the red close icon", Describe(Visual("the red close icon")))
	assert.Equal(t, "element matching #save", Describe(Normalize("#save")))
	assert.Equal(t, "element matching //div", Describe(Normalize("//div")))
	assert.Equal(t, "element matching e3", Describe(Normalize("@e3")))
}

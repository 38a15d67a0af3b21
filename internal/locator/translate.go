package locator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

// ErrUntranslatable is returned for strategies the structural backend cannot query.
var ErrUntranslatable = errors.New("locator has no selector form")

// ToSelector translates a canonical locator into the selector handed to the
// structural backend. Reference and visual locators have no selector form.
func ToSelector(l schemas.Locator) (schemas.Selector, error) {
	switch l.Strategy {
	case schemas.StrategyCSS:
		return schemas.Selector{Kind: schemas.SelectorCSS, Expr: l.Value}, nil
	case schemas.StrategyXPath:
		return schemas.Selector{Kind: schemas.SelectorXPath, Expr: l.Value}, nil
	case schemas.StrategyTestID:
		return schemas.Selector{Kind: schemas.SelectorCSS, Expr: fmt.Sprintf(`[data-testid=%s]`, cssString(l.Value))}, nil
	case schemas.StrategyText:
		return schemas.Selector{Kind: schemas.SelectorXPath, Expr: textXPath(l.Value)}, nil
	case schemas.StrategyRole:
		role, name := parseRole(l.Value)
		return schemas.Selector{Kind: schemas.SelectorRole, Expr: role, Name: name}, nil
	default:
		return schemas.Selector{}, fmt.Errorf("%w: %s", ErrUntranslatable, l.Strategy)
	}
}

// textXPath matches the innermost elements whose normalized text contains v.
func textXPath(v string) string {
	lit := xpathLiteral(strings.TrimSpace(v))
	return fmt.Sprintf(`//*[contains(normalize-space(.), %s) and not(*[contains(normalize-space(.), %s)])]`, lit, lit)
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	var b strings.Builder
	b.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			b.WriteString(`, '"', `)
		}
		b.WriteString(`"` + p + `"`)
	}
	b.WriteString(")")
	return b.String()
}

func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// parseRole splits `button` or `button[name="Save"]` into role and accessible name.
func parseRole(v string) (role, name string) {
	v = strings.TrimSpace(v)
	open := strings.IndexByte(v, '[')
	if open < 0 || !strings.HasSuffix(v, "]") {
		return v, ""
	}
	role = strings.TrimSpace(v[:open])
	attr := v[open+1 : len(v)-1]
	key, val, ok := strings.Cut(attr, "=")
	if !ok || strings.TrimSpace(key) != "name" {
		return role, ""
	}
	return role, unquote(strings.TrimSpace(val))
}

package mapping

import (
	"strconv"
	"strings"
	"time"

	"github.com/harborgrid/c360/internal/model"
)

// Transform is a parsed transformation expression. The language is a single
// attribute reference optionally wrapped in one function call:
//
//	attr
//	to_integer(attr)  to_real(attr)  to_date(attr)  to_text(attr)
//	trim(attr)        upper(attr)    lower(attr)
type Transform struct {
	Func string
	Attr string
}

var transformFuncs = map[string]bool{
	"to_integer": true,
	"to_real":    true,
	"to_date":    true,
	"to_text":    true,
	"trim":       true,
	"upper":      true,
	"lower":      true,
}

// ParseTransform parses a transformation expression. An empty expression is
// rejected; callers that want a pass-through use a bare attribute name.
func ParseTransform(logic string) (*Transform, error) {
	logic = strings.TrimSpace(logic)
	if logic == "" {
		return nil, model.NewValidationError("transformation_logic", "empty expression")
	}

	open := strings.IndexByte(logic, '(')
	if open < 0 {
		if strings.ContainsAny(logic, ") \t") {
			return nil, model.NewValidationError("transformation_logic", "malformed expression "+strconv.Quote(logic))
		}
		return &Transform{Attr: logic}, nil
	}

	if !strings.HasSuffix(logic, ")") {
		return nil, model.NewValidationError("transformation_logic", "unbalanced parentheses in "+strconv.Quote(logic))
	}
	fn := strings.TrimSpace(logic[:open])
	attr := strings.TrimSpace(logic[open+1 : len(logic)-1])
	if !transformFuncs[fn] {
		return nil, model.NewValidationError("transformation_logic", "unknown function "+strconv.Quote(fn))
	}
	if attr == "" || strings.ContainsAny(attr, "()") {
		return nil, model.NewValidationError("transformation_logic", "malformed argument in "+strconv.Quote(logic))
	}
	return &Transform{Func: fn, Attr: attr}, nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// Apply evaluates the transform against one sampled value. An empty input is
// a null, not an error. The second return reports null-ness so callers can
// distinguish "no value" from a produced empty string.
func (t *Transform) Apply(value string) (string, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", true, nil
	}

	switch t.Func {
	case "", "to_text":
		return value, false, nil
	case "trim":
		return value, false, nil
	case "upper":
		return strings.ToUpper(value), false, nil
	case "lower":
		return strings.ToLower(value), false, nil
	case "to_integer":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return strconv.FormatInt(n, 10), false, nil
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "", false, model.NewValidationError("value", strconv.Quote(value)+" is not an integer")
		}
		return strconv.FormatInt(int64(f), 10), false, nil
	case "to_real":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "", false, model.NewValidationError("value", strconv.Quote(value)+" is not a number")
		}
		return strconv.FormatFloat(f, 'g', -1, 64), false, nil
	case "to_date":
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, value); err == nil {
				return ts.Format("2006-01-02"), false, nil
			}
		}
		return "", false, model.NewValidationError("value", strconv.Quote(value)+" is not a date")
	}
	return "", false, model.NewValidationError("transformation_logic", "unknown function "+strconv.Quote(t.Func))
}

// GenerateTransform builds the transformation expression for mapping a source
// attribute of one type onto a target of another. Matching types pass the
// attribute through untouched.
func GenerateTransform(attrName string, source, target model.DataType) string {
	if source == target {
		return attrName
	}
	switch target {
	case model.TypeInteger:
		return "to_integer(" + attrName + ")"
	case model.TypeReal:
		return "to_real(" + attrName + ")"
	case model.TypeDate:
		return "to_date(" + attrName + ")"
	case model.TypeText:
		return "to_text(" + attrName + ")"
	}
	return attrName
}

// CheckTransform performs the static checks applied at validation time:
// the expression must parse, and numeric or date targets fed from a
// differently-typed source must carry the matching coercion.
func CheckTransform(logic string, source, target model.DataType) []string {
	t, err := ParseTransform(logic)
	if err != nil {
		return []string{err.Error()}
	}

	var issues []string
	if source != target {
		want := ""
		switch target {
		case model.TypeInteger:
			want = "to_integer"
		case model.TypeReal:
			want = "to_real"
		case model.TypeDate:
			want = "to_date"
		}
		if want != "" && t.Func != want {
			issues = append(issues, "target type "+string(target)+" requires "+want+"() over a "+string(source)+" source")
		}
	}
	return issues
}

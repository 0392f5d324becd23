package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid/c360/internal/model"
)

func TestParseTransform(t *testing.T) {
	tr, err := ParseTransform("cust_id")
	require.NoError(t, err)
	assert.Equal(t, "", tr.Func)
	assert.Equal(t, "cust_id", tr.Attr)

	tr, err = ParseTransform("to_integer(age)")
	require.NoError(t, err)
	assert.Equal(t, "to_integer", tr.Func)
	assert.Equal(t, "age", tr.Attr)

	tr, err = ParseTransform(" trim( name ) ")
	require.NoError(t, err)
	assert.Equal(t, "trim", tr.Func)
	assert.Equal(t, "name", tr.Attr)
}

func TestParseTransform_Rejects(t *testing.T) {
	for _, logic := range []string{
		"",
		"   ",
		"to_float(x)",
		"to_integer(x",
		"to_integer()",
		"to_integer(a(b))",
		"two words",
	} {
		_, err := ParseTransform(logic)
		assert.True(t, model.IsValidationError(err), "expected validation error for %q", logic)
	}
}

func TestTransformApply(t *testing.T) {
	cases := []struct {
		logic  string
		in     string
		out    string
		isNull bool
		fails  bool
	}{
		{"attr", "Hello", "Hello", false, false},
		{"attr", "", "", true, false},
		{"attr", "   ", "", true, false},
		{"to_integer(a)", "42", "42", false, false},
		{"to_integer(a)", "42.9", "42", false, false},
		{"to_integer(a)", "abc", "", false, true},
		{"to_real(a)", "3.14", "3.14", false, false},
		{"to_real(a)", "x", "", false, true},
		{"to_date(a)", "2026-08-31", "2026-08-31", false, false},
		{"to_date(a)", "08/31/2026", "2026-08-31", false, false},
		{"to_date(a)", "yesterday", "", false, true},
		{"to_text(a)", "7", "7", false, false},
		{"trim(a)", "  padded  ", "padded", false, false},
		{"upper(a)", "abc", "ABC", false, false},
		{"lower(a)", "ABC", "abc", false, false},
	}
	for _, tc := range cases {
		tr, err := ParseTransform(tc.logic)
		require.NoError(t, err, tc.logic)
		out, isNull, err := tr.Apply(tc.in)
		if tc.fails {
			assert.Error(t, err, "%s(%q)", tc.logic, tc.in)
			continue
		}
		require.NoError(t, err, "%s(%q)", tc.logic, tc.in)
		assert.Equal(t, tc.out, out, "%s(%q)", tc.logic, tc.in)
		assert.Equal(t, tc.isNull, isNull, "%s(%q)", tc.logic, tc.in)
	}
}

func TestGenerateTransform(t *testing.T) {
	assert.Equal(t, "cust_id", GenerateTransform("cust_id", model.TypeText, model.TypeText))
	assert.Equal(t, "to_integer(age)", GenerateTransform("age", model.TypeText, model.TypeInteger))
	assert.Equal(t, "to_real(amount)", GenerateTransform("amount", model.TypeInteger, model.TypeReal))
	assert.Equal(t, "to_date(created)", GenerateTransform("created", model.TypeText, model.TypeDate))
	assert.Equal(t, "to_text(flag)", GenerateTransform("flag", model.TypeBoolean, model.TypeText))
}

func TestCheckTransform(t *testing.T) {
	assert.Empty(t, CheckTransform("cust_id", model.TypeText, model.TypeText))
	assert.Empty(t, CheckTransform("to_integer(age)", model.TypeText, model.TypeInteger))

	issues := CheckTransform("age", model.TypeText, model.TypeInteger)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "to_integer")

	issues = CheckTransform("to_garbage(x)", model.TypeText, model.TypeText)
	require.Len(t, issues, 1)
}

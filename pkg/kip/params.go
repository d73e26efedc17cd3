package kip

import (
	"strconv"

	"github.com/andalabs/andadb/internal/errors"
)

// SubstituteParams replaces every bare `$name` placeholder outside of
// quoted strings with a literal rendering of params[name], preserving
// its Go type (spec.md §4.5: substitution is "typed ... never textual
// concatenation"). `$name` occurrences inside a quoted string (e.g. the
// meta-schema's own "$ConceptType" literal) are left untouched — they
// are domain values, not placeholders.
func SubstituteParams(src string, params map[string]any) (string, error) {
	var out []byte
	inString := false
	for i := 0; i < len(src); i++ {
		c := src[i]

		if inString {
			out = append(out, c)
			if c == '\\' && i+1 < len(src) {
				i++
				out = append(out, src[i])
				continue
			}
			if c == '"' {
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}

		if c == '$' {
			j := i + 1
			for j < len(src) && isIdentByte(src[j]) {
				j++
			}
			if j > i+1 {
				name := src[i+1 : j]
				v, ok := params[name]
				if !ok {
					return "", errors.Validationf("kip: unbound parameter $%s", name).WithPath("$" + name)
				}
				lit, err := literalFor(v)
				if err != nil {
					return "", err
				}
				out = append(out, lit...)
				i = j - 1
				continue
			}
		}

		out = append(out, c)
	}
	if inString {
		return "", errors.Validationf("kip: unterminated string literal")
	}
	return string(out), nil
}

func isIdentByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// literalFor renders a parameter value as KIP source text.
func literalFor(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case string:
		return strconv.Quote(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	default:
		return "", errors.Validationf("kip: parameter has unsupported type %T", v)
	}
}

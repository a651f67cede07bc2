// Package naming converts native C identifiers into Go identifiers.
package naming

import (
	"go/token"
	"strings"
	"unicode"
)

// ToSnakeCase converts PascalCase or camelCase to snake_case.
// Handles acronyms properly (e.g., "HTTPSConnection" -> "https_connection")
func ToSnakeCase(s string) string {
	var result strings.Builder
	runes := []rune(s)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if i > 0 && unicode.IsUpper(r) {
			// no underscore inside an acronym, unless it ends here
			prevUpper := unicode.IsUpper(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if (!prevUpper || nextLower) && runes[i-1] != '_' {
				result.WriteRune('_')
			}
		}
		result.WriteRune(r)
	}

	return strings.ToLower(result.String())
}

// ToPascalCase converts snake_case, SCREAMING_SNAKE, kebab-case or camelCase
// to PascalCase. All-capital parts are title-cased ("STRUCTURE_TYPE" becomes
// "StructureType") except a lone short acronym such as "API".
func ToPascalCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		runes := []rune(part)
		if len(runes) == 0 {
			continue
		}
		if allUpper(runes) && (len(parts) > 1 || len(runes) > 3) {
			for i := 1; i < len(runes); i++ {
				runes[i] = unicode.ToLower(runes[i])
			}
		}
		result.WriteRune(unicode.ToUpper(runes[0]))
		result.WriteString(string(runes[1:]))
	}

	return result.String()
}

// ToCamelCase converts to camelCase. A leading acronym is lowered as a
// whole ("URLPath" -> "urlPath").
func ToCamelCase(s string) string {
	runes := []rune(ToPascalCase(s))
	for i := 0; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			break
		}
		// keep the last capital of an acronym that starts a new word
		if i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			break
		}
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

// StripPrefix removes the first matching prefix, compared case-insensitively.
// A prefix only matches up to a word boundary ("p" strips "pDevice" but not
// "pitch"). The name is returned unchanged when stripping would leave it
// empty or not starting with a letter.
func StripPrefix(name string, prefixes ...string) string {
	for _, p := range prefixes {
		if p == "" || len(name) <= len(p) || !strings.EqualFold(name[:len(p)], p) {
			continue
		}
		// the prefix must end on a word boundary
		if unicode.IsLower(rune(name[len(p)])) {
			continue
		}
		rest := strings.TrimLeft(name[len(p):], "_")
		if rest == "" || !unicode.IsLetter([]rune(rest)[0]) {
			continue
		}
		return rest
	}
	return name
}

// Safe makes name usable as a Go identifier by suffixing keywords and
// prefixing names that start with a digit.
func Safe(name string) string {
	if name == "" {
		return "_"
	}
	if token.IsKeyword(name) {
		return name + "_"
	}
	if unicode.IsDigit([]rune(name)[0]) {
		return "_" + name
	}
	return name
}

// Exported reports whether name starts with an upper-case letter.
func Exported(name string) bool {
	return token.IsExported(name)
}

func allUpper(runes []rune) bool {
	for _, r := range runes {
		if unicode.IsLower(r) {
			return false
		}
	}
	return true
}

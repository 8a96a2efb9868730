// Package render fills template bodies with notification and user fields.
package render

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMissingField marks a rendering failure caused by a placeholder with
// no matching field. It is permanent: retrying cannot fix a template bug,
// and leaving the literal placeholder would leak it to the recipient.
var ErrMissingField = errors.New("missing template field")

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Render substitutes every {name} placeholder in body with fields[name].
func Render(body string, fields map[string]string) (string, error) {
	var missing []string

	out := placeholderRe.ReplaceAllStringFunc(body, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := fields[key]
		if !ok {
			missing = append(missing, key)
			return m
		}
		return v
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}

	return out, nil
}

package zipspec

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeName decodes an archived name. Bit 11 of the general-purpose
// flags marks the name as UTF-8; otherwise it is CP437, which maps every
// byte to a defined codepoint.
func decodeName(raw []byte, utf8Flagged bool) (string, error) {
	if utf8Flagged {
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("name %q flagged UTF-8 but is not: %w", raw, ErrInvalidName)
		}
		return string(raw), nil
	}
	decoded, err := charmap.CodePage437.NewDecoder().Bytes(raw)
	if err != nil {
		// CP437 decoding is total; an error here means the decoder itself
		// failed rather than the input being undecodable.
		return "", fmt.Errorf("decoding CP437 name %q: %w", raw, ErrInvalidName)
	}
	return string(decoded), nil
}

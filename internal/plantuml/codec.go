// Package plantuml implements the PlantUML Text Encoding format used to embed
// diagram sources in URLs: raw DEFLATE compression wrapped in base64 with a
// reordered alphabet.
package plantuml

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// alphabet carries the same 64 symbols as base64 but in PlantUML's order, so
// the standard codec works once pointed at this table. Groups of 4 characters
// decode to 3 bytes; trailing groups of 2 or 3 characters decode to 1 or 2
// bytes. There is no padding character.
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

var encoding = base64.NewEncoding(alphabet).WithPadding(base64.NoPadding)

// ErrInvalidEncoding signals malformed input: characters outside the PlantUML
// alphabet, an impossible group length, or a corrupt compressed stream.
var ErrInvalidEncoding = errors.New("invalid plantuml text encoding")

// Decode expands text in PlantUML Text Encoding format back into the original
// document. The empty string decodes to the empty string; any malformed input
// fails with ErrInvalidEncoding rather than returning a truncated document.
func Decode(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	for i, r := range encoded {
		if !strings.ContainsRune(alphabet, r) {
			return "", fmt.Errorf("%w: character %q at offset %d", ErrInvalidEncoding, r, i)
		}
	}

	packed, err := encoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	fr := flate.NewReader(bytes.NewReader(packed))
	defer fr.Close()
	text, err := io.ReadAll(fr)
	if err != nil {
		return "", fmt.Errorf("%w: corrupt deflate stream: %v", ErrInvalidEncoding, err)
	}
	if !utf8.Valid(text) {
		return "", fmt.Errorf("%w: decoded payload is not valid UTF-8", ErrInvalidEncoding)
	}
	return string(text), nil
}

// Encode produces the PlantUML Text Encoding form of a document, suitable for
// the /plantuml/<imagetype>/<encoded> route and for sharing links.
func Encode(text string) (string, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write([]byte(text)); err != nil {
		return "", err
	}
	if err := fw.Close(); err != nil {
		return "", err
	}
	return encoding.EncodeToString(buf.Bytes()), nil
}

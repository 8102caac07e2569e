package domain

import "fmt"

// Format identifies an output image format by its short token ("svg", "png").
type Format string

const (
	// FormatSVG is the vector output format and the engine's default.
	FormatSVG Format = "svg"
	// FormatPNG is the raster output format.
	FormatPNG Format = "png"
)

// DefaultFormat is used when a request does not specify an output format.
const DefaultFormat = FormatSVG

// The supported set is closed: every format maps to exactly one MIME type and
// back. Keep both maps in sync when adding a format.
var (
	formatToMIME = map[Format]string{
		FormatSVG: "image/svg+xml",
		FormatPNG: "image/png",
	}
	mimeToFormat = map[string]Format{
		"image/svg+xml": FormatSVG,
		"image/png":     FormatPNG,
	}
)

// ParseFormat validates a format token from client input.
func ParseFormat(token string) (Format, error) {
	f := Format(token)
	if _, ok := formatToMIME[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, token)
	}
	return f, nil
}

// FormatFromMIME maps a MIME type string onto its format token. The match is
// exact and case-sensitive; anything outside the closed set is rejected.
func FormatFromMIME(mime string) (Format, error) {
	f, ok := mimeToFormat[mime]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, mime)
	}
	return f, nil
}

// MIMEType returns the MIME type for a format. Total for parsed formats;
// an unknown value yields the empty string.
func (f Format) MIMEType() string {
	return formatToMIME[f]
}

// Ext returns the filename extension for the format, without the dot.
func (f Format) Ext() string {
	return string(f)
}

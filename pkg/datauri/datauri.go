package datauri

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned when the payload does not follow the
// data:<media-type>;base64,<payload> shape or the payload is not valid
// base64.
var ErrMalformed = errors.New("malformed data URI payload")

// File is a decoded data-URI attachment.
type File struct {
	MediaType string
	Data      []byte
}

// Parse decodes a "data:<media-type>;base64,<payload>" string.
// Decoding is byte-exact: encoding File.Data again reproduces the
// original payload for both text and binary content.
func Parse(raw string) (*File, error) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: missing data: prefix", ErrMalformed)
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing payload separator", ErrMalformed)
	}

	mediaType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, fmt.Errorf("%w: only base64 encoding is supported", ErrMalformed)
	}
	if mediaType == "" {
		return nil, fmt.Errorf("%w: missing media type", ErrMalformed)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &File{MediaType: mediaType, Data: data}, nil
}

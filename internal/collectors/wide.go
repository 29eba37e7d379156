package collectors

import (
	"encoding/binary"
	"unicode/utf16"

	"golang.org/x/text/encoding/unicode"
	"gopkg.in/guregu/null.v2"
)

var wideEncoding = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// decodeWide converts a UTF-16 string to a Go string. Zero length is null;
// the content itself is never inspected.
func decodeWide(w []uint16) null.String {
	if len(w) == 0 {
		return null.NewString("", false)
	}

	buf := make([]byte, 2*len(w))
	for i, c := range w {
		binary.LittleEndian.PutUint16(buf[2*i:], c)
	}

	out, err := wideEncoding.NewDecoder().Bytes(buf)
	if err != nil {
		return null.StringFrom(string(utf16.Decode(w)))
	}
	return null.StringFrom(string(out))
}

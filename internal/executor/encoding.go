package executor

import (
	"bytes"
	"io"
	"sort"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Decoder wraps raw command output so it reads as UTF-8.
type Decoder func(io.Reader) io.Reader

func passthrough(r io.Reader) io.Reader { return r }

// Console tools such as net.exe write in the OEM code page of the host
// unless the console has been switched to UTF-8.
var codePages = map[string]encoding.Encoding{
	"cp437":        charmap.CodePage437,
	"cp850":        charmap.CodePage850,
	"cp852":        charmap.CodePage852,
	"cp866":        charmap.CodePage866,
	"windows-1250": charmap.Windows1250,
	"windows-1252": charmap.Windows1252,
}

func lookupDecoder(name string) (Decoder, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "utf-8" || name == "utf8" {
		return passthrough, true
	}
	enc, ok := codePages[name]
	if !ok {
		return nil, false
	}
	return func(r io.Reader) io.Reader {
		return transform.NewReader(r, enc.NewDecoder())
	}, true
}

// KnownEncoding reports whether name is accepted by WithEncoding.
func KnownEncoding(name string) bool {
	_, ok := lookupDecoder(name)
	return ok
}

// Encodings lists the accepted encoding names.
func Encodings() []string {
	names := []string{"utf-8"}
	for name := range codePages {
		names = append(names, name)
	}
	sort.Strings(names[1:])
	return names
}

func decodeString(d Decoder, raw []byte) string {
	out, err := io.ReadAll(d(bytes.NewReader(raw)))
	if err != nil {
		return string(raw)
	}
	return string(out)
}

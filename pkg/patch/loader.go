package patch

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LoadOptions control how LoadLines materializes content.
type LoadOptions struct {
	// KeepDelimiters retains each line's terminator.
	KeepDelimiters bool
	// DefaultCharset applies when the source does not report a charset.
	DefaultCharset string
	Logger         Logger
}

// Loaded is the result of LoadLines.
type Loaded struct {
	Lines []string
	// Charset names the encoding used to decode the content.
	Charset string
	// Delimiter is the first line terminator found, or "\n".
	Delimiter string

	encoding encoding.Encoding
}

// LoadLines reads src fully and splits it into lines. A missing source
// yields no lines when create is set and a TARGET_MISSING error otherwise.
// A byte-order mark overrides any configured charset; an unknown charset
// falls back to UTF-8 with a warning. UTF-8 content with invalid bytes is
// kept as raw bytes so it round-trips unchanged.
func LoadLines(src ContentSource, create bool, opts LoadOptions) (Loaded, error) {
	logger := opts.Logger
	if logger == nil {
		logger = &NoOpLogger{}
	}
	name := strings.TrimSpace(opts.DefaultCharset)
	if name == "" {
		name = DefaultCharset
	}
	if src != nil {
		if cs, ok := src.Charset(); ok {
			name = cs
		}
	}

	if src == nil || !src.Exists() {
		if !create {
			return Loaded{}, &Error{Code: CodeTargetMissing, Message: "target does not exist"}
		}
		enc, resolved := lookupEncoding(name, logger)
		return Loaded{Lines: []string{}, Charset: resolved, Delimiter: "\n", encoding: enc}, nil
	}

	rc, err := src.Open()
	if err != nil {
		return Loaded{}, fmt.Errorf("open target: %w", err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return Loaded{}, fmt.Errorf("read target: %w", err)
	}

	enc, resolved := lookupEncoding(name, logger)
	decoder := enc.NewDecoder()
	if bomEnc, bomName, ok := bomEncoding(raw); ok {
		enc, resolved = bomEnc, bomName
	} else if resolved == "utf-8" && !utf8.Valid(raw) {
		// Keep invalid bytes as they are so untouched lines round-trip.
		logger.Warn("content is not valid UTF-8, keeping raw bytes", Field("charset", resolved))
		enc = encoding.Nop
		decoder = enc.NewDecoder()
	}
	decoded, _, err := transform.Bytes(unicode.BOMOverride(decoder), raw)
	if err != nil {
		return Loaded{}, fmt.Errorf("decode target as %s: %w", resolved, err)
	}
	text := string(decoded)
	return Loaded{
		Lines:     SplitLines(text, opts.KeepDelimiters),
		Charset:   resolved,
		Delimiter: detectDelimiter(text),
		encoding:  enc,
	}, nil
}

// SplitLines splits text on "\n", "\r\n", and lone "\r". Empty text yields
// no lines; a trailing terminator does not produce an extra empty line.
func SplitLines(text string, keepDelimiters bool) []string {
	lines := []string{}
	start := 0
	for i := 0; i < len(text); i++ {
		var end int
		switch text[i] {
		case '\n':
			end = i + 1
		case '\r':
			end = i + 1
			if i+1 < len(text) && text[i+1] == '\n' {
				end = i + 2
			}
		default:
			continue
		}
		if keepDelimiters {
			lines = append(lines, text[start:end])
		} else {
			lines = append(lines, text[start:i])
		}
		start = end
		i = end - 1
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

func detectDelimiter(text string) string {
	idx := strings.IndexAny(text, "\r\n")
	if idx < 0 {
		return "\n"
	}
	if text[idx] == '\n' {
		return "\n"
	}
	if idx+1 < len(text) && text[idx+1] == '\n' {
		return "\r\n"
	}
	return "\r"
}

// bomEncoding picks the encoder used to write content back when raw starts
// with a byte-order mark. Decoding itself goes through unicode.BOMOverride.
func bomEncoding(raw []byte) (encoding.Encoding, string, bool) {
	switch {
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		return unicode.UTF8BOM, "utf-8 (bom)", true
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), "utf-16be (bom)", true
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}):
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), "utf-16le (bom)", true
	}
	return nil, "", false
}

func lookupEncoding(name string, logger Logger) (encoding.Encoding, string) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		logger.Warn("unsupported charset, falling back to UTF-8", Field("charset", name))
		return unicode.UTF8, "utf-8"
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = strings.ToLower(name)
	}
	return enc, canonical
}

func encodeLines(lines []string, enc encoding.Encoding, logger Logger) []byte {
	text := strings.Join(lines, "")
	if enc == nil {
		return []byte(text)
	}
	out, err := enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		logger.Warn("cannot encode content, falling back to UTF-8", Field("error", err.Error()))
		return []byte(text)
	}
	return out
}

func trimEOL(line string) string {
	if strings.HasSuffix(line, "\r\n") {
		return line[:len(line)-2]
	}
	if strings.HasSuffix(line, "\n") || strings.HasSuffix(line, "\r") {
		return line[:len(line)-1]
	}
	return line
}

func hasEOL(line string) bool {
	return strings.HasSuffix(line, "\n") || strings.HasSuffix(line, "\r")
}

// Package formats selects a log parser from a file name or URL.
package formats

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/gamelog"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/parser"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/parser/replay"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/parser/ulg"
)

// ErrUnknownFormat is returned for names without a recognized suffix.
var ErrUnknownFormat = errors.New("unknown log format")

// Suffixes of compressed logs.
const (
	GzipSuffix = ".gz"
	ZstdSuffix = ".zst"
)

var suffixes = map[string]gamelog.Format{
	".replay": gamelog.FormatReplay,
	".rpl2d":  gamelog.FormatReplay,
	".rpl3d":  gamelog.FormatReplay,
	".rcg":    gamelog.FormatULG,
}

// Detect returns the log format for name and whether the resource is
// compressed. URLs are matched on their path, ignoring query and fragment.
func Detect(name string) (gamelog.Format, bool, error) {
	base := name
	if u, err := url.Parse(name); err == nil && u.Scheme != "" && u.Path != "" {
		base = u.Path
	}
	base = strings.ToLower(path.Base(base))

	compressed := false
	for _, suffix := range []string{GzipSuffix, ZstdSuffix} {
		if strings.HasSuffix(base, suffix) {
			compressed = true
			base = strings.TrimSuffix(base, suffix)
			break
		}
	}

	if f, ok := suffixes[path.Ext(base)]; ok {
		return f, compressed, nil
	}
	return 0, false, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// New creates a parser for the given format.
func New(f gamelog.Format, opts ...parser.Option) parser.Parser {
	if f == gamelog.FormatULG {
		return ulg.New(opts...)
	}
	return replay.New(opts...)
}

// ForName creates a parser chosen by the suffix of name.
func ForName(name string, opts ...parser.Option) (parser.Parser, error) {
	f, _, err := Detect(name)
	if err != nil {
		return nil, err
	}
	return New(f, opts...), nil
}

package replay

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// headerLexer tokenizes the header and team lines of replay files.
var headerLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	{Name: "Dim", Pattern: `[23][Dd]\b`},
	{Name: "Int", Pattern: `[0-9]+\b`},
	{Name: "Word", Pattern: `\S+`},
})

// headerLine is the current format header.
// Example: RPL 3D 1
type headerLine struct {
	Marker  string `@"RPL"`
	Dim     string `@Dim`
	Version int    `@Int`
}

// teamLine names both teams and optionally their colors.
// Example: T HELIOS2018 WrightEagle 0xffff00 0x0000ff
type teamLine struct {
	Left       string `"T" @(Word | Int | Dim)`
	Right      string `@(Word | Int | Dim)`
	LeftColor  string `( @(Word | Int | Dim)`
	RightColor string `  @(Word | Int | Dim) )?`
}

var (
	headerParser = participle.MustBuild[headerLine](
		participle.Lexer(headerLexer),
		participle.Elide("Whitespace"),
	)
	teamParser = participle.MustBuild[teamLine](
		participle.Lexer(headerLexer),
		participle.Elide("Whitespace"),
	)
)

func parseHeaderLine(line string) (*headerLine, error) {
	return headerParser.ParseString("", line)
}

func parseTeamLine(line string) (*teamLine, error) {
	return teamParser.ParseString("", line)
}

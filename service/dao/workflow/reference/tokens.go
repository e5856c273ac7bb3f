package reference

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

const (
	whitespaceCode = iota
	atCode
	identifierCode
	openParenCode
	closeParenCode
	nameCode
)

var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	atToken         = parsly.NewToken(atCode, "@", matcher.NewByte('@'))
	identifierToken = parsly.NewToken(identifierCode, "Identifier", &identifierMatcher{})
	openParenToken  = parsly.NewToken(openParenCode, "(", matcher.NewByte('('))
	closeParenToken = parsly.NewToken(closeParenCode, ")", matcher.NewByte(')'))
	nameToken       = parsly.NewToken(nameCode, "Name", &identifierMatcher{dotted: true})
)

// identifierMatcher matches [A-Za-z_][A-Za-z0-9_]*, optionally with '.' or '-' separators
type identifierMatcher struct {
	dotted bool
}

func (m *identifierMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	if pos >= size || !(isLetter(input[pos]) || input[pos] == '_') {
		return 0
	}
	matched := 1
	for i := pos + 1; i < size; i++ {
		c := input[i]
		if isLetter(c) || isDigit(c) || c == '_' || (m.dotted && (c == '.' || c == '-')) {
			matched++
			continue
		}
		break
	}
	if m.dotted && (input[pos+matched-1] == '.' || input[pos+matched-1] == '-') {
		return 0
	}
	return matched
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

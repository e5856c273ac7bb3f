// Package reference parses parameter indirection expressions such as @from(resolution).
package reference

import (
	"bytes"
	"fmt"

	"github.com/viant/parsly"
)

// KindFrom binds a value to a parameter of the enclosing scope
const KindFrom = "from"

// Reference is a parsed @kind(name) expression
type Reference struct {
	Kind string
	Name string
}

func (r *Reference) String() string {
	return "@" + r.Kind + "(" + r.Name + ")"
}

// IsReference reports whether text looks like a reference expression and must therefore parse
func IsReference(text string) bool {
	trimmed := bytes.TrimSpace([]byte(text))
	return len(trimmed) > 1 && trimmed[0] == '@' && isLetter(trimmed[1])
}

// Parse parses @kind(name); surrounding whitespace is allowed
func Parse(input []byte) (*Reference, error) {
	cursor := parsly.NewCursor("", input, 0)
	ref := &Reference{}

	matched := cursor.MatchAfterOptional(whitespaceToken, atToken)
	if matched.Code != atToken.Code {
		return nil, cursor.NewError(atToken)
	}
	matched = cursor.MatchOne(identifierToken)
	if matched.Code != identifierToken.Code {
		return nil, cursor.NewError(identifierToken)
	}
	ref.Kind = matched.Text(cursor)
	if ref.Kind != KindFrom {
		return nil, fmt.Errorf("unsupported reference @%v, expected @%v(name)", ref.Kind, KindFrom)
	}

	matched = cursor.MatchAfterOptional(whitespaceToken, openParenToken)
	if matched.Code != openParenToken.Code {
		return nil, cursor.NewError(openParenToken)
	}
	matched = cursor.MatchAfterOptional(whitespaceToken, nameToken)
	if matched.Code != nameToken.Code {
		return nil, cursor.NewError(nameToken)
	}
	ref.Name = matched.Text(cursor)
	matched = cursor.MatchAfterOptional(whitespaceToken, closeParenToken)
	if matched.Code != closeParenToken.Code {
		return nil, cursor.NewError(closeParenToken)
	}
	cursor.MatchOne(whitespaceToken)
	if cursor.Pos < cursor.InputSize {
		return nil, fmt.Errorf("unexpected trailing text %q after %v", input[cursor.Pos:], ref)
	}
	return ref, nil
}

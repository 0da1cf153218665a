package grizzly

// Position is a 1-based line/column location, matching the convention
// used by Cucumber message locations and by participle's lexer.Position.
type Position struct {
	Line   int
	Column int
}

// Span is a closed range between two positions: both Start and End lie
// inside it.
type Span struct {
	Start Position
	End   Position
}

// Contains reports whether pos falls within s, inclusive of both ends.
func (s Span) Contains(pos Position) bool {
	if pos.Line < s.Start.Line || (pos.Line == s.Start.Line && pos.Column < s.Start.Column) {
		return false
	}

	if pos.Line > s.End.Line || (pos.Line == s.End.Line && pos.Column > s.End.Column) {
		return false
	}

	return true
}

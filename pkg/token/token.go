package token

type Type int

const (
	EOF Type = iota
	Comment
	Directive
	Ident
	Number
	String
	Binary
	LParen
	RParen
	Colon
	Plus
	Minus
	Star
	Slash
	Pipe
)

var typeNames = map[Type]string{
	EOF:       "end of file",
	Comment:   "comment",
	Directive: "directive",
	Ident:     "identifier",
	Number:    "number",
	String:    "string",
	Binary:    "binary literal",
	LParen:    "'('",
	RParen:    "')'",
	Colon:     "':'",
	Plus:      "'+'",
	Minus:     "'-'",
	Star:      "'*'",
	Slash:     "'/'",
	Pipe:      "'|'",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsOperator reports whether t may follow '(' to start an operator form.
func (t Type) IsOperator() bool {
	switch t {
	case Plus, Minus, Star, Slash, Pipe:
		return true
	}
	return false
}

// Token is a lexeme with its position. Number tokens carry the literal text
// without any unit suffix; Scale is non-zero when a suffix was present.
type Token struct {
	Type      Type
	Value     string
	Scale     float64
	FileIndex int
	Line      int
	Column    int
	Len       int
}

package codegen

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/badgermind/scriptc/pkg/ast"
	"github.com/badgermind/scriptc/pkg/config"
	"github.com/badgermind/scriptc/pkg/token"
	"github.com/badgermind/scriptc/pkg/util"
)

// Tag is the first byte of every encoded expression.
type Tag byte

const (
	TagU32 Tag = iota
	TagFloat
	TagString
	TagBinary
	TagMat4x4 // reserved by the runtime, never emitted
	TagParen
	TagNegative
	TagIdentifier
	TagStatement
	TagAdd
	TagSubtract
	TagMultiply
	TagDivide
	TagAbsolute
)

// Magic opens every binary script.
var Magic = [4]byte{0xBA, 0xD9, 0xE2, 0x01}

const padByte = 0xAA

var kindTags = map[ast.Kind]Tag{
	ast.String:        TagString,
	ast.Binary:        TagBinary,
	ast.Identifier:    TagIdentifier,
	ast.StatementExpr: TagStatement,
	ast.Paren:         TagParen,
	ast.Negative:      TagNegative,
	ast.Absolute:      TagAbsolute,
	ast.Add:           TagAdd,
	ast.Subtract:      TagSubtract,
	ast.Multiply:      TagMultiply,
	ast.Divide:        TagDivide,
}

// EmitError is an invariant violation found while emitting, such as a
// numeric literal that is neither an integer nor a float.
type EmitError struct {
	Tok token.Token
	Msg string
}

func (e *EmitError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Tok.Line, e.Tok.Column, e.Msg)
}

// Layout describes where EmitBinary placed things.
type Layout struct {
	Size         uint64
	Root         uint64
	PointerTable uint64
	// Pointers lists the positions of the non-zero pointer fields recorded in
	// the relocation table, in ascending order.
	Pointers []uint64

	exprs marks
	stmts marks
}

// ExprOffset returns the offset of an emitted expression, or 0.
func (l *Layout) ExprOffset(id ast.ExprID) uint64 {
	off, _ := l.exprs.lookup(int(id))
	return off
}

// StmtOffset returns the offset of an emitted statement, or 0.
func (l *Layout) StmtOffset(id ast.StmtID) uint64 {
	off, _ := l.stmts.lookup(int(id))
	return off
}

type binaryBackend struct{}

func NewBinaryBackend() Backend { return &binaryBackend{} }

func (b *binaryBackend) Generate(doc *ast.Document, cfg *config.Config) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if _, err := EmitBinary(&buf, doc, cfg); err != nil {
		return nil, err
	}
	return &buf, nil
}

// emitter carries the whole state of one binary emission: the byte cursor,
// the relocation list and the pointer geometry.
type emitter struct {
	out       *bufio.Writer
	offset    uint64
	ptrSize   int
	alignMask uint64
	pointers  []uint64
	arena     *ast.Arena
	cfg       *config.Config
	exprs     marks
	stmts     marks
	err       error
}

// EmitBinary writes the relocatable binary encoding of doc to w.
func EmitBinary(w io.Writer, doc *ast.Document, cfg *config.Config) (*Layout, error) {
	e := &emitter{
		out:       bufio.NewWriter(w),
		ptrSize:   cfg.PointerSize,
		alignMask: cfg.PointerAlign,
		cfg:       cfg,
	}
	if e.ptrSize != 4 && e.ptrSize != 8 {
		return nil, fmt.Errorf("unsupported pointer size %d", e.ptrSize)
	}
	layout := &Layout{}
	if doc != nil && doc.Arena != nil {
		e.arena = doc.Arena
		e.exprs = newMarks(doc.Arena.NumExprs())
		e.stmts = newMarks(doc.Arena.NumStmts())
	}

	e.bytes(Magic[:])
	if doc != nil && doc.Root != 0 {
		e.emitStatement(doc.Root)
		layout.Root, _ = e.stmts.lookup(int(doc.Root))

		e.align(0, e.alignMask)
		layout.PointerTable = e.offset
		layout.Pointers = append([]uint64(nil), e.pointers...)
		e.emitPointerTable(layout.Pointers)

		e.align(0, e.alignMask)
		e.pointer(layout.PointerTable)
		e.pointer(layout.Root)
	}

	if err := e.out.Flush(); err != nil && e.err == nil {
		e.err = fmt.Errorf("failed to write binary output: %w", err)
	}
	if e.err != nil {
		return nil, e.err
	}
	layout.Size = e.offset
	layout.exprs, layout.stmts = e.exprs, e.stmts
	return layout, nil
}

func (e *emitter) fail(tok token.Token, format string, args ...any) {
	if e.err == nil {
		e.err = &EmitError{Tok: tok, Msg: fmt.Sprintf(format, args...)}
	}
}

func (e *emitter) byte(b byte) {
	e.out.WriteByte(b)
	e.offset++
}

func (e *emitter) bytes(b []byte) {
	e.out.Write(b)
	e.offset += uint64(len(b))
}

func (e *emitter) str(s string) {
	e.out.WriteString(s)
	e.offset += uint64(len(s))
}

func (e *emitter) u32(v uint32) {
	if e.offset&3 != 0 {
		e.fail(token.Token{}, "unaligned 32-bit field at offset %d", e.offset)
	}
	e.byte(byte(v))
	e.byte(byte(v >> 8))
	e.byte(byte(v >> 16))
	e.byte(byte(v >> 24))
}

// pointer writes a pointer field and records its position when non-zero.
func (e *emitter) pointer(v uint64) {
	if e.offset&3 != 0 {
		e.fail(token.Token{}, "unaligned pointer field at offset %d", e.offset)
	}
	if v != 0 {
		e.pointers = append(e.pointers, e.offset)
	}
	for i := 0; i < e.ptrSize; i++ {
		e.byte(byte(v >> (8 * i)))
	}
}

// align pads with 0xAA until offset+bias is a multiple of mask+1. Tagged
// nodes use bias 1 so that the field after the tag byte is aligned.
func (e *emitter) align(bias, mask uint64) {
	for (e.offset+bias)&mask != 0 {
		e.byte(padByte)
	}
}

// exprRef writes a pointer to an already emitted expression. A target still
// in progress (a cycle) has no offset; it is written as null.
func (e *emitter) exprRef(id ast.ExprID, tok token.Token, what string) {
	off, ok := e.exprs.lookup(int(id))
	if !ok {
		util.Warn(e.cfg, config.WarnZeroOffset, tok, "%s has zero offset", what)
	}
	e.pointer(off)
}

func (e *emitter) stmtRef(id ast.StmtID, tok token.Token, what string) {
	off, ok := e.stmts.lookup(int(id))
	if !ok {
		util.Warn(e.cfg, config.WarnZeroOffset, tok, "%s has zero offset", what)
	}
	e.pointer(off)
}

// emitStatement writes the tail of the chain first so that every pointer,
// including the one to the next statement, refers backwards.
func (e *emitter) emitStatement(id ast.StmtID) {
	if !e.stmts.begin(int(id)) {
		return
	}
	st := *e.arena.Stmt(id)
	params := e.arena.Params(id)

	if st.Next != 0 {
		e.emitStatement(st.Next)
	}
	for _, p := range params {
		e.emitExpression(e.arena.Param(p).Expr)
	}

	offset := e.offset
	e.str(st.Name)
	for _, p := range params {
		e.byte(':')
		e.str(e.arena.Param(p).Name)
	}
	e.byte(0)
	e.align(0, e.alignMask)

	for _, p := range params {
		param := e.arena.Param(p)
		e.exprRef(param.Expr, param.Tok, "parameter '"+param.Name+"'")
	}
	if st.Next != 0 {
		e.stmtRef(st.Next, st.Tok, "next statement of '"+st.Name+"'")
	} else {
		e.pointer(0)
	}
	e.stmts.finish(int(id), offset)
}

func (e *emitter) emitExpression(id ast.ExprID) {
	if id == 0 || !e.exprs.begin(int(id)) {
		return
	}
	x := *e.arena.Expr(id)
	var offset uint64

	switch {
	case x.Kind == ast.Numeric:
		offset = e.emitNumeric(&x)
	case x.Kind == ast.Binary:
		offset = e.emitBinaryData(&x)
	case x.Kind == ast.String || x.Kind == ast.Identifier:
		offset = e.offset
		e.byte(byte(kindTags[x.Kind]))
		e.str(x.Text)
		e.byte(0)
	case x.Kind == ast.StatementExpr:
		e.emitStatement(x.Stmt)
		e.align(1, e.alignMask)
		offset = e.offset
		e.byte(byte(TagStatement))
		e.stmtRef(x.Stmt, x.Tok, "nested statement")
	case x.Kind.IsUnary():
		e.emitExpression(x.Lhs)
		e.align(1, e.alignMask)
		offset = e.offset
		e.byte(byte(kindTags[x.Kind]))
		e.exprRef(x.Lhs, x.Tok, "operand of "+x.Kind.String())
	case x.Kind.IsBinary():
		e.emitExpression(x.Lhs)
		e.emitExpression(x.Rhs)
		e.align(1, e.alignMask)
		offset = e.offset
		e.byte(byte(kindTags[x.Kind]))
		e.exprRef(x.Lhs, x.Tok, "left operand of "+x.Kind.String())
		e.exprRef(x.Rhs, x.Tok, "right operand of "+x.Kind.String())
	default:
		e.fail(x.Tok, "unknown expression kind %d", x.Kind)
	}
	e.exprs.finish(int(id), offset)
}

// emitNumeric encodes small non-negative unscaled integers as U32 and
// everything else as a 32-bit float.
func (e *emitter) emitNumeric(x *ast.Expression) uint64 {
	e.align(1, 3)
	offset := e.offset

	if x.Scale == 0 {
		if v, err := strconv.ParseInt(x.Text, 0, 64); err == nil {
			if v >= 0 && v <= math.MaxInt16 {
				e.byte(byte(TagU32))
				e.u32(uint32(v))
				return offset
			}
			if v > math.MaxInt16 {
				util.Warn(e.cfg, config.WarnIntRange, x.Tok, "integer literal %s is larger than %d and is emitted as a float", x.Text, math.MaxInt16)
			}
		}
	}

	f, ok := parseFloat(x.Text)
	if !ok {
		e.fail(x.Tok, "malformed numeric literal '%s'", x.Text)
	}
	v := float32(f)
	if x.Scale != 0 {
		v = float32(float64(v) * x.Scale)
	}
	e.byte(byte(TagFloat))
	e.u32(math.Float32bits(v))
	return offset
}

// parseFloat accepts decimal floats and, like strtod, plain hex integers.
func parseFloat(text string) (float64, bool) {
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f, true
	} else if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
		return f, true
	}
	if v, err := strconv.ParseInt(text, 0, 64); err == nil {
		return float64(v), true
	}
	if v, err := strconv.ParseUint(text, 0, 64); err == nil {
		return float64(v), true
	}
	return 0, false
}

// hexNibble maps the low five bits of a hex digit to its value; anything
// that is not a hex digit decodes to an arbitrary nibble instead of failing.
var hexNibble = [32]byte{
	0, 10, 11, 12, 13, 14, 15, 0,
	0, 0, 0, 0, 0, 0, 0, 0,
	0, 1, 2, 3, 4, 5, 6, 7,
	8, 9, 0, 0, 0, 0, 0, 0,
}

func (e *emitter) emitBinaryData(x *ast.Expression) uint64 {
	n := len(x.Text) / 2
	e.align(1, 3)
	offset := e.offset
	e.byte(byte(TagBinary))
	e.u32(uint32(n))
	for i := 0; i < n; i++ {
		hi, lo := x.Text[2*i], x.Text[2*i+1]
		e.byte(hexNibble[hi&0x1f]<<4 | hexNibble[lo&0x1f])
	}
	return offset
}

// emitPointerTable writes the deltas between successive pointer fields in
// units of the pointer size, terminated by a zero byte.
func (e *emitter) emitPointerTable(pointers []uint64) {
	var prev uint64
	var buf []byte
	for _, off := range pointers {
		if off <= prev || off&e.alignMask != 0 {
			e.fail(token.Token{}, "pointer field at offset %d breaks the relocation table order", off)
			return
		}
		buf = AppendVarint(buf[:0], uint32((off-prev)/uint64(e.ptrSize)))
		e.bytes(buf)
		prev = off
	}
	e.byte(0)
}

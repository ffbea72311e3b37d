package codegen

import (
	"bytes"
	"fmt"

	"github.com/badgermind/scriptc/pkg/ast"
	"github.com/badgermind/scriptc/pkg/config"
)

// Backend is the interface that all output formats implement.
type Backend interface {
	// Generate serializes the document according to cfg. Generate must not
	// modify the document, so a document can be emitted repeatedly and in
	// several formats.
	Generate(doc *ast.Document, cfg *config.Config) (*bytes.Buffer, error)
}

// SelectBackend returns the backend for one of the config.Format* names.
func SelectBackend(format string) (Backend, error) {
	switch format {
	case config.FormatBinary:
		return NewBinaryBackend(), nil
	case config.FormatHTML:
		return NewHTMLBackend(), nil
	case config.FormatTree:
		return NewTreeBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported format '%s'", format)
	}
}

// visitState tracks a node through one emission pass. Offsets live beside
// the nodes rather than in them so that passes never interfere.
type visitState uint8

const (
	unvisited visitState = iota
	inProgress
	done
)

type marks struct {
	state  []visitState
	offset []uint64
}

func newMarks(n int) marks {
	return marks{state: make([]visitState, n+1), offset: make([]uint64, n+1)}
}

// begin moves node i from unvisited to in-progress. It returns false when
// the node was already entered.
func (m *marks) begin(i int) bool {
	if m.state[i] != unvisited {
		return false
	}
	m.state[i] = inProgress
	return true
}

func (m *marks) finish(i int, offset uint64) {
	m.state[i] = done
	m.offset[i] = offset
}

// end marks node i as printed without an offset.
func (m *marks) end(i int) { m.state[i] = unvisited }

// lookup returns the offset of a finished node.
func (m *marks) lookup(i int) (uint64, bool) {
	if m.state[i] != done {
		return 0, false
	}
	return m.offset[i], true
}

// Package solidity is the boundary to the external parsing collaborator. The
// analyzer consumes ast nodes; this package obtains them, by default from
// solc's compact AST JSON.
package solidity

import (
	"bytes"
	"fmt"
	"os/exec"

	"github.com/xab-mack/dosguard/internal/ast"
	"github.com/xab-mack/dosguard/internal/cache"
)

// ParseError reports a source file the external parser rejected. It aborts
// analysis of that file only.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

// Parser is the pluggable parsing capability.
type Parser interface {
	Parse(path string, source []byte) (*ast.SourceUnit, error)
}

// SolcParser shells out to solc for the compact AST. Output is cached by file
// content so repeated scans skip the compiler.
type SolcParser struct {
	Path string
}

func NewSolcParser(path string) *SolcParser {
	if path == "" {
		path = "solc"
	}
	return &SolcParser{Path: path}
}

func (p *SolcParser) Parse(path string, source []byte) (*ast.SourceUnit, error) {
	raw, err := p.compactJSON(path, source)
	if err != nil {
		return nil, &ParseError{File: path, Msg: err.Error()}
	}
	unit, err := DecodeCompact(path, source, raw)
	if err != nil {
		return nil, &ParseError{File: path, Msg: err.Error()}
	}
	return unit, nil
}

func (p *SolcParser) compactJSON(path string, source []byte) ([]byte, error) {
	key := cache.Key("solc-ast-v1", p.Path, path, string(source))
	if b, ok := cache.Load(key); ok {
		return b, nil
	}
	cmd := exec.Command(p.Path, "--ast-compact-json", path)
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("solc: %s", bytes.TrimSpace(ee.Stderr))
		}
		return nil, fmt.Errorf("solc: %w", err)
	}
	// solc prints a banner before the JSON document.
	if i := bytes.IndexByte(out, '{'); i > 0 {
		out = out[i:]
	}
	_ = cache.Store(key, out)
	return out, nil
}

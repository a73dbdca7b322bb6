package sqldump

import (
	"errors"
	"io"
	"strings"
	"unicode"
)

// Reassembler rebuilds complete statements from a line stream. It is used
// like bufio.Scanner:
//
//	r := NewReassembler(src)
//	for r.Next() {
//		stmt := r.Statement()
//	}
//	if err := r.Err(); err != nil { ... }
//
// Blank lines and lines starting with "--" or "/*" are dropped, even in the
// middle of a statement. A statement ends at a line whose content ends with
// ";". Only the statement being built is held in memory.
type Reassembler struct {
	src       LineSource
	buf       strings.Builder
	stmt      string
	err       error
	done      bool
	discarded int
}

func NewReassembler(src LineSource) *Reassembler {
	return &Reassembler{src: src}
}

func (r *Reassembler) Next() bool {
	if r.done {
		return false
	}
	for {
		line, err := r.src.ReadLine()
		if err != nil {
			r.finish(err)
			return false
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isCommentLine(trimmed) {
			continue
		}

		r.buf.WriteString(line)
		if !strings.HasSuffix(trimmed, ";") {
			continue
		}

		stmt := strings.TrimSpace(r.buf.String())
		r.buf.Reset()
		stmt = strings.TrimRightFunc(strings.TrimSuffix(stmt, ";"), unicode.IsSpace)
		if stmt == "" {
			continue
		}
		r.stmt = stmt
		return true
	}
}

// Statement returns the most recent statement without its trailing ";".
func (r *Reassembler) Statement() string {
	return r.stmt
}

// Err returns the first read error other than io.EOF.
func (r *Reassembler) Err() error {
	return r.err
}

// Discarded returns the size of unterminated content left at the end of the
// stream. That content is never yielded.
func (r *Reassembler) Discarded() int {
	return r.discarded
}

func (r *Reassembler) finish(err error) {
	r.done = true
	r.stmt = ""
	if !errors.Is(err, io.EOF) {
		r.err = err
	}
	r.discarded = r.buf.Len()
	r.buf.Reset()
}

func isCommentLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "--") || strings.HasPrefix(trimmed, "/*")
}

// SplitStatements splits an import payload on every ";". Fragments that are
// blank or start with a comment marker are dropped.
func SplitStatements(payload string) []string {
	var stmts []string
	for _, fragment := range strings.Split(payload, ";") {
		stmt := strings.TrimSpace(fragment)
		if stmt == "" || isCommentLine(stmt) {
			continue
		}
		stmts = append(stmts, stmt)
	}
	return stmts
}

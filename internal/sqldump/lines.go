// Package sqldump turns SQL dump streams into statements and writes dumps
// that it can read back.
package sqldump

import (
	"bufio"
	"io"
)

const readBufferSize = 64 * 1024

// LineSource yields raw lines, including their terminators. It returns
// io.EOF once the stream is exhausted.
type LineSource interface {
	ReadLine() (string, error)
}

// LineReader reads lines of any length from r without imposing a maximum
// token size.
type LineReader struct {
	r *bufio.Reader
}

func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, readBufferSize)}
}

func (l *LineReader) ReadLine() (string, error) {
	line, err := l.r.ReadString('\n')
	if err == io.EOF && line != "" {
		return line, nil
	}
	return line, err
}

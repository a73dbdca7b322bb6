package domain

import "io"

type Compressor interface {
	Compress(sourcePath, destPath string) error
	Decompress(sourcePath, destPath string) error
	NewReader(r io.Reader) (io.ReadCloser, error)
	Extension() string
}

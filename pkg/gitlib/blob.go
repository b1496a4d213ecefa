package gitlib

import (
	"bytes"
	"io"

	git2go "github.com/libgit2/git2go/v34"
)

// binarySniffLen is how many leading bytes are inspected for NUL when
// deciding whether a blob is binary.
const binarySniffLen = 8000

// Blob wraps a libgit2 blob.
type Blob struct {
	blob *git2go.Blob
}

// Hash returns the blob hash.
func (b *Blob) Hash() Hash {
	return HashFromOid(b.blob.Id())
}

// Size returns the blob size.
func (b *Blob) Size() int64 {
	return b.blob.Size()
}

// Contents returns the blob contents.
func (b *Blob) Contents() []byte {
	return b.blob.Contents()
}

// IsBinary reports whether the blob looks binary (NUL byte in the leading
// bytes, matching git's own heuristic).
func (b *Blob) IsBinary() bool {
	data := b.blob.Contents()
	if len(data) > binarySniffLen {
		data = data[:binarySniffLen]
	}

	return bytes.IndexByte(data, 0) >= 0
}

// Reader returns a reader for the blob contents.
func (b *Blob) Reader() io.Reader {
	return bytes.NewReader(b.blob.Contents())
}

// Free releases the blob resources.
func (b *Blob) Free() {
	if b.blob != nil {
		b.blob.Free()
		b.blob = nil
	}
}

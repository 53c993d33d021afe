package multifile

import (
	"errors"
	"io"
	"mime/multipart"
)

// Part is a single multipart form part.
// FileName is empty for plain form fields.
type Part struct {
	FormName string
	FileName string
	Content  io.Reader
}

type ReadFunc func() (*Part, error)

// Reader iterates over form parts produced by a ReadFunc.
// The ReadFunc signals the end with io.EOF.
type Reader struct {
	readFunc ReadFunc
	part     *Part
	err      error
}

func NewReader(readFunc ReadFunc) *Reader {
	return &Reader{readFunc: readFunc}
}

// NewMultipartReader returns a Reader over the parts of mr.
func NewMultipartReader(mr *multipart.Reader) *Reader {
	return NewReader(func() (*Part, error) {
		p, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		return &Part{
			FormName: p.FormName(),
			FileName: p.FileName(),
			Content:  p,
		}, nil
	})
}

// NewSliceReader returns a Reader over parts.
func NewSliceReader(parts []*Part) *Reader {
	i := 0
	return NewReader(func() (*Part, error) {
		if i >= len(parts) {
			return nil, io.EOF
		}
		p := parts[i]
		i++
		return p, nil
	})
}

func (r *Reader) Read() bool {
	if r.err != nil {
		return false
	}
	r.part, r.err = r.readFunc()
	return r.err == nil
}

func (r *Reader) Part() *Part {
	if r.part == nil {
		panic("multifile: Part call before successful Read call")
	}
	return r.part
}

func (r *Reader) Err() error {
	if errors.Is(r.err, io.EOF) {
		return nil
	}
	return r.err
}

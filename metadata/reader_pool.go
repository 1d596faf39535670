package metadata

import (
	"bytes"
	"sync"
)

// readerPool pools bytes.Reader instances to reduce allocations
var readerPool = sync.Pool{
	New: func() interface{} {
		return &bytes.Reader{}
	},
}

// getReader gets a pooled reader initialized with data
func getReader(data []byte) *bytes.Reader {
	r := readerPool.Get().(*bytes.Reader)
	r.Reset(data)
	return r
}

// putReader returns a reader to the pool
func putReader(r *bytes.Reader) {
	r.Reset(nil)
	readerPool.Put(r)
}

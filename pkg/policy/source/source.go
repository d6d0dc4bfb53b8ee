package source

import (
	"context"
)

// Document is one leaf document of a rules tree.
type Document struct {
	// Path identifies the document within its source, e.g. a file path or a
	// hierarchical key such as "finance/transfers.yaml".
	Path string

	// Data is the raw document content.
	Data []byte

	// Err is set when the document exists but could not be read. Data is
	// empty in that case.
	Err error
}

// Source is a tree of rule documents.
type Source interface {
	// Name identifies the source in logs and load results.
	Name() string

	// Walk calls fn for every leaf document in deterministic order. It
	// returns an error wrapping ErrRootNotFound when the root does not exist,
	// and stops early when fn returns an error or ctx is done.
	Walk(ctx context.Context, fn func(Document) error) error
}

package erp

import (
	"context"
	"errors"
)

// Sentinel errors returned by Ledger implementations.
var (
	ErrNotFound = errors.New("erp: document not found")
	// ErrRejected wraps host-side validation failures on save, e.g. a
	// missing required field. The wrapped message is host text and must
	// be sanitized before showing it to a user.
	ErrRejected = errors.New("erp: save rejected")
)

// SaveOptions tunes how a document is persisted.
type SaveOptions struct {
	// IgnoreMandatoryFields relaxes required-field enforcement, the way
	// the bill-and-JE workflow saves its intermediate invoice.
	IgnoreMandatoryFields bool
}

// FieldValues is a partial-field update applied without loading the
// full document.
type FieldValues map[string]any

// Ledger is the capability interface over the transactional record
// store. It isolates the reconciliation workflow from what a concrete
// host's transform/save actually do.
type Ledger interface {
	Load(ctx context.Context, docType DocType, id int64) (*Document, error)
	Save(ctx context.Context, doc *Document, opts SaveOptions) (int64, error)
	Delete(ctx context.Context, docType DocType, id int64) error
	// Transform derives a new, unsaved document from an existing one
	// (sales order to invoice, invoice to customer payment).
	Transform(ctx context.Context, from DocType, id int64, to DocType) (*Document, error)
	SetFieldValues(ctx context.Context, docType DocType, id int64, fields FieldValues) error
}

package pipeline

import "errors"

var (
	ErrMissingColumn         = errors.New("missing required column")
	ErrUnparseableYear       = errors.New("unparseable year token")
	ErrDuplicateColumn       = errors.New("duplicate column name")
	ErrUndefinedValue        = errors.New("division produced an undefined value")
	ErrAmbiguousColumn       = errors.New("expected exactly one matching column")
	ErrRowCountMismatch      = errors.New("row count mismatch")
	ErrInvalidWindow         = errors.New("year window must be positive")
	ErrUnknownTransformation = errors.New("unknown transformation")
	ErrUnknownSourceType     = errors.New("unknown source type")
	ErrNegativeValue         = errors.New("negative trade value")
	ErrNonNumericValue       = errors.New("non numeric trade value")
)

package shared

import "errors"

// ErrReadonlyDocument indicates an edit attempt on a finalized document.
var ErrReadonlyDocument = errors.New("document is read-only")

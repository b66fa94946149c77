package companies

import "errors"

var ErrDuplicateBatch = errors.New("batch already exists")

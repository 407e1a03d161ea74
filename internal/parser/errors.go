package parser

import "errors"

var ErrInvalidDocument = errors.New("invalid document")

package wire

import "errors"

// ErrBadSignature is returned when a record's leading 4 bytes don't match the
// expected signature.
var ErrBadSignature = errors.New("wire: bad record signature")

// ErrShortRecord is returned when buf is too small to hold a record's fixed portion
// plus whatever variable-length trailer its length fields declare.
var ErrShortRecord = errors.New("wire: short record")

// ErrEOCDNotFound is returned by FindEOCD when no end-of-central-directory signature
// could be located within the search window.
var ErrEOCDNotFound = errors.New("wire: end of central directory record not found")

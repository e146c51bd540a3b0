package h5writer

import "github.com/scigolib/h5writer/internal/utils"

// Error kinds. Every error returned by the writer is fatal for the file
// and matches exactly one of these with errors.Is.
var (
	// ErrSchema reports a bad declaration: an invalid or duplicate name, a
	// type or shape mismatch, incompatible options, or a declaration made
	// after EndDefine.
	ErrSchema = utils.ErrSchema

	// ErrSequence reports a call made in the wrong state: writing before
	// EndDefine, writing a chunk twice, closing early or twice.
	ErrSequence = utils.ErrSequence

	// ErrEncoding reports a violated layout invariant, such as metadata
	// that changed length between the two formatting passes.
	ErrEncoding = utils.ErrEncoding

	// ErrIO reports a failure of the output file.
	ErrIO = utils.ErrIO
)

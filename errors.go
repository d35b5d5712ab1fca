package clauselens

import "errors"

var (
	// ErrUnsupportedFormat is returned for uploads that are not PDF.
	ErrUnsupportedFormat = errors.New("clauselens: unsupported document format")

	// ErrParsingFailed is returned when document text extraction fails.
	ErrParsingFailed = errors.New("clauselens: parsing failed")

	// ErrCaseDBNotFound is returned when the case-law corpus file is absent.
	ErrCaseDBNotFound = errors.New("clauselens: case database not found")

	// ErrPromptNotFound is returned when a required prompt file is absent.
	ErrPromptNotFound = errors.New("clauselens: prompt file not found")

	// ErrNoDocument is returned when an operation needs an uploaded contract
	// but the session has none.
	ErrNoDocument = errors.New("clauselens: no document uploaded")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("clauselens: invalid configuration")
)

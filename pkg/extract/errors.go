package extract

import "errors"

// Stage errors. The orchestrator matches these with errors.Is to drive the
// fallback chain; callers outside the package only ever see
// ErrExtractionFailed.
var (
	// ErrModelInvocation indicates the model call itself failed
	// (transport, quota, timeout). Not retried here.
	ErrModelInvocation = errors.New("model invocation failed")

	// ErrMalformedModelResponse indicates the model replied but no JSON
	// object could be located or parsed in the response.
	ErrMalformedModelResponse = errors.New("malformed model response")

	// ErrAmountUnresolved indicates a finite positive amount could not be
	// derived from the model output.
	ErrAmountUnresolved = errors.New("amount unresolved")

	// ErrUnparsableText indicates the regex fallback could not match the
	// description+amount shape. There is no deeper fallback.
	ErrUnparsableText = errors.New("unparsable expense text")

	// ErrExtractionFailed indicates no stage produced a record.
	ErrExtractionFailed = errors.New("extraction failed")
)

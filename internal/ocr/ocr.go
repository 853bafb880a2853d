// Package ocr verifies text labels on chart images using Tesseract.
//
// The gosseract bindings need CGO and a native Tesseract install, so the
// real implementation is gated behind the cgo && linux build tags; other
// builds get a stub that reports ErrUnavailable and the pipeline records the
// label as unverified instead of failing.
package ocr

import "errors"

// ErrUnavailable is returned on builds without Tesseract support.
var ErrUnavailable = errors.New("ocr support not built in")

// Package ocr defines the boundary to third-party OCR engines. The interfaces
// are small and transport-agnostic so an engine can be backed by a local
// library, a binary or a remote API without leaking provider concerns into the
// page controllers.
package ocr

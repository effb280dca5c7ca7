// Package sanitizer normalizes user-supplied text before validation and
// storage.
//
// All normalization functions are idempotent: applying them twice yields the
// same result as applying them once. Invalid input degrades to an empty
// string rather than an error, so callers validate the sanitized value.
//
// Normalization includes:
//   - Phone numbers: E.164 format, dialled locally in Thailand or the US
//   - Strings: collapse whitespace, trim leading/trailing spaces
//   - Room numbers: trimmed and upper-cased, "a-101 " becomes "A-101"
//   - Emails: trimmed and lower-cased
package sanitizer

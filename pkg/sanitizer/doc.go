// Package sanitizer normalizes free-text and identifier input before it is
// validated and stored.
//
// All normalization functions are idempotent - applying them multiple times produces
// the same result. Functions handle invalid input gracefully, typically by returning
// empty strings or empty slices rather than errors.
//
// Normalization includes:
//   - Strings: Collapse whitespace, trim leading/trailing spaces
//   - Day names: Trim and lowercase ("Monday " becomes "monday")
//   - Clock times: Pad single-digit hours ("9:00" becomes "09:00")
//   - Identifier slices: Trim, remove duplicates and empty values
package sanitizer

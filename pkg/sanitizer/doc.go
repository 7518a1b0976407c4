// Package sanitizer normalizes text scraped off the booking portals and
// operator-supplied input before validation and storage.
//
// All functions are idempotent and total: invalid input yields an empty
// string or slice rather than an error.
//
// Normalization includes:
//   - Labels: whitespace collapsed and decorative punctuation trimmed, with
//     original casing kept so facility names stay readable in the ledger
//   - Clock strings: zero-padded 24h HH:MM, with 12h conversion for grids
//     that print meridiems
//   - Phone numbers: E.164 via region-aware parsing (booking customers)
//   - Slices: duplicates and empty values removed after normalization
package sanitizer

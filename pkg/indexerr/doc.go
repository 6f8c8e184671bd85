// Package indexerr defines the error taxonomy shared by the scanning, analysis,
// storage and search layers.
//
// Every failure the core surfaces is an *Error carrying one Kind:
//
//   - KindIO: a file or directory could not be read
//   - KindParse: a document is not valid workflow JSON
//   - KindQuery: a search request carries an invalid filter value
//   - KindStorage: the embedded store rejected an operation
//   - KindNotFound: a lookup by filename found nothing
//
// Callers branch on the kind with IsKind or KindOf; the underlying cause stays
// reachable through errors.Unwrap.
package indexerr

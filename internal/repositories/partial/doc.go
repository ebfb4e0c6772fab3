// Package partial persists interrupted transfers so they can resume after a
// restart. Rows are keyed by media URL and hold the temp path, the bytes on
// disk and the declared total, which may be NULL when the server never sent
// one.
package partial

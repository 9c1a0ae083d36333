// Package files owns the upload pipeline, blob and metadata lifecycle,
// text extraction for indexable types, multi-scope visibility listings,
// and the ad-hoc query summaries used by the file panel.
//
// Only UTF-8 text and CSV are indexed inline; binary formats are stored
// verbatim and surfaced as opaque blobs. Retrieval-augmented chat pulls
// file text through FileText, which prefers the inline extract and
// falls back to the blob behind an LRU cache.
package files

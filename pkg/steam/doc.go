// Package steam reads workshop item metadata from the Steam community site.
//
// Client handles transport: browser-like headers, typed errors per status,
// retries with backoff and a per-minute token bucket. Extractor isolates the
// markup knowledge so a page layout change only touches HTMLExtractor.
package steam

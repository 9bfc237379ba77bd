// Package publisher announces a workshop item on a channel: a preview post
// with an HTML caption, highlight and archive replies in the discussion
// group, and a final caption edit linking the archive.
package publisher

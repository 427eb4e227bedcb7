// Package rss maps RSS and Atom feeds onto candidate records.
//
// A feed produces one Feed record, one Media record per distinct
// enclosure and one Post record per item. Posts reference their feed and
// media by GUID. Namespaced item extensions listed in an extension
// mapping are copied onto Record.Extensions and into the matching
// record fields.
package rss

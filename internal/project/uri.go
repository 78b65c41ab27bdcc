package project

import "strings"

// fileURIScheme is the only scheme the core resolves to a filesystem
// path for IDL and build files (spec.md §6's document filters: "scheme
// file", plus read-only "smithyjar" for jar-embedded models, which this
// core treats as a path it never reads from disk).
const fileURIScheme = "file://"

// PathFromURI strips the "file://" scheme from a document URI, returning
// it unchanged if it carries no recognised scheme (already a bare path,
// as tests and the detached-project synthetic case use).
func PathFromURI(uri string) string {
	return strings.TrimPrefix(uri, fileURIScheme)
}

// URIFromPath reconstructs a file:// URI from an absolute path.
func URIFromPath(path string) string {
	if strings.HasPrefix(path, fileURIScheme) {
		return path
	}
	return fileURIScheme + path
}

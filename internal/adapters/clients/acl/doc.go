// Package acl is the anti-corruption layer between the quote domain and the
// remote post API.
//
// External DTOs stay unexported in this package. Every failure reaching the
// remote, whether a transport error, an open circuit, exhausted retries, a
// non-2xx status or an undecodable body, leaves the package as a
// [domain.UnavailableError], which the sync loop treats as "nothing fetched".
//
// Translation is lossy on purpose: a remote post becomes a quote whose text is
// the post title and whose category is the configured sentinel. Posts that do
// not translate to a valid quote are skipped, never reported as errors.
package acl

//go:build !noacceptauth

package tollgate

// acceptAuthRequired gates challenges on the Accept-Authenticate header.
// When true, clients that don't announce challenge support are let through
// unchallenged instead of being walled off with a 402 they can't handle.
const acceptAuthRequired = true

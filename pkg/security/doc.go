// Package security authenticates deploy webhooks.
//
// Callers sign the raw request body with HMAC using the shared signature
// secret and send the result as "X-Signature: <algorithm>=<hex digest>".
// sha1 and sha256 are accepted. Verify distinguishes an unsupported algorithm
// (ErrUnsupportedAlgorithm, answered with 501) from every other failure
// (ErrSignatureInvalid, answered with 403).
package security

package ports

// Random abstracts random byte generation for testing. Prompt tokens and
// session IDs are derived from it, so a fixed source gives predictable tokens.
type Random interface {
	// Read fills b with random bytes and returns the number of bytes read.
	Read(b []byte) (n int, err error)
}

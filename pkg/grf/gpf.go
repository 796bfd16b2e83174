package grf

// GPFArchive is a read-only facade over Archive for the GPF container
// format, which reuses the GRF table and body layout but is never patched
// in place (spec §4.7).
type GPFArchive struct {
	inner *Archive
}

// OpenGPF parses a GPF archive's file table for random-access reads.
func OpenGPF(path string) (*GPFArchive, error) {
	inner, err := Open(path)
	if err != nil {
		return nil, err
	}
	return &GPFArchive{inner: inner}, nil
}

// List returns every filename present in the archive.
func (g *GPFArchive) List() []string {
	return g.inner.List()
}

// GetEntry looks up a file's table entry by exact, case-sensitive name.
func (g *GPFArchive) GetEntry(name string) (*Entry, bool) {
	return g.inner.GetEntry(name)
}

// Extract reads and, if necessary, decompresses a file's body.
func (g *GPFArchive) Extract(name string) ([]byte, error) {
	return g.inner.Extract(name)
}

// Close releases the archive's underlying file descriptor.
func (g *GPFArchive) Close() error {
	return g.inner.Close()
}

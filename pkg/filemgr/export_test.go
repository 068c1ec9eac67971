package filemgr

// SetCompress overrides the archive step, so tests can exercise the
// raw-path fallback taken when compression fails.
func SetCompress(m *Manager, fn func(src, dest string) error) {
	m.compress = fn
}

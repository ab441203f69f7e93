//go:build !windows

package gui

func newSurface(Options) (Surface, error) {
	return nil, ErrUnsupported
}

package loader

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/joshuapare/objcload/host"
	"github.com/joshuapare/objcload/image"
	"github.com/joshuapare/objcload/register"
)

// ErrRelativePath is returned by Open for paths that are not absolute.
var ErrRelativePath = errors.New("loader: path must be absolute")

// Handle is a loaded image with its classes live.
type Handle struct {
	img     *image.Image
	session *register.Session
	report  *register.Report
	closed  bool
}

// Open maps the image at path and registers its classes with rt. Only
// absolute paths are accepted; there is no search path.
func Open(path string, rt host.Runtime, opts Options) (*Handle, error) {
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("%w: %s", ErrRelativePath, path)
	}
	img, err := image.Open(path)
	if err != nil {
		return nil, err
	}
	return Load(img, rt, opts)
}

// Load registers the classes of an already mapped image. The handle takes
// ownership of img. On failure whatever became live is disposed and img is
// closed.
func Load(img *image.Image, rt host.Runtime, opts Options) (*Handle, error) {
	s, report, err := Register(img, rt, opts)
	if err != nil {
		return nil, errors.Join(err, s.Close(), img.Close())
	}
	return &Handle{img: img, session: s, report: report}, nil
}

// Image returns the mapped image.
func (h *Handle) Image() *image.Image { return h.img }

// Session returns the registration session.
func (h *Handle) Session() *register.Session { return h.session }

// Report returns the load report.
func (h *Handle) Report() *register.Report { return h.report }

// Symbol returns the address of an exported symbol of the image.
func (h *Handle) Symbol(name string) (uint64, error) {
	if h.closed {
		return 0, image.ErrClosed
	}
	return h.img.Symbol(name)
}

// Close disposes every class the load made live, then unmaps the image.
// Safe to call twice.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return errors.Join(h.session.Close(), h.img.Close())
}

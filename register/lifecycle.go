package register

import (
	"errors"
	"fmt"
)

// Close disposes every class the session made live, newest first, and
// returns the joined disposal errors. The session is unusable afterwards.
// Calling Close again is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for i := len(s.regs) - 1; i >= 0; i-- {
		r := s.regs[i]
		if err := s.rt.DisposeClassPair(r.Class); err != nil {
			errs = append(errs, fmt.Errorf("dispose %s: %w", r.Name, err))
			continue
		}
		s.log.Debug("disposed class", "class", r.Name)
	}
	s.log.Info("session closed", "disposed", len(s.regs)-len(errs), "failed", len(errs))

	s.regs = nil
	clear(s.classes)
	clear(s.metas)
	return errors.Join(errs...)
}

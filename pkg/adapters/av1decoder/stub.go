//go:build !libaom || !cgo

package av1decoder

import "github.com/user/vplayer/pkg/ports"

const available = false

type stubBackend struct{}

func newBackend() backend {
	return stubBackend{}
}

func (stubBackend) init() error                        { return ErrUnavailable }
func (stubBackend) decode([]byte) error                { return ErrUnavailable }
func (stubBackend) frames() ([]*ports.RawFrame, error) { return nil, ErrUnavailable }
func (stubBackend) destroy()                           {}

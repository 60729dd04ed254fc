//go:build !linux && !darwin

package poll

// fastPoller is unavailable on this platform, every operation fails with
// ErrUnsupportedPlatform.
type fastPoller struct{}

func (p *fastPoller) init() error { return ErrUnsupportedPlatform }

func (p *fastPoller) close() error { return nil }

func (p *fastPoller) register(int, Interest, Mode, Token) error { return ErrUnsupportedPlatform }

func (p *fastPoller) reregister(int, Interest, Mode, Token) error { return ErrUnsupportedPlatform }

func (p *fastPoller) unregister(int) error { return ErrUnsupportedPlatform }

func (p *fastPoller) wait(_ int, out []event) ([]event, error) {
	return out, ErrUnsupportedPlatform
}

func createWakeFd() (int, int, error) { return -1, -1, ErrUnsupportedPlatform }

func signalWakeFd(int) error { return ErrUnsupportedPlatform }

func drainWakeFd(int) error { return ErrUnsupportedPlatform }

func closeFD(int) error { return nil }

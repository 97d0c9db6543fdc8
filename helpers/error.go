package helpers

import (
	"strings"
	"sync"

	"github.com/juju/errors"
)

func FoldErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	ss := make([]string, 0, len(errs))
	for _, e := range errs {
		if e != nil {
			ss = append(ss, e.Error())
		}
	}
	if len(ss) == 0 {
		return nil
	}
	return errors.Errorf(strings.Join(ss, "\n"))
}

// WrapErrChan runs f and sends non-nil result to ch. Pair with FoldErrChan.
func WrapErrChan(wg *sync.WaitGroup, ch chan<- error, f func() error) {
	defer wg.Done()
	if err := f(); err != nil {
		ch <- err
	}
}

// FoldErrChan drains closed ch into single error.
func FoldErrChan(ch <-chan error) error {
	errs := make([]error, 0, 8)
	for e := range ch {
		errs = append(errs, e)
	}
	return FoldErrors(errs)
}

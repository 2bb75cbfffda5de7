package device

import "errors"

// unwinder releases acquired resources in reverse acquisition order
type unwinder struct {
	steps []func() error
}

func (u *unwinder) push(step func() error) {
	u.steps = append(u.steps, step)
}

// run releases everything pushed so far, most recent first, and forgets it
func (u *unwinder) run() error {
	var errs []error
	for i := len(u.steps) - 1; i >= 0; i-- {
		if err := u.steps[i](); err != nil {
			errs = append(errs, err)
		}
	}
	u.steps = nil
	return errors.Join(errs...)
}

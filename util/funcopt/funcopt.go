// Package funcopt implements the functional options used by the
// constructors of the util packages.
package funcopt

type (
	// O is a functional option applied to the object under construction.
	O interface {
		apply(t interface{}) error
	}

	// F adapts a plain function to the O interface.
	F func(i interface{}) error
)

func (f F) apply(t interface{}) error {
	return f(t)
}

// Apply calls every option on t and stops at the first error.
func Apply(t interface{}, opts ...O) error {
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o.apply(t); err != nil {
			return err
		}
	}
	return nil
}

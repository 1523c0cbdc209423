package errors

import "strings"

// ErrorCollection accumulates errors from independent operations so that a
// batch (e.g. stopping several processes) can report all failures at once.
type ErrorCollection struct {
	errors []error
}

func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{}
}

func (c *ErrorCollection) Add(err error) {
	if err != nil {
		c.errors = append(c.errors, err)
	}
}

func (c *ErrorCollection) HasErrors() bool {
	return len(c.errors) > 0
}

func (c *ErrorCollection) Errors() []error {
	return c.errors
}

func (c *ErrorCollection) Error() string {
	if len(c.errors) == 0 {
		return ""
	}
	messages := make([]string, 0, len(c.errors))
	for _, err := range c.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ToError returns nil if the collection is empty, the single error if there
// is exactly one, and the collection itself otherwise.
func (c *ErrorCollection) ToError() error {
	switch len(c.errors) {
	case 0:
		return nil
	case 1:
		return c.errors[0]
	default:
		return c
	}
}

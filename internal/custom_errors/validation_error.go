package custom_errors

import "strings"

// ValidationError collects every rejected configuration option so they can be reported together.
type ValidationError struct {
	Errors []error `json:"errors"`
}

func (c *ValidationError) Add(err error) {
	if err != nil {
		c.Errors = append(c.Errors, err)
	}
}

func (c *ValidationError) HasError() bool {
	return len(c.Errors) > 0
}

func (c *ValidationError) Error() string {
	if len(c.Errors) == 0 {
		return ""
	}
	msgs := make([]string, len(c.Errors))
	for i, err := range c.Errors {
		msgs[i] = err.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

func (c *ValidationError) Unwrap() []error {
	return c.Errors
}

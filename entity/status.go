package entity

import (
	"errors"
	"fmt"

	"github.com/kcmvp/retail/constraint"
	"github.com/samber/lo"
)

type Status string

const (
	Submitted  Status = "Submitted"
	Processing Status = "Processing"
	Completed  Status = "Completed"
	Cancelled  Status = "Cancelled"
)

var ErrInvalidTransition = errors.New("invalid status transition")

var transitions = map[Status][]Status{
	Submitted:  {Processing, Cancelled},
	Processing: {Completed, Cancelled},
	Completed:  {},
	Cancelled:  {},
}

// Statuses lists every order status in lifecycle order.
func Statuses() []string {
	return []string{string(Submitted), string(Processing), string(Completed), string(Cancelled)}
}

var _, knownStatus = constraint.OneOf(Statuses()...)()

func ParseStatus(s string) (Status, error) {
	if err := knownStatus(s); err != nil {
		return "", fmt.Errorf("order status %q: %w", s, err)
	}
	return Status(s), nil
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// To validates moving from s to next.
func (s Status) To(next Status) error {
	if !lo.Contains(transitions[s], next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return nil
}

package entity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kcmvp/retail/constraint"
)

var ErrInvalid = errors.New("invalid entity")

var (
	_, validEmail        = constraint.Email()()
	_, validURL          = constraint.URL()()
	_, usernameLength    = constraint.LengthBetween(1, 64)()
	_, usernameChars     = constraint.CharSetOnly("._-", constraint.LowerCaseChar, constraint.UpperCaseChar, constraint.NumberChar)()
	_, productNameLength = constraint.LengthBetween(1, 128)()
	_, stockNotNegative  = constraint.Gte(0)()
	// blob references produced by uploads to the product-images container
	_, imageReference = constraint.Match("product-images/*")()
)

func (c Customer) Validate() error {
	switch {
	case strings.TrimSpace(c.Username) == "":
		return fmt.Errorf("%w: customer username is required", ErrInvalid)
	case strings.TrimSpace(c.Email) == "":
		return fmt.Errorf("%w: customer email is required", ErrInvalid)
	}
	for _, check := range []func(string) error{usernameLength, usernameChars} {
		if err := check(c.Username); err != nil {
			return fmt.Errorf("%w: username %w", ErrInvalid, err)
		}
	}
	if err := validEmail(c.Email); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", ErrInvalid)
	}
	if err := productNameLength(p.Name); err != nil {
		return fmt.Errorf("%w: product name %w", ErrInvalid, err)
	}
	if err := stockNotNegative(p.StockAvailable); err != nil {
		return fmt.Errorf("%w: stock of %s %w", ErrInvalid, p.ID, err)
	}
	if p.ImageURL == "" {
		return nil
	}
	check := imageReference
	if strings.Contains(p.ImageURL, "://") {
		check = validURL
	}
	if err := check(p.ImageURL); err != nil {
		return fmt.Errorf("%w: image %w", ErrInvalid, err)
	}
	return nil
}

package image

import "errors"

var (
	ErrImageNotFound      = errors.New("image not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrInvalidSizeVariant = errors.New("invalid size variant")
)

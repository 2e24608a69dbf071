package env

import "errors"

var ErrInvalidConfig = errors.New("invalid config")

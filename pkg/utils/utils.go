package utils

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

var ErrPanicked = errors.New("panic")

// Try runs fun, converting a panic into ErrPanicked.
func Try[T any](fun func() (T, error)) (res T, err error) { //nolint:nonamedreturns
	defer func() {
		if r := recover(); r != nil {
			res = lo.Empty[T]()
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()

	return fun()
}

// Try0 is Try for functions with no result.
func Try0(fun func() error) error {
	_, err := Try(func() (struct{}, error) {
		return struct{}{}, fun()
	})

	return err
}

// MapErr maps xs through fun, stopping at the first error.
func MapErr[F any, T any](xs []F, fun func(F) (T, error)) ([]T, error) {
	result := make([]T, len(xs))

	for i, x := range xs {
		var err error

		result[i], err = fun(x)
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

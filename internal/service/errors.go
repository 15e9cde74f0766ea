package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// 业务错误分类，handler 据此映射 HTTP 状态码。
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrPersistence  = errors.New("persistence failure")
	ErrUnavailable  = errors.New("feature unavailable")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// notFoundOr 把 gorm 的未找到转换为 ErrNotFound，其余错误包装为 ErrPersistence。
func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return persistence(err)
}

func persistence(err error) error {
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

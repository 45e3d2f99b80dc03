package service

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyResolved 审批已被处理（并发响应竞争时第二个写入者收到）
	ErrAlreadyResolved = errors.New("approval request already resolved")
)

// ValidationError 校验错误，在任何写入发生之前返回给调用方
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError 创建校验错误
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError 判断是否校验错误
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

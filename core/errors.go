package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 错误分三类，调用方必须区分处理：
//   - 请求错误（BAD_REQUEST）：请求体不合法，直接拒绝，不重试
//   - 服务端错误（CONFIGURATION / OUT_OF_RANGE）：配置或模型缺陷，按 error 级别记录
//   - 查询未命中（NOT_FOUND）：向量缺失等，仅作为降级分支的控制信号，不向外传播
type DomainError struct {
	Code    string // 错误代码（如 "BAD_REQUEST", "NOT_FOUND"）
	Message string // 错误消息
	Module  string // 模块名称（如 "ranker", "estimate", "model"）
	Err     error  // 底层错误（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// GetDomainError 获取错误链中的 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 用领域错误包装底层错误
func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在（向量缺失、key 不存在）
	ErrorCodeBadRequest    = "BAD_REQUEST"    // 请求不合法
	ErrorCodeConfiguration = "CONFIGURATION"  // 配置错误或模型与召回不一致
	ErrorCodeOutOfRange    = "OUT_OF_RANGE"   // 候选耗尽，无法满足选取数量
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 外部服务不可用
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModuleStore    = "store"
	ModuleModel    = "model"
	ModuleMetric   = "metric"
	ModuleEstimate = "estimate"
	ModuleSelect   = "rerank"
	ModuleRanker   = "ranker"
	ModuleConfig   = "config"
	ModuleRecall   = "recall"
)

// BadRequestf 创建请求错误
func BadRequestf(module, format string, args ...any) *DomainError {
	return NewDomainError(module, ErrorCodeBadRequest, fmt.Sprintf(format, args...))
}

// Configurationf 创建配置错误
func Configurationf(module, format string, args ...any) *DomainError {
	return NewDomainError(module, ErrorCodeConfiguration, fmt.Sprintf(format, args...))
}

// NotFoundf 创建未命中错误
func NotFoundf(module, format string, args ...any) *DomainError {
	return NewDomainError(module, ErrorCodeNotFound, fmt.Sprintf(format, args...))
}

// OutOfRangef 创建候选耗尽错误
func OutOfRangef(module, format string, args ...any) *DomainError {
	return NewDomainError(module, ErrorCodeOutOfRange, fmt.Sprintf(format, args...))
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsBadRequest 检查错误是否为 BAD_REQUEST
func IsBadRequest(err error) bool { return hasCode(err, ErrorCodeBadRequest) }

// IsConfiguration 检查错误是否为 CONFIGURATION
func IsConfiguration(err error) bool { return hasCode(err, ErrorCodeConfiguration) }

// IsOutOfRange 检查错误是否为 OUT_OF_RANGE
func IsOutOfRange(err error) bool { return hasCode(err, ErrorCodeOutOfRange) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool { return hasCode(err, ErrorCodeUnavailable) }

// IsServerError 判断错误是否属于服务端缺陷（配置错误、候选耗尽或非领域错误）。
func IsServerError(err error) bool {
	if err == nil {
		return false
	}
	domainErr := GetDomainError(err)
	if domainErr == nil {
		return true
	}
	switch domainErr.Code {
	case ErrorCodeBadRequest, ErrorCodeNotFound:
		return false
	}
	return true
}

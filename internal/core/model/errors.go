package model

// RegistryError 定义注册中心操作可能返回的错误类型
type RegistryError struct {
	Code    int
	Message string
}

// Error 实现error接口
func (e *RegistryError) Error() string {
	return e.Message
}

// 定义错误代码
const (
	// ErrInvalidArgument 注册参数无效
	ErrInvalidArgument = iota + 1
	// ErrNotFound 服务不存在
	ErrNotFound
	// ErrUnreachable 探测目标无法连接，仅用于健康检查内部
	ErrUnreachable
	// ErrInternal 内部错误
	ErrInternal
)

// NewInvalidArgumentError 创建参数无效错误
func NewInvalidArgumentError(message string) *RegistryError {
	return &RegistryError{
		Code:    ErrInvalidArgument,
		Message: message,
	}
}

// NewNotFoundError 创建服务不存在错误
func NewNotFoundError(message string) *RegistryError {
	return &RegistryError{
		Code:    ErrNotFound,
		Message: message,
	}
}

// NewUnreachableError 创建探测失败错误
func NewUnreachableError(message string) *RegistryError {
	return &RegistryError{
		Code:    ErrUnreachable,
		Message: message,
	}
}

// NewInternalError 创建内部错误
func NewInternalError(message string) *RegistryError {
	return &RegistryError{
		Code:    ErrInternal,
		Message: message,
	}
}

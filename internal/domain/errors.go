package domain

import "errors"

var (
	// ErrForbidden 当前用户无权执行该操作
	ErrForbidden = errors.New("forbidden")

	ErrUserNotFound    = errors.New("user not found")
	ErrClientNotFound  = errors.New("client not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrMailingNotFound = errors.New("mailing not found")

	// ErrUserEmailExists 注册邮箱已被使用
	ErrUserEmailExists = errors.New("user email already exists")
	// ErrClientEmailExists 联系人邮箱已存在（全局唯一）
	ErrClientEmailExists = errors.New("client email already exists")

	ErrMailingFinished   = errors.New("mailing already finished")
	ErrMailingDisabled   = errors.New("mailing is disabled")
	ErrMailingNotStarted = errors.New("mailing has not started yet")

	// ErrCannotModifySelf 管理操作不能作用于自己
	ErrCannotModifySelf = errors.New("cannot modify self")
	// ErrCannotModifyOwner 站点所有者账号不能被管理操作修改
	ErrCannotModifyOwner = errors.New("cannot modify site owner")

	// ErrValidation 输入校验失败
	ErrValidation = errors.New("validation failed")
)

// IsNotFound 判断错误是否属于资源不存在
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrMailingNotFound)
}

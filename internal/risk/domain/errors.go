package domain

import "errors"

// 领域错误哨兵，调用方通过 errors.Is 判断错误类别
var (
	// ErrInvalidValue 百分比超出 [0,100] 或非有限数
	ErrInvalidValue = errors.New("invalid percentage value")
	// ErrInvalidThreshold 阈值对不满足不变量（trailing DD >= daily loss）
	ErrInvalidThreshold = errors.New("invalid prop firm threshold")
	// ErrUnauthorized 账户不存在或属于其他用户，两种情况统一返回，避免暴露账户是否存在
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAccountNotFound 鉴权通过后仍无法取到风险状态，属于数据不一致
	ErrAccountNotFound = errors.New("account risk state not found")
)

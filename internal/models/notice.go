package models

// NoticeSeverity 通知严重级别
type NoticeSeverity int

const (
	// NoticeTransient 瞬时通知，界面可自动清除
	NoticeTransient NoticeSeverity = iota
	// NoticeMustDismiss 需要用户显式关闭的通知
	NoticeMustDismiss
)

// Notice 推送给界面层的错误通知
type Notice struct {
	Severity NoticeSeverity
	Message  string
	Detail   string // 原始消息或底层错误文本，便于诊断
}

// Transient 创建瞬时通知
func Transient(message, detail string) Notice {
	return Notice{Severity: NoticeTransient, Message: message, Detail: detail}
}

// MustDismiss 创建需用户关闭的通知
func MustDismiss(message, detail string) Notice {
	return Notice{Severity: NoticeMustDismiss, Message: message, Detail: detail}
}

// AppUpdate 推送给界面层的更新（状态或通知，二者只有其一非空）
type AppUpdate struct {
	Status *Status
	Notice *Notice
}

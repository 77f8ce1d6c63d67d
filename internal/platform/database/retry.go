package database

import "strings"

// IsRetryableError 判断一个SQLite错误是否值得在短暂延迟后重试。
// SQLite在并发写入时会返回busy/locked，这类错误是瞬态的。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

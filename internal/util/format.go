package util

import (
	"fmt"
	"strconv"
)

// FormatDuration 秒数格式化为 "18s"、"6m"、"6m 45s"，nil 或 0 返回 "-"，不足一秒的部分舍去
func FormatDuration(seconds *float64) string {
	if seconds == nil || *seconds == 0 {
		return "-"
	}

	total := int64(*seconds)
	if total < 60 {
		return fmt.Sprintf("%ds", total)
	}

	minutes := total / 60
	remaining := total % 60
	if remaining == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm %ds", minutes, remaining)
}

// FormatSeconds 同 FormatDuration，参数为值类型
func FormatSeconds(seconds float64) string {
	return FormatDuration(&seconds)
}

// FormatNumber 去掉多余的小数位，如 3 -> "3"，12.5 -> "12.5"
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

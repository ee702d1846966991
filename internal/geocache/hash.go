package geocache

import (
	"strconv"
	"strings"
)

// 文档注释：地址规范化
// 背景：键必须是规范化地址的纯函数，大小写与首尾空白不影响命中；内部连续空白压缩为单个空格，
// 避免表单提交的排版差异产生重复条目。
func Normalize(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// 文档注释：地址滚动哈希（多项式，31 进制）
// 背景：对规范化地址逐码点累乘折叠进 32 位有符号累加器，再按无符号 base36 渲染为短键；
// 非加密哈希，不同地址存在碰撞可能，读取路径须比对条目内存储的规范化地址兜底（见 cache.go）。
// 约束：规范化后为空返回保留键 "0"；同一输入跨进程重启结果恒定。
func HashKey(raw string) string {
	s := Normalize(raw)
	if s == "" {
		return "0"
	}
	var h int32
	for _, r := range s {
		h = h*31 + int32(r)
	}
	return strconv.FormatUint(uint64(uint32(h)), 36)
}

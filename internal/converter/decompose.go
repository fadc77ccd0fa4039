package converter

import "strings"

// 名称拆分使用的尾部分隔符集合。
const stemDelimiters = "-_ |｜·#@"

// 信息节点关键字。机场常把剩余流量、到期时间等文本伪装成节点下发,
// 这些条目不是真实代理, 需要归入单独的信息分组。
var infoKeywords = []string{
	"官网", "网址", "剩余", "流量",
	"过期", "到期", "订阅", "套餐",
	"重置", "时间", "TG", "更新",
}

// IsInfoNode 判断节点名是否为信息型伪节点。
func IsInfoNode(name string) bool {
	if name == "" {
		return false
	}
	for _, keyword := range infoKeywords {
		if strings.Contains(name, keyword) {
			return true
		}
	}
	return false
}

// ExtractStem 去掉节点名尾部的序号得到词干:
// 先剥离结尾的数字串, 再剥离数字前的分隔符。
//
//	"香港-01"      -> "香港"
//	"Japan 01"     -> "Japan"
//	"Singapore123" -> "Singapore"
//
// 没有尾部数字 ("US-West")、纯数字 ("01") 或剥离后为空的名字
// 不做拆分, 整个名字就是词干, 对应一个单节点分组。
func ExtractStem(name string) string {
	base := strings.TrimRight(name, "0123456789")
	if base == name || base == "" {
		return name
	}

	stem := strings.TrimRight(base, stemDelimiters)
	if stem == "" {
		return name
	}
	return stem
}

package converter

import (
	"bytes"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// 共享健康检查字段的锚点名。第一个负载组内联声明
// `<<: &lb-common {...}`, 之后的负载组只写 `<<: *lb-common`。
const mergeAnchorName = "lb-common"

// 输出文档头部的固定客户端参数。
var baseOptions = []struct {
	key   string
	value *yaml.Node
}{
	{"port", intNode(7890)},
	{"socks-port", intNode(7891)},
	{"allow-lan", boolNode(true)},
	{"mode", strNode("rule")},
	{"log-level", strNode("info")},
	{"external-controller", strNode("127.0.0.1:9090")},
}

// 固定规则块: 局域网与境内 IP 直连, 其余走默认流量。
// GEOIP 规则不带 no-resolve, 按设计触发 DNS 解析后再匹配。
var fixedRules = []string{
	"GEOIP,LAN," + GroupDirect,
	"GEOIP,CN," + GroupDirect,
	"MATCH," + GroupDefault,
}

func strNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: value}
}

func intNode(value int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(value)}
}

func boolNode(value bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(value)}
}

func appendField(mapping *yaml.Node, key string, value *yaml.Node) {
	mapping.Content = append(mapping.Content, strNode(key), value)
}

func sequenceOf(items []string) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, item := range items {
		seq.Content = append(seq.Content, strNode(item))
	}
	return seq
}

// EmitDocument 把原始节点与合成的分组序列化成最终配置文档。
// 节点映射原样透传 (字段集与顺序都不动), 所有内容显式排序,
// 相同输入必然产出逐字节相同的结果。
func EmitDocument(proxies []*yaml.Node, groups []Group) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	for _, option := range baseOptions {
		appendField(root, option.key, option.value)
	}

	proxySeq := &yaml.Node{Kind: yaml.SequenceNode}
	proxySeq.Content = append(proxySeq.Content, proxies...)
	appendField(root, "proxies", proxySeq)

	groupSeq := &yaml.Node{Kind: yaml.SequenceNode}
	var bundle *yaml.Node
	for _, group := range groups {
		node, err := groupNode(group, &bundle)
		if err != nil {
			return nil, err
		}
		groupSeq.Content = append(groupSeq.Content, node)
	}
	appendField(root, "proxy-groups", groupSeq)

	appendField(root, "rules", sequenceOf(fixedRules))

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(root); err != nil {
		return nil, fmt.Errorf("encode output document: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encode output document: %w", err)
	}
	return buf.Bytes(), nil
}

// groupNode 构建单个分组的映射节点。负载组的公共三字段
// (url/interval/strategy) 只在第一个负载组内联声明并打锚,
// 之后的负载组通过合并键引用同一份。
func groupNode(group Group, bundle **yaml.Node) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	appendField(node, "name", strNode(group.Name))
	appendField(node, "type", strNode(group.Type))

	switch group.Type {
	case GroupTypeSelect:
		appendField(node, "proxies", sequenceOf(group.Proxies))

	case GroupTypeLoadBalance:
		if group.IncludeAll {
			appendField(node, "include-all", boolNode(true))
		}
		if group.Filter != "" {
			appendField(node, "filter", strNode(group.Filter))
		}
		if len(group.Proxies) > 0 {
			appendField(node, "proxies", sequenceOf(group.Proxies))
		}

		if *bundle == nil {
			shared := &yaml.Node{Kind: yaml.MappingNode, Anchor: mergeAnchorName}
			appendField(shared, "url", strNode(group.URL))
			appendField(shared, "interval", intNode(group.Interval))
			appendField(shared, "strategy", strNode(group.Strategy))
			appendField(node, "<<", shared)
			*bundle = shared
		} else {
			alias := &yaml.Node{Kind: yaml.AliasNode, Value: mergeAnchorName, Alias: *bundle}
			appendField(node, "<<", alias)
		}

	default:
		return nil, fmt.Errorf("group %q has unsupported type %q", group.Name, group.Type)
	}

	return node, nil
}

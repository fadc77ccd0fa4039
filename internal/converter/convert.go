// Package converter 把上游订阅文档重写为带分组层级的精简配置:
// 解析节点列表 -> 按地区/信息归桶 -> 合成选择与负载均衡分组 ->
// 带锚点去重序列化。核心是纯同步转换, 不持有共享状态,
// 并发调用彼此独立。
package converter

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrParse 订阅内容不是合法 YAML, 或缺少 proxies 列表。
var ErrParse = errors.New("subscription parse failed")

// Options 控制一次转换的分类行为。
type Options struct {
	// Strategy 为 StrategyRegistry (固定地区注册表, 默认)
	// 或 StrategyAuto (按名称词干自动识别分组)。
	Strategy string

	// IncludeEmptyBuckets 仅对固定注册表生效:
	// 为 true 时输出注册表全部桶 (历史行为), 否则跳过空桶。
	IncludeEmptyBuckets bool

	// Registry 覆盖内置注册表, nil 使用默认。
	Registry *Registry
}

// Result 一次转换的产物。
type Result struct {
	Output     []byte
	ProxyCount int
	GroupCount int
}

// Convert 执行完整转换。输入格式错误返回包装了 ErrParse 的错误;
// 分组图自洽性被破坏属于内部缺陷, 直接 panic。
func Convert(content []byte, opts Options) (*Result, error) {
	if opts.Strategy == "" {
		opts.Strategy = StrategyRegistry
	}
	if opts.Strategy != StrategyRegistry && opts.Strategy != StrategyAuto {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, opts.Strategy)
	}
	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}

	proxies, names, err := parseProxies(content)
	if err != nil {
		return nil, err
	}

	var (
		buckets *Buckets
		info    []string
	)
	if opts.Strategy == StrategyAuto {
		buckets, info = ClassifyAuto(names)
		registry = nil
	} else {
		buckets = ClassifyRegistry(names, registry)
	}

	groups := Synthesize(names, buckets, info, registry, opts.IncludeEmptyBuckets)
	if err := ValidateGroups(groups, names); err != nil {
		// 引用了未声明的名字只可能是合成器缺陷, 不是坏输入。
		panic(fmt.Sprintf("converter: inconsistent group graph: %v", err))
	}

	output, err := EmitDocument(proxies, groups)
	if err != nil {
		return nil, err
	}

	return &Result{Output: output, ProxyCount: len(proxies), GroupCount: len(groups)}, nil
}

// parseProxies 解析订阅文档, 返回原始节点映射 (保持字段集与顺序,
// 供原样透传) 和可用于分组的节点名列表。
// name 缺失、非字符串或为空的条目照常透传, 但不参与分组。
func parseProxies(content []byte) ([]*yaml.Node, []string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("%w: document is not a mapping", ErrParse)
	}

	proxiesNode := mappingValue(doc.Content[0], "proxies")
	if proxiesNode == nil {
		return nil, nil, fmt.Errorf("%w: missing proxies list", ErrParse)
	}
	if proxiesNode.Kind != yaml.SequenceNode {
		return nil, nil, fmt.Errorf("%w: proxies is not a list", ErrParse)
	}

	proxies := proxiesNode.Content
	names := make([]string, 0, len(proxies))
	for _, proxy := range proxies {
		if name := proxyName(proxy); name != "" {
			names = append(names, name)
		}
	}
	return proxies, names, nil
}

func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Kind == yaml.ScalarNode && mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// proxyName 取节点映射中的 name 字段, 仅接受字符串标量。
func proxyName(proxy *yaml.Node) string {
	if proxy.Kind != yaml.MappingNode {
		return ""
	}
	value := mappingValue(proxy, "name")
	if value == nil || value.Kind != yaml.ScalarNode {
		return ""
	}
	if value.Tag != "" && value.Tag != "!!str" {
		return ""
	}
	return value.Value
}

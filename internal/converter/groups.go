package converter

import "fmt"

// 固定分组名与负载均衡健康检查参数。
const (
	GroupDefault  = "默认流量"
	GroupSelector = "节点选择"
	GroupAllNodes = "全部节点负载组"
	GroupDirect   = "直接连接"
	GroupInfo     = "订阅信息"

	// DIRECT 是客户端内建的直连策略, 不对应任何声明的节点。
	DirectPolicy = "DIRECT"

	GroupTypeSelect      = "select"
	GroupTypeLoadBalance = "load-balance"

	healthCheckURL      = "http://www.gstatic.com/generate_204"
	healthCheckInterval = 180
	balanceStrategy     = "consistent-hashing"
)

// Group 输出层级中的一个分组节点。成员只按名字弱引用,
// 不内嵌节点数据, 层级因此是同一命名空间上的有向无环图。
type Group struct {
	Name       string
	Type       string
	Proxies    []string
	IncludeAll bool
	Filter     string
	URL        string
	Interval   int
	Strategy   string
}

func selectGroup(name string, members []string) Group {
	return Group{Name: name, Type: GroupTypeSelect, Proxies: members}
}

func balanceGroup(name string) Group {
	return Group{
		Name:     name,
		Type:     GroupTypeLoadBalance,
		URL:      healthCheckURL,
		Interval: healthCheckInterval,
		Strategy: balanceStrategy,
	}
}

// Synthesize 根据分类结果构建完整分组层级, 输出顺序固定:
// 默认流量、节点选择、全部节点负载组、各活跃桶的负载组、
// (自动模式下的订阅信息)、直接连接。
//
// 固定注册表模式下地区负载组用 include-all + filter 表达成员;
// 兜底桶与自动模式的词干桶没有可用的过滤正则, 改用显式成员列表。
func Synthesize(proxyNames []string, buckets *Buckets, info []string, registry *Registry, includeEmpty bool) []Group {
	var regionGroups []Group

	switch {
	case registry != nil && includeEmpty:
		// 历史行为: 注册表中的桶全部输出, 兜底桶用 .* 过滤。
		for _, entry := range registry.Entries() {
			group := balanceGroup(entry.Bucket)
			group.IncludeAll = true
			group.Filter = entry.Matcher.Pattern()
			regionGroups = append(regionGroups, group)
		}
		catch := balanceGroup(registry.CatchAll())
		catch.IncludeAll = true
		catch.Filter = ".*"
		regionGroups = append(regionGroups, catch)

	case registry != nil:
		for _, bucket := range buckets.Order() {
			group := balanceGroup(bucket)
			if pattern := registry.FilterPattern(bucket); pattern != "" {
				group.IncludeAll = true
				group.Filter = pattern
			} else {
				// 兜底桶: 分类语义是"未命中其余模式的名字",
				// 无法表达为正则过滤, 用显式列表。
				group.Proxies = append([]string(nil), buckets.Members(bucket)...)
			}
			regionGroups = append(regionGroups, group)
		}

	default:
		for _, bucket := range buckets.Order() {
			group := balanceGroup(bucket)
			group.Proxies = append([]string(nil), buckets.Members(bucket)...)
			regionGroups = append(regionGroups, group)
		}
	}

	defaultMembers := []string{GroupSelector, GroupDirect, GroupAllNodes}
	for _, group := range regionGroups {
		defaultMembers = append(defaultMembers, group.Name)
	}
	if len(info) > 0 {
		defaultMembers = append(defaultMembers, GroupInfo)
	}

	groups := make([]Group, 0, len(regionGroups)+5)
	groups = append(groups, selectGroup(GroupDefault, defaultMembers))
	groups = append(groups, selectGroup(GroupSelector, append([]string(nil), proxyNames...)))

	allNodes := balanceGroup(GroupAllNodes)
	allNodes.IncludeAll = true
	groups = append(groups, allNodes)

	groups = append(groups, regionGroups...)

	if len(info) > 0 {
		groups = append(groups, selectGroup(GroupInfo, append([]string(nil), info...)))
	}

	groups = append(groups, selectGroup(GroupDirect, []string{DirectPolicy}))

	return groups
}

// ValidateGroups 校验分组图的自洽性: 每个被引用的名字必须解析到
// 已声明的分组、已声明的节点或 DIRECT。失败说明合成器自身有缺陷,
// 由调用方以 panic 处理, 绝不静默输出残缺文档。
func ValidateGroups(groups []Group, proxyNames []string) error {
	declared := make(map[string]struct{}, len(groups)+len(proxyNames)+1)
	declared[DirectPolicy] = struct{}{}
	for _, group := range groups {
		declared[group.Name] = struct{}{}
	}
	for _, name := range proxyNames {
		declared[name] = struct{}{}
	}

	for _, group := range groups {
		for _, member := range group.Proxies {
			if _, ok := declared[member]; !ok {
				return fmt.Errorf("group %q references undeclared member %q", group.Name, member)
			}
		}
	}
	return nil
}

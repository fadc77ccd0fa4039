package converter

// Buckets 分类结果: 桶名到成员节点名的有序映射。
// 桶顺序为扫描时首次出现的顺序; 固定注册表的兜底桶始终排在最后。
type Buckets struct {
	order   []string
	members map[string][]string
}

func newBuckets() *Buckets {
	return &Buckets{members: make(map[string][]string)}
}

func (b *Buckets) add(bucket, name string) {
	if _, ok := b.members[bucket]; !ok {
		b.order = append(b.order, bucket)
	}
	b.members[bucket] = append(b.members[bucket], name)
}

// Order returns bucket names in first-seen order.
func (b *Buckets) Order() []string {
	return b.order
}

// Members returns the ordered member names of a bucket.
func (b *Buckets) Members(bucket string) []string {
	return b.members[bucket]
}

// Len returns the number of non-empty buckets.
func (b *Buckets) Len() int {
	return len(b.order)
}

// moveToEnd 把兜底桶挪到顺序末尾 (无论它何时首次出现)。
func (b *Buckets) moveToEnd(bucket string) {
	for i, name := range b.order {
		if name == bucket {
			b.order = append(append(b.order[:i:i], b.order[i+1:]...), bucket)
			return
		}
	}
}

// ClassifyRegistry 按固定注册表给每个节点名归桶。
// 纯函数: 不修改输入, 重复名字各自独立归桶。
func ClassifyRegistry(names []string, registry *Registry) *Buckets {
	buckets := newBuckets()
	for _, name := range names {
		buckets.add(registry.Resolve(name), name)
	}
	buckets.moveToEnd(registry.CatchAll())
	return buckets
}

// ClassifyAuto 自动识别模式: 先分离信息节点, 再按词干归桶。
// 返回地区桶与信息节点名列表。
func ClassifyAuto(names []string) (*Buckets, []string) {
	buckets := newBuckets()
	var info []string
	for _, name := range names {
		if IsInfoNode(name) {
			info = append(info, name)
			continue
		}
		buckets.add(ExtractStem(name), name)
	}
	return buckets, info
}

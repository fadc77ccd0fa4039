package converter

import (
	"errors"
	"fmt"
	"regexp"
)

// 分类策略
const (
	StrategyRegistry = "registry"
	StrategyAuto     = "auto"
)

var (
	ErrInvalidRegistry = errors.New("invalid bucket registry")
	ErrUnknownStrategy = errors.New("unknown classify strategy")
)

// Matcher 决定一个节点名是否属于某个分组桶。
// 两种形态: 固定注册表使用正则, 自动识别使用精确词干比较。
type Matcher struct {
	pattern string
	re      *regexp.Regexp
	stem    string
}

// NewRegexMatcher compiles a case-insensitive-by-convention pattern.
// Patterns carry their own (?i) flag, matching the source registry.
func NewRegexMatcher(pattern string) (Matcher, error) {
	if pattern == "" {
		return Matcher{}, fmt.Errorf("%w: empty pattern", ErrInvalidRegistry)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Matcher{}, fmt.Errorf("%w: compile %q: %v", ErrInvalidRegistry, pattern, err)
	}
	return Matcher{pattern: pattern, re: re}, nil
}

// NewStemMatcher matches names whose decomposed stem equals stem exactly.
// Stem comparison is case-sensitive.
func NewStemMatcher(stem string) Matcher {
	return Matcher{stem: stem}
}

func (m Matcher) Match(name string) bool {
	if m.re != nil {
		return m.re.MatchString(name)
	}
	return ExtractStem(name) == m.stem
}

// Pattern returns the raw regex pattern, or "" for stem matchers.
func (m Matcher) Pattern() string {
	return m.pattern
}

// RegistryEntry 一个分组桶与它的匹配器。
type RegistryEntry struct {
	Bucket  string
	Matcher Matcher
}

// Registry 有序的 (桶名, 匹配器) 列表, 兜底桶固定在最后。
// 顺序即优先级: 同时命中多个模式的名字归属列表更靠前的桶。
type Registry struct {
	entries  []RegistryEntry
	catchAll string
}

// NewRegistry validates the entry list at construction time. A registry
// without a catch-all bucket is a configuration error, not a per-request
// runtime error.
func NewRegistry(entries []RegistryEntry, catchAll string) (*Registry, error) {
	if catchAll == "" {
		return nil, fmt.Errorf("%w: missing catch-all bucket", ErrInvalidRegistry)
	}

	seen := make(map[string]struct{}, len(entries)+1)
	seen[catchAll] = struct{}{}
	for _, entry := range entries {
		if entry.Bucket == "" {
			return nil, fmt.Errorf("%w: entry with empty bucket name", ErrInvalidRegistry)
		}
		if entry.Bucket == catchAll {
			return nil, fmt.Errorf("%w: bucket %q shadows the catch-all", ErrInvalidRegistry, entry.Bucket)
		}
		if _, dup := seen[entry.Bucket]; dup {
			return nil, fmt.Errorf("%w: duplicate bucket %q", ErrInvalidRegistry, entry.Bucket)
		}
		seen[entry.Bucket] = struct{}{}
		if entry.Matcher.re == nil && entry.Matcher.stem == "" {
			return nil, fmt.Errorf("%w: bucket %q has no matcher", ErrInvalidRegistry, entry.Bucket)
		}
	}

	return &Registry{entries: entries, catchAll: catchAll}, nil
}

// Resolve 返回第一个命中的桶名, 都未命中时返回兜底桶。
func (r *Registry) Resolve(name string) string {
	for _, entry := range r.entries {
		if entry.Matcher.Match(name) {
			return entry.Bucket
		}
	}
	return r.catchAll
}

// CatchAll returns the name of the unconditional last bucket.
func (r *Registry) CatchAll() string {
	return r.catchAll
}

// Entries returns the ordered non-catch-all entries.
func (r *Registry) Entries() []RegistryEntry {
	return r.entries
}

// FilterPattern returns the regex filter associated with a bucket,
// or "" when the bucket is stem-based or the catch-all.
func (r *Registry) FilterPattern(bucket string) string {
	for _, entry := range r.entries {
		if entry.Bucket == bucket {
			return entry.Matcher.Pattern()
		}
	}
	return ""
}

// 固定地区注册表, 模式与顺序沿用线上配置。顺序是重要的:
// 例如 "america" 同时包含 "ca", 依顺序先归入美国桶。
var defaultRegions = []struct {
	bucket  string
	pattern string
}{
	{"香港负载组", "(?i)港|hk|hongkong|hong kong"},
	{"台湾负载组", "(?i)台|tw|taiwan"},
	{"日本负载组", "(?i)日|jp|japan"},
	{"新加坡负载组", "(?i)新|sg|singapore"},
	{"美国负载组", "(?i)美|us|usa|united states|america"},
	{"韩国负载组", "(?i)韩|kr|korea"},
	{"英国负载组", "(?i)英|uk|britain|united kingdom"},
	{"德国负载组", "(?i)德|de|germany"},
	{"法国负载组", "(?i)法|fr|france"},
	{"加拿大负载组", "(?i)加|ca|canada"},
	{"澳大利亚负载组", "(?i)澳|au|australia"},
	{"马来西亚负载组", "(?i)马来|my|malaysia"},
	{"土耳其负载组", "(?i)土耳其|tr|turkey"},
	{"阿根廷负载组", "(?i)阿根廷|ar|argentina"},
}

// CatchAllBucket 兜底桶名。
const CatchAllBucket = "其他负载组"

var defaultRegistry = mustDefaultRegistry()

func mustDefaultRegistry() *Registry {
	entries := make([]RegistryEntry, 0, len(defaultRegions))
	for _, region := range defaultRegions {
		matcher, err := NewRegexMatcher(region.pattern)
		if err != nil {
			panic(fmt.Sprintf("default registry: %v", err))
		}
		entries = append(entries, RegistryEntry{Bucket: region.bucket, Matcher: matcher})
	}

	registry, err := NewRegistry(entries, CatchAllBucket)
	if err != nil {
		panic(fmt.Sprintf("default registry: %v", err))
	}
	return registry
}

// DefaultRegistry returns the built-in region registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

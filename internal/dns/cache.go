package dns

import (
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

const (
	// minCacheTTL 缓存条目的最短存活时间
	minCacheTTL = 1 * time.Second
	// maxCacheTTL 缓存条目的最长存活时间，避免长期持有陈旧的上游响应
	maxCacheTTL = 5 * time.Minute
)

// responseCache 缓存上游DNS响应，减少重复转发
type responseCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

// cacheEntry 表示缓存中的一条响应
type cacheEntry struct {
	msg      *dns.Msg
	expireAt time.Time
}

// newResponseCache 创建响应缓存
func newResponseCache() *responseCache {
	return &responseCache{
		entries: make(map[string]*cacheEntry),
	}
}

// cacheKey 生成缓存键，DNS域名不区分大小写
func cacheKey(q dns.Question) string {
	return strings.ToLower(q.Name) + "/" + dns.TypeToString[q.Qtype]
}

// cacheTTL 根据响应中答案记录的最小TTL计算缓存时间
func cacheTTL(resp *dns.Msg) time.Duration {
	minTTL := uint32(0)
	for i, ans := range resp.Answer {
		ttl := ans.Header().Ttl
		if i == 0 || ttl < minTTL {
			minTTL = ttl
		}
	}

	ttl := time.Duration(minTTL) * time.Second
	if ttl < minCacheTTL {
		return minCacheTTL
	}
	if ttl > maxCacheTTL {
		return maxCacheTTL
	}
	return ttl
}

// lookup 查找请求对应的缓存响应，命中时返回副本
func (c *responseCache) lookup(r *dns.Msg) *dns.Msg {
	if len(r.Question) == 0 {
		return nil
	}

	c.mu.RLock()
	entry, found := c.entries[cacheKey(r.Question[0])]
	c.mu.RUnlock()

	if !found || time.Now().After(entry.expireAt) {
		return nil
	}

	// 返回副本并修正消息ID，避免并发修改缓存内容
	msg := entry.msg.Copy()
	msg.Id = r.Id
	return msg
}

// store 缓存一条成功的上游响应，无答案的响应不缓存
func (c *responseCache) store(r, resp *dns.Msg) {
	if len(r.Question) == 0 || resp == nil || len(resp.Answer) == 0 {
		return
	}
	if resp.Rcode != dns.RcodeSuccess {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(r.Question[0])] = &cacheEntry{
		msg:      resp.Copy(),
		expireAt: time.Now().Add(cacheTTL(resp)),
	}
}

// removeExpired 清理所有过期条目
func (c *responseCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expireAt) {
			delete(c.entries, key)
		}
	}
}

// run 周期性清理过期条目，直到stop关闭
func (c *responseCache) run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-stop:
			return
		}
	}
}

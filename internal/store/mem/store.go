package mem

import (
	"context"
	"strings"
	"sync"

	"geo-cache/internal/geocache"
)

// 文档注释：内存文档存储
// 背景：未配置 PostgreSQL 时的进程内回退实现，也用于测试替身；语义与数据库实现一致
// （单键 last-writer-wins、Get 未命中返回 nil、Delete 幂等、前缀过滤与全量扫描结果恒等）。
// 约束：进程退出即清空；返回条目为副本，调用方改动不会回写。
type Store struct {
	mu sync.RWMutex
	m  map[string]geocache.Entry
}

func NewStore() *Store {
	return &Store{m: make(map[string]geocache.Entry)}
}

func (s *Store) Get(ctx context.Context, key string) (*geocache.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.m[key]
	if !ok {
		return nil, nil
	}
	cp := cloneEntry(e)
	return &cp, nil
}

func (s *Store) Upsert(ctx context.Context, e *geocache.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[e.Key] = cloneEntry(*e)
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *Store) All(ctx context.Context) ([]geocache.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]geocache.Entry, 0, len(s.m))
	for _, e := range s.m {
		out = append(out, cloneEntry(e))
	}
	return out, nil
}

func (s *Store) ByGeoPrefix(ctx context.Context, prefix string) ([]geocache.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []geocache.Entry
	for _, e := range s.m {
		if strings.HasPrefix(e.Geohash, prefix) {
			out = append(out, cloneEntry(e))
		}
	}
	return out, nil
}

// cloneEntry：复制条目，嵌套 map/切片一并复制，隔离调用方改动
func cloneEntry(e geocache.Entry) geocache.Entry {
	if e.Components != nil {
		m := make(map[string]string, len(e.Components))
		for k, v := range e.Components {
			m[k] = v
		}
		e.Components = m
	}
	if e.PlaceTypes != nil {
		e.PlaceTypes = append([]string(nil), e.PlaceTypes...)
	}
	return e
}

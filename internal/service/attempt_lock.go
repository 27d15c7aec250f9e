package service

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// attemptLocks 按 attemptId 分段加锁，同一尝试上的终止迁移和评价写入串行执行
type attemptLocks struct {
	stripes [lockStripes]sync.Mutex
}

func stripeIndex(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % lockStripes
}

func (l *attemptLocks) lock(attemptID string) func() {
	m := &l.stripes[stripeIndex(attemptID)]
	m.Lock()
	return m.Unlock
}

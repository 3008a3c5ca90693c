package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
)

// MiddlewareManager collects gin middlewares before the engine is built.
type MiddlewareManager struct {
	mu   sync.RWMutex
	mids []gin.HandlerFunc
}

func NewManager() *MiddlewareManager {
	return &MiddlewareManager{}
}

// Add 注册中间件（按注册顺序执行）
func (m *MiddlewareManager) Add(h ...gin.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = append(m.mids, h...)
}

// Clear 清空全部中间件
func (m *MiddlewareManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = nil
}

// Handlers 返回快照
func (m *MiddlewareManager) Handlers() []gin.HandlerFunc {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]gin.HandlerFunc{}, m.mids...)
}

// Apply mounts every registered middleware on r.
func (m *MiddlewareManager) Apply(r gin.IRoutes) {
	if hs := m.Handlers(); len(hs) > 0 {
		r.Use(hs...)
	}
}

package container

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"pmm-adaptive/infrastructure/logger"
)

// Lifecycle 生命周期接口
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
	Health() error
}

type namedComponent struct {
	name string
	Lifecycle
}

// LifecycleManager 按注册顺序启动组件（行情源 → 引擎 → 状态服务），逆序停止。
type LifecycleManager struct {
	components []namedComponent
	mu         sync.RWMutex
}

func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{}
}

// Register 以名字注册组件；名字出现在启动、停止和健康检查的错误中。
func (m *LifecycleManager) Register(name string, component Lifecycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, namedComponent{name: name, Lifecycle: component})
}

// Names 按启动顺序返回已注册组件名。
func (m *LifecycleManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.components))
	for i, c := range m.components {
		names[i] = c.name
	}
	return names
}

// StartAll 按顺序启动；某个组件失败时逆序停止已启动的组件，回滚错误一并返回。
func (m *LifecycleManager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, c := range m.components {
		if err := c.Start(ctx); err != nil {
			errs := []error{fmt.Errorf("start component %s failed: %w", c.name, err)}
			for j := i - 1; j >= 0; j-- {
				if serr := m.components[j].Stop(); serr != nil {
					errs = append(errs, fmt.Errorf("rollback %s: %w", m.components[j].name, serr))
				}
			}
			return errors.Join(errs...)
		}
	}
	return nil
}

// StopAll 逆序停止全部组件，单个失败不影响其余组件。
func (m *LifecycleManager) StopAll() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for i := len(m.components) - 1; i >= 0; i-- {
		c := m.components[i]
		if err := c.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop component %s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

// CheckHealth 汇总所有不健康的组件。
func (m *LifecycleManager) CheckHealth() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for _, c := range m.components {
		if err := c.Health(); err != nil {
			errs = append(errs, fmt.Errorf("component %s unhealthy: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

// httpServerComponent 状态服务。Start 同步绑定端口，地址被占用时启动失败并触发回滚。
type httpServerComponent struct {
	handler http.Handler
	addr    string
	logger  *logger.Logger

	mu       sync.Mutex
	server   *http.Server
	boundTo  string
	serveErr error
}

func (h *httpServerComponent) Start(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.server != nil {
		return nil
	}
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", h.addr, err)
	}
	srv := &http.Server{
		Handler:           h.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	addr := ln.Addr().String()
	h.server = srv
	h.boundTo = addr
	h.serveErr = nil
	h.logger.Info("status server listening", zap.String("addr", addr))

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("status server stopped unexpectedly", zap.Error(err), zap.String("addr", addr))
			h.mu.Lock()
			h.serveErr = err
			h.mu.Unlock()
		}
	}()
	return nil
}

func (h *httpServerComponent) Stop() error {
	h.mu.Lock()
	srv, addr := h.server, h.boundTo
	h.server = nil
	h.mu.Unlock()

	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	h.logger.Info("status server stopped", zap.String("addr", addr))
	return nil
}

func (h *httpServerComponent) Health() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.serveErr != nil {
		return fmt.Errorf("serve: %w", h.serveErr)
	}
	if h.server == nil {
		return errors.New("not started")
	}
	return nil
}

// Addr 返回实际监听地址（addr 为 ":0" 时由系统分配）。
func (h *httpServerComponent) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.boundTo
}

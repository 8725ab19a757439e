package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher 监听配置文件变化。配置在启动时固定，合法的变更只会触发 onChange
// （由调用方请求优雅重启）；不合法的变更记录日志后忽略。
type Watcher struct {
	Path     string
	Debounce time.Duration
	Logger   *zap.Logger
}

// Start 阻塞监听直到 ctx 结束。监听所在目录以兼容编辑器的原子替换写入。
func (w Watcher) Start(ctx context.Context, onChange func(AppConfig)) error {
	if w.Debounce <= 0 {
		w.Debounce = 500 * time.Millisecond
	}
	lg := w.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	target, err := filepath.Abs(w.Path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", w.Path, err)
	}
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				pending = time.After(w.Debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			lg.Warn("config watcher error", zap.Error(err))
		case <-pending:
			pending = nil
			cfg, err := LoadWithEnvOverrides(w.Path)
			if err != nil {
				lg.Warn("config changed but is invalid, ignoring", zap.String("path", w.Path), zap.Error(err))
				continue
			}
			lg.Info("config changed", zap.String("path", w.Path))
			if onChange != nil {
				onChange(cfg)
			}
		}
	}
}

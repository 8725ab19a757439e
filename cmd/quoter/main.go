package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"pmm-adaptive/config"
	"pmm-adaptive/internal/container"
)

// exitRestart 配置文件变更后以非零码退出，由 systemd Restart=on-failure 拉起。
const exitRestart = 3

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	envFile := flag.String("env", ".env", "环境变量文件，不存在时忽略")
	watch := flag.Bool("watch", true, "配置变更时退出以便重启")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatalf("加载 .env 失败: %v", err)
	}
	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	c, err := container.New(cfg)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	if err := c.Build(); err != nil {
		log.Fatalf("构建组件失败: %v", err)
	}
	lg := c.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		lg.Error("启动失败", zap.Error(err))
		_ = c.Stop()
		os.Exit(1)
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	restart := make(chan struct{}, 1)
	if *watch {
		w := config.Watcher{Path: *cfgPath, Logger: lg.Logger.Named("config")}
		go func() {
			err := w.Start(ctx, func(config.AppConfig) {
				lg.Warn("配置已变更，退出以重新加载", zap.String("path", *cfgPath))
				select {
				case restart <- struct{}{}:
				default:
				}
			})
			if err != nil && ctx.Err() == nil {
				lg.Warn("配置监听退出", zap.Error(err))
			}
		}()
	}

	go watchdog(ctx, c, lg.Logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	code := 0
	select {
	case sig := <-quit:
		lg.Info("收到退出信号", zap.String("signal", sig.String()))
	case <-restart:
		code = exitRestart
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	cancel()
	if err := c.Stop(); err != nil {
		log.Printf("停止时出错: %v", err)
		if code == 0 {
			code = 1
		}
	}
	os.Exit(code)
}

// watchdog 在 systemd 启用 WatchdogSec 时按一半周期上报存活；组件不健康时停止上报。
func watchdog(ctx context.Context, c *container.Container, lg *zap.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.HealthCheck(); err != nil {
				lg.Warn("health check failed, skipping watchdog ping", zap.Error(err))
				continue
			}
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}

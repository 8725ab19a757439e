package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pmm-adaptive/config"
	"pmm-adaptive/infrastructure/logger"
	"pmm-adaptive/infrastructure/monitor"
	"pmm-adaptive/inventory"
	"pmm-adaptive/sim"
)

// 离线模拟：随机游走成交驱动 K 线、撮合与报价，使用模拟时钟，不连接交易所。
func main() {
	cfgPath := flag.String("config", "", "配置文件路径（为空时使用默认参数）")
	duration := flag.Duration("duration", 6*time.Hour, "模拟时长")
	warmup := flag.Int("warmup", 0, "预热 K 线数量（0 表示窗口容量）")
	seed := flag.Int64("seed", 1, "随机种子")
	vol := flag.Float64("vol", 0.0008, "每笔成交的价格波动率")
	step := flag.Duration("step", time.Second, "引擎 Tick 步长")
	verbose := flag.Bool("v", false, "输出结构化日志")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.LoadWithEnvOverrides(*cfgPath)
		if err != nil {
			log.Fatalf("加载配置失败: %v", err)
		}
	}
	interval, err := cfg.CandleInterval()
	if err != nil {
		log.Fatalf("K 线周期无效: %v", err)
	}

	lg := logger.NewNop()
	if *verbose {
		lcfg := cfg.Log
		lcfg.Outputs = []string{"stdout"}
		if lg, err = logger.New(lcfg); err != nil {
			log.Fatalf("初始化日志失败: %v", err)
		}
		defer lg.Close()
	}

	rc := sim.DefaultRunnerConfig()
	rc.Symbol = cfg.Market.Pair
	rc.Exchange = cfg.Market.Exchange
	rc.Interval = interval
	rc.Step = *step
	rc.WindowCapacity = cfg.Market.WindowCapacity
	rc.Indicators = cfg.IndicatorConfig()
	rc.Strategy = cfg.EngineConfig()
	rc.Constraints = cfg.SymbolConstraints()
	rc.InventoryMode = inventory.Mode(cfg.Inventory.Mode)
	if *cfgPath != "" {
		rc.Initial = inventory.Balances{Base: cfg.Paper.Base, Quote: cfg.Paper.Quote}
	}
	rc.Market.Seed = *seed
	rc.Market.Volatility = *vol
	rc.Logger = lg
	rc.Monitor = monitor.New(monitor.DefaultConfig())

	r, err := sim.BuildRunner(rc)
	if err != nil {
		log.Fatalf("构建模拟失败: %v", err)
	}
	n := *warmup
	if n <= 0 {
		n = rc.WindowCapacity
	}
	if err := r.Warmup(n); err != nil {
		log.Fatalf("预热失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rep, err := r.Run(ctx, *duration)
	if err != nil {
		log.Printf("模拟中断: %v", err)
	}
	printReport(rep)
}

func printReport(rep sim.Report) {
	fmt.Printf("ticks=%d quoted=%d degenerate=%d not_ready=%d\n", rep.Ticks, rep.Quoted, rep.Degenerate, rep.NotReady)
	fmt.Printf("candles=%d fills=%d last_price=%.4f\n", rep.Candles, rep.Fills, rep.LastPrice)
	fmt.Printf("start base=%.6f quote=%.4f value=%.4f\n", rep.Start.Base, rep.Start.Quote, rep.StartValue)
	fmt.Printf("end   base=%.6f quote=%.4f value=%.4f\n", rep.End.Base, rep.End.Quote, rep.EndValue)
	if rep.StartValue > 0 {
		fmt.Printf("pnl=%.4f (%.2f%%)\n", rep.EndValue-rep.StartValue, (rep.EndValue/rep.StartValue-1)*100)
	}
	pt := rep.PostTrade
	fmt.Printf("markout fills=%d/%d adverse=%.1f%% short=%.2fbps long=%.2fbps\n",
		pt.AnalyzedFills, pt.TotalFills, pt.AdverseSelectionRate*100, pt.AvgMarkoutShort*10000, pt.AvgMarkoutLong*10000)
}

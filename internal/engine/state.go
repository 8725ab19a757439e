package engine

import (
	"time"

	"pmm-adaptive/indicator"
	"pmm-adaptive/market"
	"pmm-adaptive/strategy"
)

// Phase 报价周期所处阶段
type Phase int

const (
	// PhaseIdle 等待下一次周期
	PhaseIdle Phase = iota
	// PhaseRefreshing 撤旧单、刷新指标
	PhaseRefreshing
	// PhaseQuoting 构建并提交报价
	PhaseQuoting
)

// String 返回阶段名称
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseRefreshing:
		return "REFRESHING"
	case PhaseQuoting:
		return "QUOTING"
	default:
		return "UNKNOWN"
	}
}

// RunState 引擎生命周期状态
type RunState int

const (
	RunStateIdle RunState = iota
	RunStateRunning
	RunStateStopped
)

// String 返回状态名称
func (s RunState) String() string {
	switch s {
	case RunStateIdle:
		return "IDLE"
	case RunStateRunning:
		return "RUNNING"
	case RunStateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Outcome 一次 Tick 调用的结果
type Outcome int

const (
	// OutcomeSkipped 未到下一次周期时间
	OutcomeSkipped Outcome = iota
	// OutcomeBusy 已有周期在执行，本次调用被丢弃
	OutcomeBusy
	// OutcomeNotReady 无 K 线/连接未就绪/无盘口
	OutcomeNotReady
	// OutcomeQuoted 周期完成并提交了报价（可能部分被拒）
	OutcomeQuoted
	// OutcomeDegenerate 买价 >= 卖价，本周期不报价
	OutcomeDegenerate
	// OutcomeFailed 输入无效或依赖报错，本周期不报价
	OutcomeFailed
)

// String 返回结果名称，同时用作指标标签
func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeBusy:
		return "busy"
	case OutcomeNotReady:
		return "not_ready"
	case OutcomeQuoted:
		return "quoted"
	case OutcomeDegenerate:
		return "degenerate"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State 是单个交易对的可变策略状态，通过 Orchestrator.State 以拷贝形式读取。
type State struct {
	Phase       Phase
	Snapshot    indicator.Snapshot
	HasSnapshot bool
	Degraded    bool // 无指标降级模式

	Interval    time.Duration
	NextCycleAt time.Time
	LastCycleAt time.Time
	LastOutcome Outcome
	LastError   string

	LastTop      market.Top
	LastDecision strategy.Decision
	HasDecision  bool

	Stats Statistics
}

// Statistics 引擎统计信息
type Statistics struct {
	StartTime    time.Time
	TotalTicks   int64
	TotalCycles  int64
	TotalQuotes  int64
	TotalOrders  int64
	TotalRejects int64
	TotalFills   int64
	TotalErrors  int64
}

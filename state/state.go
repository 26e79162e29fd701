// state/state.go
package state

import (
	"errors"
	"sync"
)

// Phase 会话所处的阶段
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseModeSelect Phase = "mode_select"
	PhaseLobby      Phase = "lobby"
	PhaseInProgress Phase = "in_progress"
	PhaseFinished   Phase = "finished"
)

// ErrTransitionNotAllowed is returned when a phase transition is not allowed.
var ErrTransitionNotAllowed = errors.New("phase transition not allowed")

// Machine 会话阶段状态机。合法链为
// idle -> mode_select -> lobby -> in_progress -> finished -> idle，
// finished 永远不会直接回到 lobby。Reset 是唯一的越表通道，留给
// 致命错误的强制恢复。
type Machine struct {
	current     Phase
	transitions map[Phase]map[Phase]bool
	mutex       sync.RWMutex
}

// NewSessionMachine 创建预装会话转换表的状态机
func NewSessionMachine() *Machine {
	m := &Machine{
		current:     PhaseIdle,
		transitions: make(map[Phase]map[Phase]bool),
	}

	m.AddTransition(PhaseIdle, PhaseModeSelect)
	m.AddTransition(PhaseModeSelect, PhaseLobby)
	m.AddTransition(PhaseModeSelect, PhaseIdle)
	m.AddTransition(PhaseLobby, PhaseInProgress)
	m.AddTransition(PhaseLobby, PhaseIdle)
	m.AddTransition(PhaseInProgress, PhaseFinished)
	m.AddTransition(PhaseInProgress, PhaseIdle)
	m.AddTransition(PhaseFinished, PhaseIdle)

	return m
}

// AddTransition 登记一条合法转换
func (m *Machine) AddTransition(from, to Phase) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.transitions[from]; !exists {
		m.transitions[from] = make(map[Phase]bool)
	}
	m.transitions[from][to] = true
}

// Current 返回当前阶段
func (m *Machine) Current() Phase {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

// Transition moves to the next phase if the transition table allows
// it; the current phase is left untouched otherwise.
func (m *Machine) Transition(to Phase) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if to == m.current {
		return nil
	}
	if allowed, exists := m.transitions[m.current]; !exists || !allowed[to] {
		return ErrTransitionNotAllowed
	}

	m.current = to
	return nil
}

// Reset forces the machine back to idle from any phase. This is the
// blunt recovery path for fatal server errors: the remote side is the
// source of truth, so the local chain is abandoned wholesale.
func (m *Machine) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.current = PhaseIdle
}

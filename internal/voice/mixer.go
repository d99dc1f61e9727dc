package voice

import (
	"math"
	"slices"
	"sync"
)

// Mixer sums one frame from every subscribed task. Connections drive it
// from their send loop.
type Mixer struct {
	mu    sync.Mutex
	tasks []*Task
	frame []int16
	acc   []int32
}

func NewMixer() *Mixer {
	return &Mixer{
		frame: make([]int16, FrameSamples),
		acc:   make([]int32, FrameSamples),
	}
}

func (m *Mixer) Add(t *Task) {
	m.mu.Lock()
	m.tasks = append(m.tasks, t)
	m.mu.Unlock()
}

// Len returns the number of tasks still contributing.
func (m *Mixer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Next writes the mixed frame into out and reports whether any task
// contributed. It never waits on a decoder: a task with no frame ready sits
// this frame out. Tasks that end or fail are dropped from the mix.
func (m *Mixer) Next(out []int16) bool {
	m.mu.Lock()
	tasks := slices.Clone(m.tasks)
	m.mu.Unlock()

	clear(m.acc)
	var active int
	var done []*Task
	for _, t := range tasks {
		ready, err := t.NextFrame(m.frame)
		if err != nil {
			done = append(done, t)
			continue
		}
		if !ready {
			continue
		}
		active++
		for i, s := range m.frame {
			m.acc[i] += int32(s)
		}
		if t.State() != TaskPlaying {
			done = append(done, t)
		}
	}

	if len(done) > 0 {
		m.mu.Lock()
		m.tasks = slices.DeleteFunc(m.tasks, func(t *Task) bool { return slices.Contains(done, t) })
		m.mu.Unlock()
	}

	if active == 0 {
		return false
	}
	for i, v := range m.acc {
		out[i] = clip(v)
	}
	return true
}

// Reset drops every task without stopping it.
func (m *Mixer) Reset() {
	m.mu.Lock()
	m.tasks = nil
	m.mu.Unlock()
}

func clip(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

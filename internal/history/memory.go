package history

import (
	"context"
	"errors"
	"sync"

	"github.com/valpere/tandem/internal/pipeline"
)

// Memory keeps runs in a slice guarded by a mutex.
type Memory struct {
	mu   sync.RWMutex
	runs []*pipeline.Run
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(_ context.Context, run *pipeline.Run) error {
	if run == nil {
		return errors.New("nil run")
	}
	stored := *run
	stored.Task = normalizeText(run.Task)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, &stored)
	return nil
}

// Runs returns a snapshot of the history in append order.
func (m *Memory) Runs(_ context.Context) ([]*pipeline.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*pipeline.Run, len(m.runs))
	copy(out, m.runs)
	return out, nil
}

func (m *Memory) Stats(ctx context.Context) (Statistics, error) {
	runs, err := m.Runs(ctx)
	if err != nil {
		return Statistics{}, err
	}
	return Summarize(runs), nil
}

func (m *Memory) Close() error {
	return nil
}

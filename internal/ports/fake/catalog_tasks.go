package fake

import (
	"context"
	"errors"

	"github.com/selectia/selectia-core/internal/ports"
)

var errNotFound = errors.New("fake: not found")

func (c *Catalog) CreateTask(_ context.Context, payload []byte) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextTaskID++
	id := c.nextTaskID
	c.tasks[id] = ports.TaskRow{ID: id, Status: ports.TaskQueued, Payload: append([]byte(nil), payload...)}
	c.taskOrder = append(c.taskOrder, id)
	return id, nil
}

// DequeueTask atomically transitions the oldest queued row to processing,
// mirroring the single-row filtered UPDATE the real catalog performs.
func (c *Catalog) DequeueTask(_ context.Context) (ports.TaskRow, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.taskOrder {
		row, ok := c.tasks[id]
		if !ok || row.Status != ports.TaskQueued {
			continue
		}
		row.Status = ports.TaskProcessing
		c.tasks[id] = row
		return row, true, nil
	}
	return ports.TaskRow{}, false, nil
}

func (c *Catalog) DeleteTask(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tasks, id)
	for i, v := range c.taskOrder {
		if v == id {
			c.taskOrder = append(c.taskOrder[:i], c.taskOrder[i+1:]...)
			break
		}
	}
	return nil
}

// SanitizeTaskStatus resets every processing row to queued. Called once at
// scheduler startup to recover from a crash mid-task.
func (c *Catalog) SanitizeTaskStatus(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	reset := 0
	for id, row := range c.tasks {
		if row.Status == ports.TaskProcessing {
			row.Status = ports.TaskQueued
			c.tasks[id] = row
			reset++
		}
	}
	return reset, nil
}

func (c *Catalog) GetTasks(_ context.Context) ([]ports.TaskRow, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ports.TaskRow, 0, len(c.taskOrder))
	for _, id := range c.taskOrder {
		out = append(out, c.tasks[id])
	}
	return out, nil
}

func (c *Catalog) GetTask(_ context.Context, id int64) (ports.TaskRow, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	row, ok := c.tasks[id]
	return row, ok, nil
}

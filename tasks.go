package labbcat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/five82/labbcat/envelope"
	"github.com/five82/labbcat/model"
	"github.com/five82/labbcat/transport"
)

func checkTaskID(id string) error {
	if _, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64); err != nil {
		return &StoreError{Kind: KindInvalidTaskID, Message: "invalid task id " + strconv.Quote(id)}
	}
	return nil
}

// TaskStatus fetches the status of one server task.
func (s *Session) TaskStatus(ctx context.Context, id string) (*model.TaskStatus, error) {
	if err := checkTaskID(id); err != nil {
		return nil, err
	}
	var status model.TaskStatus
	env, err := s.do(ctx, call{
		op:     "task status",
		url:    s.endpoint("thread"),
		params: transport.Params{}.Add("threadId", strings.TrimSpace(id)),
	}, &status)
	if err != nil {
		if taskMissing(err) {
			return nil, &StoreError{Kind: KindTaskNotFound, Message: "task not found: " + id, Err: err}
		}
		return nil, err
	}
	if env.ModelNull() {
		return nil, &StoreError{Kind: KindTaskNotFound, Message: "task not found: " + id}
	}
	if status.ThreadID == "" {
		status.ThreadID = model.Text(strings.TrimSpace(id))
	}
	return &status, nil
}

// taskMissing reports a server answer meaning the task does not exist: a
// 404, or an envelope that carries errors with a success status.
func taskMissing(err error) bool {
	var re *envelope.ResponseError
	if !errors.As(err, &re) || errors.Is(err, envelope.ErrMalformed) {
		return false
	}
	return re.HTTPStatus == http.StatusNotFound || (re.HTTPStatus >= 200 && re.HTTPStatus < 300)
}

// WaitForTask polls a task until it stops running, timeout elapses
// (0 waits indefinitely), or the session is cancelled. Polls are spaced by
// the server's refreshSeconds, or the session default when it gives none.
//
// Running out of time is not an error: the last observed status is
// returned and its Running field tells the caller whether the task ended.
// When ctx ends the last status is returned together with ctx.Err().
func (s *Session) WaitForTask(ctx context.Context, id string, timeout time.Duration) (*model.TaskStatus, error) {
	op := s.begin()
	defer s.end(op)

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	status, err := s.TaskStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	for status.Running {
		if op.stopped() {
			return status, nil
		}
		wait := status.RefreshInterval(s.refresh)
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				s.logger.Debug("wait timed out", zap.String("task", id), zap.Int("percent", status.PercentComplete))
				return status, nil
			}
			wait = min(wait, remaining)
		}
		if err := op.sleep(ctx, wait); err != nil {
			return status, err
		}
		if op.stopped() {
			return status, nil
		}
		next, err := s.TaskStatus(ctx, id)
		if err != nil {
			return status, err
		}
		status = next
	}
	return status, nil
}

// CancelTask asks the server to stop a task. Cancelling a task that has
// already finished, or that the server has already discarded, succeeds.
func (s *Session) CancelTask(ctx context.Context, id string) error {
	return s.taskCommand(ctx, "cancel task", id, "cancel")
}

// ReleaseTask frees the server's resources for a task. The task ID must not
// be used afterwards.
func (s *Session) ReleaseTask(ctx context.Context, id string) error {
	return s.taskCommand(ctx, "release task", id, "release")
}

func (s *Session) taskCommand(ctx context.Context, op, id, command string) error {
	if err := checkTaskID(id); err != nil {
		return err
	}
	err := s.get(ctx, op, s.endpoint("threads"),
		transport.Params{}.Add("threadId", strings.TrimSpace(id)).Add("command", command), nil)
	if err != nil && command == "cancel" && envelope.IsNotFound(err) {
		s.logger.Debug("cancel of unknown task ignored", zap.String("task", id))
		return nil
	}
	return err
}

// Tasks returns every task the server knows, keyed by task ID.
func (s *Session) Tasks(ctx context.Context) (map[string]model.TaskStatus, error) {
	tasks := map[string]model.TaskStatus{}
	if err := s.get(ctx, "list tasks", s.endpoint("threads"), nil, &tasks); err != nil {
		return nil, err
	}
	for id, t := range tasks {
		if t.ThreadID == "" {
			t.ThreadID = model.Text(id)
			tasks[id] = t
		}
	}
	return tasks, nil
}

// TaskResult downloads a finished task's result URL into dir (a new
// directory under the system temp directory when empty), replaying the
// session's authorization. It returns the local path.
func (s *Session) TaskResult(ctx context.Context, status *model.TaskStatus, dir string) (string, error) {
	if status == nil || strings.TrimSpace(status.ResultURL) == "" {
		return "", &ValidationError{Op: "task result", Reason: "task has no result url"}
	}
	dir, err := scratchDir(dir, "labbcat-result-")
	if err != nil {
		return "", fmt.Errorf("task result: create dir: %w", err)
	}
	op := s.begin()
	defer s.end(op)
	return s.download(ctx, op, download{
		op:       "task result",
		url:      status.ResultURL,
		dir:      dir,
		fallback: "task-" + status.ID(),
	})
}

// Task is a handle on one server task.
type Task struct {
	s  *Session
	id string
}

// Task returns a handle for an existing task ID.
func (s *Session) Task(id string) *Task {
	return &Task{s: s, id: strings.TrimSpace(id)}
}

// ID returns the task ID.
func (t *Task) ID() string { return t.id }

// Status fetches the current status.
func (t *Task) Status(ctx context.Context) (*model.TaskStatus, error) {
	return t.s.TaskStatus(ctx, t.id)
}

// Wait polls until the task ends or timeout elapses; see Session.WaitForTask.
func (t *Task) Wait(ctx context.Context, timeout time.Duration) (*model.TaskStatus, error) {
	return t.s.WaitForTask(ctx, t.id, timeout)
}

// Cancel asks the server to stop the task.
func (t *Task) Cancel(ctx context.Context) error {
	return t.s.CancelTask(ctx, t.id)
}

// Release frees the task on the server.
func (t *Task) Release(ctx context.Context) error {
	return t.s.ReleaseTask(ctx, t.id)
}

package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/autopress/pkg/logger"
)

// Status 生成任务状态
type Status string

const (
	StatusCreated   Status = "created"
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusTimedOut  Status = "timed_out"
)

// Terminal 是否已到终态
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	}
	return false
}

var (
	ErrMissingAssistant   = errors.New("assistant ID is not configured")
	ErrRunFailed          = errors.New("assistant run failed")
	ErrRunCancelled       = errors.New("assistant run cancelled")
	ErrRunExpired         = errors.New("assistant run expired")
	ErrRunTimedOut        = errors.New("assistant run timed out")
	ErrNoAssistantMessage = errors.New("assistant returned no message")
)

const (
	DefaultPollInterval = time.Second
	DefaultMaxAttempts  = 120
)

// remoteStatus 把远端 run 状态映射为任务状态
// 未知状态视为仍在运行
func remoteStatus(s string) Status {
	switch s {
	case "queued":
		return StatusQueued
	case "completed":
		return StatusCompleted
	case "failed", "incomplete":
		return StatusFailed
	case "cancelled", "cancelling":
		return StatusCancelled
	case "expired":
		return StatusTimedOut
	default:
		return StatusRunning
	}
}

// Job 单次 run 的跟踪信息（不落库）
type Job struct {
	ThreadID string
	RunID    string
	Status   Status
	Attempts int
	Output   string
}

// SleepFunc 等待 d 或直到 ctx 结束
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Runner 驱动单条 prompt：创建 → 轮询 → 取结果
type Runner struct {
	API          API
	AssistantID  string
	PollInterval time.Duration
	MaxAttempts  int
	Sleep        SleepFunc
}

func NewRunner(api API, assistantID string, pollInterval time.Duration, maxAttempts int) *Runner {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Runner{
		API:          api,
		AssistantID:  assistantID,
		PollInterval: pollInterval,
		MaxAttempts:  maxAttempts,
		Sleep:        sleepContext,
	}
}

// Run 提交 prompt 并轮询直到终态
// 返回的 job 携带最新一条助手消息文本
func (r *Runner) Run(ctx context.Context, prompt string) (*Job, error) {
	if r.AssistantID == "" {
		return nil, ErrMissingAssistant
	}

	threadID, err := r.API.CreateThread(ctx)
	if err != nil {
		return nil, err
	}
	job := &Job{ThreadID: threadID, Status: StatusCreated}

	if err := r.API.PostMessage(ctx, threadID, prompt); err != nil {
		return job, err
	}
	runID, err := r.API.CreateRun(ctx, threadID, r.AssistantID)
	if err != nil {
		return job, err
	}
	job.RunID = runID
	job.Status = StatusQueued

	log := logger.With(zap.String("thread_id", threadID), zap.String("run_id", runID))

	for job.Attempts < r.MaxAttempts {
		if err := r.Sleep(ctx, r.PollInterval); err != nil {
			return job, err
		}
		job.Attempts++

		run, err := r.API.GetRun(ctx, threadID, runID)
		if err != nil {
			return job, err
		}
		job.Status = remoteStatus(run.Status)

		switch job.Status {
		case StatusCompleted:
			log.Debug("assistant run completed", zap.Int("polls", job.Attempts))
			return job, r.collect(ctx, job)
		case StatusFailed:
			return job, fmt.Errorf("%w: %s", ErrRunFailed, runErrorMessage(run))
		case StatusCancelled:
			return job, fmt.Errorf("%w: %s", ErrRunCancelled, runErrorMessage(run))
		case StatusTimedOut:
			return job, fmt.Errorf("%w: %s", ErrRunExpired, runErrorMessage(run))
		}
	}

	job.Status = StatusTimedOut
	return job, fmt.Errorf("%w after %d polls", ErrRunTimedOut, job.Attempts)
}

func (r *Runner) collect(ctx context.Context, job *Job) error {
	msgs, err := r.API.ListMessages(ctx, job.ThreadID)
	if err != nil {
		return err
	}
	// messages are listed newest first
	for _, m := range msgs {
		if m.Role == "assistant" && strings.TrimSpace(m.Text) != "" {
			job.Output = m.Text
			return nil
		}
	}
	return ErrNoAssistantMessage
}

func runErrorMessage(run *Run) string {
	if run.LastError == nil || run.LastError.Message == "" {
		return "status " + run.Status
	}
	if run.LastError.Code != "" {
		return run.LastError.Code + ": " + run.LastError.Message
	}
	return run.LastError.Message
}

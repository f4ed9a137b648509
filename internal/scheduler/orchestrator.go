// Package scheduler runs a spoken request through parse, conflict check and
// creation, one request at a time against the shared calendar session.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	appLog "voicecal/internal/log"
	"voicecal/internal/metrics"
	"voicecal/internal/model"
	"voicecal/internal/timeparse"
	"voicecal/internal/view"
)

const (
	msgCreated = "日程已创建成功。"
	msgFailed  = "创建日程失败，请稍后再试。"
	msgBusy    = "系统繁忙，请稍后再试。"
)

// ConflictMessage restates the proposed interval to the user.
func ConflictMessage(iv model.Interval) string {
	return fmt.Sprintf("您在 %s 到 %s 已有日程，请换个时间。",
		iv.Start.Format("01月02日 15:04"), iv.End.Format("15:04"))
}

// ConflictChecker is satisfied by *conflict.Detector.
type ConflictChecker interface {
	CheckConflict(ctx context.Context, session view.Session, day, start, end time.Time) model.ConflictVerdict
}

// EventCreator is satisfied by *calendar.Controller.
type EventCreator interface {
	CreateEvent(ctx context.Context, session view.Session, title string, start, end time.Time) model.MutationOutcome
}

// Options configures an Orchestrator.
type Options struct {
	Parser  *timeparse.Parser
	Session view.Session
	Checker ConflictChecker
	Creator EventCreator

	// RequestTimeout bounds one request once it holds the session.
	RequestTimeout time.Duration

	Metrics *metrics.Metrics
}

// Orchestrator serializes requests on the session. Waiters are served in
// arrival order.
type Orchestrator struct {
	opts    Options
	gate    *semaphore.Weighted
	waiting atomic.Int64
}

func New(opts Options) *Orchestrator {
	if opts.Parser == nil {
		opts.Parser = timeparse.NewParser(time.Hour)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Minute
	}
	return &Orchestrator{
		opts: opts,
		gate: semaphore.NewWeighted(1),
	}
}

// Waiting is the number of parsed requests queued for the session.
func (o *Orchestrator) Waiting() int {
	return int(o.waiting.Load())
}

// Parser is the parser used for every request.
func (o *Orchestrator) Parser() *timeparse.Parser {
	return o.opts.Parser
}

// Handle always returns exactly one of the four final statuses. Once a
// request holds the session, cancelling ctx no longer interrupts it; only
// RequestTimeout does.
func (o *Orchestrator) Handle(ctx context.Context, req model.ScheduleVoiceRequest) model.ScheduleVoiceResponse {
	begin := time.Now()
	resp := model.ScheduleVoiceResponse{RequestID: uuid.NewString()}
	defer func() {
		o.opts.Metrics.ObserveRequest(string(resp.Status), time.Since(begin))
		appLog.Info("request done",
			"id", resp.RequestID,
			"status", string(resp.Status),
			"took", time.Since(begin).Round(time.Millisecond),
		)
	}()

	appLog.Info("request received", "id", resp.RequestID, "text", req.RawText)

	sr, err := o.opts.Parser.Parse(req.RawText)
	if err != nil {
		var inc *timeparse.IncompleteError
		if errors.As(err, &inc) {
			resp.Status = model.StatusIncomplete
			resp.Message = inc.Prompt
			for _, f := range inc.Missing {
				resp.Missing = append(resp.Missing, string(f))
			}
			return resp
		}
		resp.Status = model.StatusError
		resp.Message = msgFailed
		return resp
	}

	iv := sr.Interval()
	resp.Title = sr.Title
	resp.ProposedInterval = &iv
	appLog.Info("request parsed",
		"id", resp.RequestID,
		"title", sr.Title,
		"start", sr.Start.Format(time.RFC3339),
		"end", sr.End.Format(time.RFC3339),
	)

	o.waiting.Add(1)
	o.opts.Metrics.Queued(1)
	err = o.gate.Acquire(ctx, 1)
	o.opts.Metrics.Queued(-1)
	o.waiting.Add(-1)
	if err != nil {
		appLog.Warn("request abandoned while queued", "id", resp.RequestID, "err", err)
		resp.Status = model.StatusError
		resp.Message = msgBusy
		return resp
	}
	defer o.gate.Release(1)

	work, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.RequestTimeout)
	defer cancel()

	day := time.Date(sr.Start.Year(), sr.Start.Month(), sr.Start.Day(), 0, 0, 0, 0, sr.Start.Location())
	v := o.opts.Checker.CheckConflict(work, o.opts.Session, day, sr.Start, sr.End)
	if v.Conflict {
		if v.Err != nil {
			appLog.Warn("conflict check failed closed", "id", resp.RequestID, "err", v.Err)
		}
		resp.Status = model.StatusConflict
		resp.Message = ConflictMessage(iv)
		resp.Overlapping = v.Overlapping
		return resp
	}

	out := o.opts.Creator.CreateEvent(work, o.opts.Session, sr.Title, sr.Start, sr.End)
	resp.ArtifactPath = out.ArtifactPath
	if !out.Success {
		resp.Status = model.StatusError
		resp.Message = msgFailed
		return resp
	}
	for _, w := range out.Warnings {
		appLog.Warn("created with warning", "id", resp.RequestID, "warning", w)
	}
	resp.Status = model.StatusOK
	resp.Message = msgCreated
	return resp
}

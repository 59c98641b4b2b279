package background

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"maestro-builder/backend/internal/logging"
	"maestro-builder/backend/internal/supervisor"
	"maestro-builder/backend/pkg/models"
)

// RequestStatus is the lifecycle state of one background request.
type RequestStatus string

const (
	StatusPending RequestStatus = "PENDING"
	StatusDone    RequestStatus = "DONE"
	StatusError   RequestStatus = "ERROR"
)

// ErrorInfo describes a failed background run.
type ErrorInfo struct {
	Message string `json:"message"`
}

// Record is the stored outcome of one background request. Exactly one of
// Result and Err is set once the status is terminal.
type Record struct {
	RequestID string
	ChatID    string
	Status    RequestStatus
	Result    *models.PipelineResult
	Err       *ErrorInfo
}

type job struct {
	requestID string
	chatID    string
	content   string
}

// Processor runs orchestration requests on a fixed pool of workers. Submit
// returns immediately with a request id; the terminal outcome is held until
// the first successful poll consumes it.
type Processor struct {
	sup    *supervisor.Supervisor
	logger *logging.Logger
	status *StatusLog
	logDir string

	jobs chan job
	wg   sync.WaitGroup

	mu      sync.Mutex
	records map[string]*Record
}

// NewProcessor creates a Processor with the given worker count and starts
// the pool. logDir, when non-empty, receives a per-chat progress log file
// that the SSE tail channel can follow.
func NewProcessor(sup *supervisor.Supervisor, logger *logging.Logger, workers int, logDir string) *Processor {
	if workers <= 0 {
		workers = 4
	}
	p := &Processor{
		sup:     sup,
		logger:  logger,
		status:  NewStatusLog(),
		logDir:  logDir,
		jobs:    make(chan job, 256),
		records: make(map[string]*Record),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// StatusLog exposes the per-chat progress log.
func (p *Processor) StatusLog() *StatusLog {
	return p.status
}

// Submit enqueues one request and returns its id without waiting.
func (p *Processor) Submit(content, chatID string) string {
	requestID := uuid.New().String()

	p.mu.Lock()
	p.records[requestID] = &Record{
		RequestID: requestID,
		ChatID:    chatID,
		Status:    StatusPending,
	}
	p.mu.Unlock()

	p.jobs <- job{requestID: requestID, chatID: chatID, content: content}
	return requestID
}

// TakeResult returns the terminal record for the request id and removes it,
// so a second poll for the same id comes back empty. Pending or unknown
// requests yield nil.
func (p *Processor) TakeResult(requestID string) *Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	record, ok := p.records[requestID]
	if !ok || record.Status == StatusPending {
		return nil
	}
	delete(p.records, requestID)
	return record
}

// Close stops accepting work and waits for in-flight runs to finish.
func (p *Processor) Close() {
	close(p.jobs)
	p.wg.Wait()
}

func (p *Processor) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.run(j)
	}
}

func (p *Processor) run(j job) {
	sink := p.sinkFor(j.chatID)
	sink("Processing request "+j.requestID, "info")

	// Background runs are not cancellable; they run to completion even
	// when no poller is listening.
	result, err := p.sup.WithSink(sink).ProcessWithFallback(context.Background(), j.content, j.chatID)

	p.mu.Lock()
	record := p.records[j.requestID]
	if record != nil && record.Status == StatusPending {
		if err != nil {
			record.Status = StatusError
			record.Err = &ErrorInfo{Message: err.Error()}
		} else {
			record.Status = StatusDone
			record.Result = result
		}
	}
	p.mu.Unlock()

	if err != nil {
		sink(fmt.Sprintf("Error occurred: %v", err), "error")
		return
	}
	sink("Request completed", "info")
}

// sinkFor binds a progress sink to one chat id: lines land in the status
// log, the console log, and (best effort) the chat's tailable log file.
func (p *Processor) sinkFor(chatID string) supervisor.Sink {
	return func(message, level string) {
		p.status.Append(chatID, message, level)
		switch level {
		case "error":
			p.logger.Error("[%s] %s", chatID, message)
		case "warning":
			p.logger.Warn("[%s] %s", chatID, message)
		default:
			p.logger.Info("[%s] %s", chatID, message)
		}
		p.appendLogFile(chatID, message, level)
	}
}

func (p *Processor) appendLogFile(chatID, message, level string) {
	if p.logDir == "" || chatID == "" {
		return
	}
	if err := os.MkdirAll(p.logDir, 0o755); err != nil {
		return
	}
	path := filepath.Join(p.logDir, chatID+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%s [%s] %s\n", time.Now().Format(time.RFC3339), level, message)
}

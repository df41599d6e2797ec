package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"go.uber.org/zap"
)

// Recorder appends execution history. It is fire-and-forget: a failure
// to record never fails the operation that produced the entry.
type Recorder interface {
	Record(entry *model.ExecutionLog)
}

var _ Recorder = new(logRecorder)

type logRecorder struct {
	dao persistence.ExecutionLogDao
}

func NewRecorder(dao persistence.ExecutionLogDao) Recorder {
	return &logRecorder{dao: dao}
}

func (r *logRecorder) Record(entry *model.ExecutionLog) {
	if entry.Id == "" {
		entry.Id = uuid.New().String()
	}
	if entry.ExecutionTime.IsZero() {
		entry.ExecutionTime = time.Now()
	}
	if err := r.dao.Append(entry); err != nil {
		logger.Error("error appending execution log",
			zap.String("instanceId", entry.FlowInstanceId),
			zap.String("type", string(entry.ExecutionType)),
			zap.Error(err))
	}
}

// NopRecorder drops entries; used when history is not wanted.
type NopRecorder struct{}

func (NopRecorder) Record(entry *model.ExecutionLog) {}

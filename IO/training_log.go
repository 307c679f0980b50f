package IO

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TrainingLog appends run_id,epoch,loss,elapsed_ms rows to a CSV file.
// A nil *TrainingLog is a valid no-op sink.
type TrainingLog struct {
	RunID string
	f     *os.File
	w     *csv.Writer
	start time.Time
}

func NewRunID() string {
	return uuid.New().String()
}

// OpenTrainingLog creates or truncates path. An empty path disables logging.
func OpenTrainingLog(path, runID string) (*TrainingLog, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create training log %s", path)
	}
	l := &TrainingLog{RunID: runID, f: f, w: csv.NewWriter(f), start: time.Now()}
	if err := l.w.Write([]string{"run_id", "epoch", "loss", "elapsed_ms"}); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "write training log header")
	}
	return l, nil
}

func (l *TrainingLog) Record(epoch int, loss float64) error {
	if l == nil {
		return nil
	}
	row := []string{
		l.RunID,
		strconv.Itoa(epoch),
		strconv.FormatFloat(loss, 'f', 6, 64),
		strconv.FormatInt(time.Since(l.start).Milliseconds(), 10),
	}
	return errors.Wrap(l.w.Write(row), "write training log row")
}

func (l *TrainingLog) Close() error {
	if l == nil {
		return nil
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.f.Close()
		return errors.Wrap(err, "flush training log")
	}
	return errors.Wrap(l.f.Close(), "close training log")
}

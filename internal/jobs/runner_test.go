package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mstepanov/cardpress/views-module/internal/domain/model"
)

// memJournal — in-memory журнал запусков для тестов.
type memJournal struct {
	mu      sync.Mutex
	runs    []*model.JobRun
	recErr  error
	listErr error
}

func (m *memJournal) Record(_ context.Context, run *model.JobRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recErr != nil {
		return m.recErr
	}
	cp := *run
	m.runs = append(m.runs, &cp)
	return nil
}

func (m *memJournal) ListByName(_ context.Context, jobName string, limit int) ([]*model.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*model.JobRun
	for i := len(m.runs) - 1; i >= 0 && len(result) < limit; i-- {
		if m.runs[i].JobName == jobName {
			cp := *m.runs[i]
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *memJournal) recorded() []*model.JobRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.JobRun(nil), m.runs...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRunner(commands map[string]string, timeout time.Duration, outputLimit int, journal *memJournal) *Runner {
	return NewRunner(commands, timeout, outputLimit, journal, testLogger())
}

func TestRun_Success(t *testing.T) {
	journal := &memJournal{}
	runner := newTestRunner(map[string]string{"greet": "echo привет"}, 5*time.Second, 4096, journal)

	run, err := runner.Run(context.Background(), "greet")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if run.Status != model.JobStatusSuccess {
		t.Errorf("ожидался статус success, получен %q", run.Status)
	}
	if run.ExitCode == nil || *run.ExitCode != 0 {
		t.Errorf("ожидался код завершения 0, получен %v", run.ExitCode)
	}
	if !strings.Contains(run.Stdout, "привет") {
		t.Errorf("stdout должен содержать вывод команды: %q", run.Stdout)
	}
	if _, err := uuid.Parse(run.RunID); err != nil {
		t.Errorf("run_id должен быть валидным UUID: %q", run.RunID)
	}
	if !run.FinishedAt.After(run.StartedAt) && !run.FinishedAt.Equal(run.StartedAt) {
		t.Error("finished_at не может предшествовать started_at")
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	journal := &memJournal{}
	runner := newTestRunner(map[string]string{"fail": "echo упало >&2; exit 3"}, 5*time.Second, 4096, journal)

	run, err := runner.Run(context.Background(), "fail")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if run.Status != model.JobStatusFailure {
		t.Errorf("ожидался статус failure, получен %q", run.Status)
	}
	if run.ExitCode == nil || *run.ExitCode != 3 {
		t.Errorf("ожидался код завершения 3, получен %v", run.ExitCode)
	}
	if !strings.Contains(run.Stderr, "упало") {
		t.Errorf("stderr должен содержать вывод команды: %q", run.Stderr)
	}
}

func TestRun_Timeout(t *testing.T) {
	journal := &memJournal{}
	runner := newTestRunner(map[string]string{"slow": "echo начало; sleep 30"}, 200*time.Millisecond, 4096, journal)

	start := time.Now()
	run, err := runner.Run(context.Background(), "slow")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("подвисшая команда должна убиваться по таймауту, прошло %v", elapsed)
	}
	if run.Status != model.JobStatusTimeout {
		t.Errorf("ожидался статус timeout, получен %q", run.Status)
	}
	if run.ExitCode != nil {
		t.Errorf("у убитого процесса нет кода завершения: %v", *run.ExitCode)
	}
	// Частичный вывод до таймаута сохраняется.
	if !strings.Contains(run.Stdout, "начало") {
		t.Errorf("stdout должен содержать частичный вывод: %q", run.Stdout)
	}
}

func TestRun_OutputTruncated(t *testing.T) {
	journal := &memJournal{}
	runner := newTestRunner(map[string]string{"noisy": "yes строка | head -n 2000"}, 5*time.Second, 1024, journal)

	run, err := runner.Run(context.Background(), "noisy")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(run.Stdout) > 1024 {
		t.Errorf("stdout должен быть усечён до лимита: %d байт", len(run.Stdout))
	}
	if run.Status != model.JobStatusSuccess {
		t.Errorf("усечение вывода не меняет статус: %q", run.Status)
	}
}

func TestRun_UnknownJob(t *testing.T) {
	runner := newTestRunner(map[string]string{"greet": "echo привет"}, 5*time.Second, 4096, &memJournal{})

	_, err := runner.Run(context.Background(), "missing")
	if !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("ожидалась ErrUnknownJob, получено %v", err)
	}
}

func TestRun_InProgress(t *testing.T) {
	journal := &memJournal{}
	runner := newTestRunner(map[string]string{"slow": "sleep 2"}, 10*time.Second, 4096, journal)

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		_, _ = runner.Run(context.Background(), "slow")
		close(done)
	}()

	<-started
	// Даём первой горутине захватить слот выполнения.
	deadline := time.After(2 * time.Second)
	for {
		_, err := runner.Run(context.Background(), "slow")
		if errors.Is(err, ErrJobInProgress) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("повторный запуск должен возвращать ErrJobInProgress")
		case <-time.After(10 * time.Millisecond):
		}
	}

	<-done
}

func TestRun_JournalErrorNonFatal(t *testing.T) {
	journal := &memJournal{recErr: errors.New("connection refused")}
	runner := newTestRunner(map[string]string{"greet": "echo привет"}, 5*time.Second, 4096, journal)

	// Журнал — best effort: результат возвращается несмотря на ошибку записи.
	run, err := runner.Run(context.Background(), "greet")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Status != model.JobStatusSuccess {
		t.Errorf("ожидался статус success, получен %q", run.Status)
	}
}

func TestRun_RecordsToJournal(t *testing.T) {
	journal := &memJournal{}
	runner := newTestRunner(map[string]string{"greet": "echo привет"}, 5*time.Second, 4096, journal)

	run, err := runner.Run(context.Background(), "greet")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	recorded := journal.recorded()
	if len(recorded) != 1 {
		t.Fatalf("ожидалась 1 запись в журнале, получено %d", len(recorded))
	}
	if recorded[0].RunID != run.RunID {
		t.Errorf("журнал должен содержать тот же run_id: %q != %q", recorded[0].RunID, run.RunID)
	}
}

func TestHas(t *testing.T) {
	runner := newTestRunner(map[string]string{"greet": "echo привет"}, time.Second, 4096, &memJournal{})

	if !runner.Has("greet") {
		t.Error("сконфигурированное задание должно находиться")
	}
	if runner.Has("missing") {
		t.Error("несконфигурированное задание не должно находиться")
	}
}

func TestCappedBuffer(t *testing.T) {
	buf := newCappedBuffer(8)

	n, err := buf.Write([]byte("0123456789"))
	if err != nil {
		t.Fatalf("Write не должен возвращать ошибку: %v", err)
	}
	// Write сообщает полную длину, чтобы не прерывать pipe процесса.
	if n != 10 {
		t.Errorf("Write должен подтверждать весь вход: %d", n)
	}
	if got := buf.String(); got != "01234567" {
		t.Errorf("ожидалось усечение до 8 байт, получено %q", got)
	}

	// Последующие записи после заполнения лимита отбрасываются.
	if _, err := buf.Write([]byte("extra")); err != nil {
		t.Fatalf("Write после лимита: %v", err)
	}
	if got := buf.String(); got != "01234567" {
		t.Errorf("лимит не должен превышаться: %q", got)
	}
}

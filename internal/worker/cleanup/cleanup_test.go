package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockSessionExpirer はSessionExpirerのモック実装。
type mockSessionExpirer struct {
	mu      sync.Mutex
	calls   int
	deleted int64
	err     error
}

func (m *mockSessionExpirer) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.deleted, m.err
}

func (m *mockSessionExpirer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockMetrics struct {
	mu      sync.Mutex
	expired []int64
}

func (m *mockMetrics) RecordVote(string, bool) {}
func (m *mockMetrics) RecordSearch(bool, int) {}
func (m *mockMetrics) RecordUpload(bool) {}
func (m *mockMetrics) RecordHTTPStatus(int) {}
func (m *mockMetrics) RecordRequestLatency(time.Duration) {}
func (m *mockMetrics) RecordSessionsExpired(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired = append(m.expired, count)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// findLogEntry はJSONログから指定キーを持つ最初のエントリを返す。
func findLogEntry(buf *bytes.Buffer, key string) map[string]any {
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if _, ok := entry[key]; ok {
			return entry
		}
	}
	return nil
}

func TestCleanupJob_Run_DeletesAndRecords(t *testing.T) {
	var buf bytes.Buffer
	sessions := &mockSessionExpirer{deleted: 42}
	m := &mockMetrics{}
	job := NewCleanupJob(sessions, m, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if sessions.callCount() != 1 {
		t.Errorf("DeleteExpired calls = %d, want 1", sessions.callCount())
	}
	if len(m.expired) != 1 || m.expired[0] != 42 {
		t.Errorf("recorded = %v, want [42]", m.expired)
	}
	entry := findLogEntry(&buf, "deleted_count")
	if entry == nil || entry["deleted_count"] != float64(42) {
		t.Errorf("ログに deleted_count=42 が記録されていない。ログ出力: %s", buf.String())
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("ログに duration_ms が記録されていない")
	}
}

func TestCleanupJob_Run_Idempotent_ZeroRows(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockSessionExpirer{}, nil, newTestLogger(&buf))

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("run %d: 削除対象なしでもエラーにならないこと: %v", i+1, err)
		}
	}
}

func TestCleanupJob_Run_DBFailure(t *testing.T) {
	var buf bytes.Buffer
	m := &mockMetrics{}
	job := NewCleanupJob(&mockSessionExpirer{err: sql.ErrConnDone}, m, newTestLogger(&buf))

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("DBエラー時に Run() は nil でないエラーを返すべき")
	}
	if !strings.Contains(err.Error(), "sql: connection is already closed") {
		t.Errorf("エラーメッセージが期待と異なる: %v", err)
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
	if len(m.expired) != 0 {
		t.Errorf("失敗時はメトリクスを記録しないこと: %v", m.expired)
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	sessions := &mockSessionExpirer{deleted: 1}
	job := NewCleanupJob(sessions, nil, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for sessions.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if sessions.callCount() < 2 {
		t.Errorf("DeleteExpired calls = %d, want >= 2", sessions.callCount())
	}
}

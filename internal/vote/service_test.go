package vote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/qaboard/internal/model"
	"github.com/hitoshi/qaboard/internal/pagination"
	"github.com/hitoshi/qaboard/internal/search"
)

// --- モック ---

// ledger は(対象, 会員)の組を一意に保持するメモリ上のVoteRepository。
// INSERT ... ON CONFLICT DO NOTHING と同じく、既存の組の追加はfalseを返す。
type ledger struct {
	mu     sync.Mutex
	voters map[model.VoteTarget]map[string]struct{}
	addErr error
}

func newLedger() *ledger {
	return &ledger{voters: make(map[model.VoteTarget]map[string]struct{})}
}

func (l *ledger) Add(ctx context.Context, target model.VoteTarget, memberID string) (bool, error) {
	if l.addErr != nil {
		return false, l.addErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.voters[target]
	if !ok {
		set = make(map[string]struct{})
		l.voters[target] = set
	}
	if _, exists := set[memberID]; exists {
		return false, nil
	}
	set[memberID] = struct{}{}
	return true, nil
}

func (l *ledger) Count(ctx context.Context, target model.VoteTarget) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.voters[target]), nil
}

func (l *ledger) HasVoted(ctx context.Context, target model.VoteTarget, memberID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.voters[target][memberID]
	return ok, nil
}

type mockQuestionRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.Question, error)
}

func (m *mockQuestionRepo) FindByID(ctx context.Context, id string) (*model.Question, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockQuestionRepo) FindAllMatching(ctx context.Context, pred search.Predicate, req pagination.Request) (pagination.Page[model.QuestionSummary], error) {
	return pagination.Page[model.QuestionSummary]{}, nil
}
func (m *mockQuestionRepo) Create(ctx context.Context, q *model.Question) error { return nil }
func (m *mockQuestionRepo) Update(ctx context.Context, q *model.Question) error { return nil }
func (m *mockQuestionRepo) Delete(ctx context.Context, id string) error { return nil }

type mockAnswerRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.Answer, error)
}

func (m *mockAnswerRepo) FindByID(ctx context.Context, id string) (*model.Answer, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockAnswerRepo) ListByQuestion(ctx context.Context, questionID string) ([]model.Answer, error) {
	return nil, nil
}
func (m *mockAnswerRepo) Create(ctx context.Context, a *model.Answer) error { return nil }
func (m *mockAnswerRepo) Update(ctx context.Context, a *model.Answer) error { return nil }
func (m *mockAnswerRepo) Delete(ctx context.Context, id string) error { return nil }

type recordedVote struct {
	kind  string
	added bool
}

type mockMetrics struct {
	mu    sync.Mutex
	votes []recordedVote
}

func (m *mockMetrics) RecordVote(kind string, added bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votes = append(m.votes, recordedVote{kind, added})
}
func (m *mockMetrics) RecordSearch(bool, int) {}
func (m *mockMetrics) RecordUpload(bool) {}
func (m *mockMetrics) RecordHTTPStatus(int) {}
func (m *mockMetrics) RecordRequestLatency(time.Duration) {}
func (m *mockMetrics) RecordSessionsExpired(int64) {}

func existingRepos() (*mockQuestionRepo, *mockAnswerRepo) {
	q := &mockQuestionRepo{findByIDFn: func(ctx context.Context, id string) (*model.Question, error) {
		return &model.Question{ID: id, AuthorID: "author"}, nil
	}}
	a := &mockAnswerRepo{findByIDFn: func(ctx context.Context, id string) (*model.Answer, error) {
		return &model.Answer{ID: id, AuthorID: "author"}, nil
	}}
	return q, a
}

// --- テスト ---

// TestService_Vote_Idempotent は同じ会員の2回目の投票で件数が増えないことを検証する。
func TestService_Vote_Idempotent(t *testing.T) {
	l := newLedger()
	qRepo, aRepo := existingRepos()
	m := &mockMetrics{}
	svc := NewService(l, qRepo, aRepo, m, nil)
	ctx := context.Background()
	target := model.QuestionTarget("q-1")

	if err := svc.Vote(ctx, target, "m-1"); err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	if err := svc.Vote(ctx, target, "m-1"); err != nil {
		t.Fatalf("second vote failed: %v", err)
	}

	count, err := svc.Count(ctx, target)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	voted, err := svc.HasVoted(ctx, target, "m-1")
	if err != nil || !voted {
		t.Errorf("HasVoted = %v, %v; want true, nil", voted, err)
	}

	want := []recordedVote{{"question", true}, {"question", false}}
	if len(m.votes) != len(want) {
		t.Fatalf("recorded votes = %v, want %v", m.votes, want)
	}
	for i := range want {
		if m.votes[i] != want[i] {
			t.Errorf("votes[%d] = %v, want %v", i, m.votes[i], want[i])
		}
	}
}

// TestService_Vote_ConcurrentDistinctMembers は異なる会員の同時投票がすべて記録されることを検証する。
func TestService_Vote_ConcurrentDistinctMembers(t *testing.T) {
	l := newLedger()
	qRepo, aRepo := existingRepos()
	svc := NewService(l, qRepo, aRepo, nil, nil)
	ctx := context.Background()
	target := model.AnswerTarget("a-1")

	const members = 50
	var wg sync.WaitGroup
	errs := make(chan error, members*2)
	for i := 0; i < members; i++ {
		memberID := fmt.Sprintf("m-%d", i)
		// 同じ会員による同時二重投票も含める
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- svc.Vote(ctx, target, memberID)
			}()
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("vote failed: %v", err)
		}
	}

	count, _ := svc.Count(ctx, target)
	if count != members {
		t.Errorf("count = %d, want %d", count, members)
	}
}

// TestService_Vote_ConflictTreatedAsSuccess は一意制約違反を成功として扱うことを検証する。
func TestService_Vote_ConflictTreatedAsSuccess(t *testing.T) {
	l := newLedger()
	l.addErr = model.NewVoteConflictError()
	qRepo, aRepo := existingRepos()
	m := &mockMetrics{}
	svc := NewService(l, qRepo, aRepo, m, nil)

	if err := svc.Vote(context.Background(), model.QuestionTarget("q-1"), "m-1"); err != nil {
		t.Fatalf("expected nil error on conflict, got %v", err)
	}
	if len(m.votes) != 1 || m.votes[0].added {
		t.Errorf("conflict should be recorded as duplicate, got %v", m.votes)
	}
}

func TestService_Vote_StorageErrorPropagates(t *testing.T) {
	l := newLedger()
	l.addErr = errors.New("connection reset")
	qRepo, aRepo := existingRepos()
	svc := NewService(l, qRepo, aRepo, nil, nil)

	if err := svc.Vote(context.Background(), model.QuestionTarget("q-1"), "m-1"); err == nil {
		t.Fatal("expected storage error to propagate")
	}
}

// TestService_Vote_TargetNotFound は存在しない対象への投票がNotFoundになることを検証する。
func TestService_Vote_TargetNotFound(t *testing.T) {
	qRepo := &mockQuestionRepo{findByIDFn: func(ctx context.Context, id string) (*model.Question, error) {
		return nil, nil
	}}
	aRepo := &mockAnswerRepo{findByIDFn: func(ctx context.Context, id string) (*model.Answer, error) {
		return nil, nil
	}}
	l := newLedger()
	svc := NewService(l, qRepo, aRepo, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		target model.VoteTarget
		code   string
	}{
		{"質問", model.QuestionTarget("missing"), model.ErrCodeQuestionNotFound},
		{"回答", model.AnswerTarget("missing"), model.ErrCodeAnswerNotFound},
		{"不明な種別", model.VoteTarget{Kind: "comment", ID: "x"}, model.ErrCodeInvalidVoteTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Vote(ctx, tt.target, "m-1")
			if !model.HasCode(err, tt.code) {
				t.Errorf("err = %v, want code %s", err, tt.code)
			}
		})
	}
	if len(l.voters) != 0 {
		t.Errorf("no vote should be recorded, got %v", l.voters)
	}
}

func TestService_Vote_RequiresMember(t *testing.T) {
	qRepo, aRepo := existingRepos()
	svc := NewService(newLedger(), qRepo, aRepo, nil, nil)

	err := svc.Vote(context.Background(), model.QuestionTarget("q-1"), "")
	if !model.HasCode(err, model.ErrCodeUnauthorized) {
		t.Errorf("err = %v, want UNAUTHORIZED", err)
	}
}

func TestService_HasVoted_Anonymous(t *testing.T) {
	qRepo, aRepo := existingRepos()
	svc := NewService(newLedger(), qRepo, aRepo, nil, nil)

	voted, err := svc.HasVoted(context.Background(), model.QuestionTarget("q-1"), "")
	if err != nil || voted {
		t.Errorf("HasVoted = %v, %v; want false, nil", voted, err)
	}
}

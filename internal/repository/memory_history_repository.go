package repository

import (
	"context"
	"sort"
	"sync"

	"Territory-App/internal/domain/model"
	"Territory-App/internal/domain/repository"
)

// MemoryHistoryRepository はインメモリの履歴・ライバル関係ストア実装（テスト用）
type MemoryHistoryRepository struct {
	mu        sync.Mutex
	entries   []*model.HistoryEntry
	rivalries map[rivalryKey]*model.Rivalry

	// FailVictimSide をtrueにすると被害者側カウンターの書き込みを落とし、
	// 片側ズレ（照合対象のドリフト）を意図的に発生させられる
	FailVictimSide bool
}

type rivalryKey struct {
	userID  string
	rivalID string
}

// NewMemoryHistoryRepository 新しいインメモリ履歴ストアを作成
func NewMemoryHistoryRepository() *MemoryHistoryRepository {
	return &MemoryHistoryRepository{
		rivalries: make(map[rivalryKey]*model.Rivalry),
	}
}

var _ repository.HistoryRepository = (*MemoryHistoryRepository)(nil)

func (r *MemoryHistoryRepository) Append(ctx context.Context, entry *model.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 同一セル・同一アクティビティの重複追記は無視する（冪等）
	for _, existing := range r.entries {
		if existing.CellID == entry.CellID && existing.ActivityID == entry.ActivityID {
			return nil
		}
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *MemoryHistoryRepository) RecordSteal(ctx context.Context, thiefID, victimID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	thiefSide := r.rivalryLocked(thiefID, victimID)
	thiefSide.StolenFromRival++

	if !r.FailVictimSide {
		victimSide := r.rivalryLocked(victimID, thiefID)
		victimSide.StolenByRival++
	}
	return nil
}

func (r *MemoryHistoryRepository) GetRivalry(ctx context.Context, userID, rivalID string) (*model.Rivalry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rivalry, ok := r.rivalries[rivalryKey{userID: userID, rivalID: rivalID}]; ok {
		clone := *rivalry
		return &clone, nil
	}
	return &model.Rivalry{UserID: userID, RivalID: rivalID}, nil
}

func (r *MemoryHistoryRepository) PutRivalry(ctx context.Context, rivalry *model.Rivalry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *rivalry
	r.rivalries[rivalryKey{userID: rivalry.UserID, rivalID: rivalry.RivalID}] = &clone
	return nil
}

func (r *MemoryHistoryRepository) ListRivalries(ctx context.Context) ([]model.Rivalry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rivalries := make([]model.Rivalry, 0, len(r.rivalries))
	for _, rivalry := range r.rivalries {
		rivalries = append(rivalries, *rivalry)
	}
	sort.Slice(rivalries, func(i, j int) bool {
		if rivalries[i].UserID != rivalries[j].UserID {
			return rivalries[i].UserID < rivalries[j].UserID
		}
		return rivalries[i].RivalID < rivalries[j].RivalID
	})
	return rivalries, nil
}

// Entries はテスト検証用に履歴を列挙する
func (r *MemoryHistoryRepository) Entries() []*model.HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*model.HistoryEntry, len(r.entries))
	copy(result, r.entries)
	return result
}

// rivalryLocked は指定キーの行を取得または作成する（mu保持前提）
func (r *MemoryHistoryRepository) rivalryLocked(userID, rivalID string) *model.Rivalry {
	key := rivalryKey{userID: userID, rivalID: rivalID}
	if rivalry, ok := r.rivalries[key]; ok {
		return rivalry
	}
	rivalry := &model.Rivalry{UserID: userID, RivalID: rivalID}
	r.rivalries[key] = rivalry
	return rivalry
}

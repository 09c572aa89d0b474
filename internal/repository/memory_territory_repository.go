package repository

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"Territory-App/internal/domain/model"
	"Territory-App/internal/domain/repository"
)

const memoryChangeBufferSize = 256

// MemoryTerritoryRepository はインメモリの領土ストア実装
// テストとローカル開発用で、TerritoryRepositoryとVengeanceRepositoryの両方を満たす
type MemoryTerritoryRepository struct {
	mu          sync.Mutex
	cells       map[string]*model.OwnershipRecord
	history     map[string]map[string]*model.HistoryEntry    // cellID -> activityID -> entry
	vengeance   map[string]map[string]*model.VengeanceTarget // userID -> cellID -> target
	subscribers map[int]*memoryShardSubscriber
	watchers    map[int]*memoryVengeanceWatcher
	nextID      int

	// SubscribeCalls / CancelCalls は購読の張り直し回数を検証するためのカウンター
	SubscribeCalls int
	CancelCalls    int
}

type memoryShardSubscriber struct {
	prefix  string
	changes chan model.CellChange
}

type memoryVengeanceWatcher struct {
	userID  string
	changes chan model.VengeanceChange
}

// NewMemoryTerritoryRepository 新しいインメモリストアを作成
func NewMemoryTerritoryRepository() *MemoryTerritoryRepository {
	return &MemoryTerritoryRepository{
		cells:       make(map[string]*model.OwnershipRecord),
		history:     make(map[string]map[string]*model.HistoryEntry),
		vengeance:   make(map[string]map[string]*model.VengeanceTarget),
		subscribers: make(map[int]*memoryShardSubscriber),
		watchers:    make(map[int]*memoryVengeanceWatcher),
	}
}

// ApplyCellTransition はセル1件の遷移をミューテックス保護下で適用する
func (r *MemoryTerritoryRepository) ApplyCellTransition(ctx context.Context, cellID, actorID, activityID string, decide repository.TransitionDecider) (*model.TerritoryEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 冪等性: 同一アクティビティの履歴が既にあれば適用済み
	if entries, ok := r.history[cellID]; ok {
		if _, applied := entries[activityID]; applied {
			return nil, nil
		}
	}

	var current *model.OwnershipRecord
	if record, ok := r.cells[cellID]; ok {
		clone := *record
		current = &clone
	}

	hasVengeance := false
	if targets, ok := r.vengeance[actorID]; ok {
		if target, ok := targets[cellID]; ok {
			hasVengeance = !target.IsExpired(time.Now())
		}
	}

	transition, err := decide(current, hasVengeance)
	if err != nil {
		return nil, err
	}
	if transition.Skip {
		return nil, nil
	}

	r.cells[cellID] = transition.Record
	if r.history[cellID] == nil {
		r.history[cellID] = make(map[string]*model.HistoryEntry)
	}
	r.history[cellID][activityID] = transition.History

	if v := transition.CreateVengeance; v != nil {
		if r.vengeance[v.VictimID] == nil {
			r.vengeance[v.VictimID] = make(map[string]*model.VengeanceTarget)
		}
		r.vengeance[v.VictimID][v.CellID] = v
		r.notifyVengeanceLocked(v.VictimID, model.VengeanceChange{Kind: model.ChangeAdded, Target: v})
	}
	for _, userID := range transition.DeleteVengeanceUserIDs {
		if targets, ok := r.vengeance[userID]; ok {
			if target, existed := targets[cellID]; existed {
				delete(targets, cellID)
				r.notifyVengeanceLocked(userID, model.VengeanceChange{Kind: model.ChangeRemoved, Target: target})
			}
		}
	}

	kind := model.ChangeModified
	if current == nil {
		kind = model.ChangeAdded
	}
	r.notifyCellLocked(model.CellChange{Kind: kind, Record: transition.Record})

	return transition.Event, nil
}

func (r *MemoryTerritoryRepository) GetByIDs(ctx context.Context, cellIDs []string) ([]*model.OwnershipRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []*model.OwnershipRecord
	for _, cellID := range cellIDs {
		if record, ok := r.cells[cellID]; ok {
			clone := *record
			records = append(records, &clone)
		}
	}
	return records, nil
}

func (r *MemoryTerritoryRepository) GetByOwner(ctx context.Context, userID string) ([]*model.OwnershipRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []*model.OwnershipRecord
	for _, record := range r.cells {
		if record.OwnerID == userID {
			clone := *record
			records = append(records, &clone)
		}
	}
	return records, nil
}

func (r *MemoryTerritoryRepository) GetByGeohashPrefix(ctx context.Context, prefix string) ([]*model.OwnershipRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []*model.OwnershipRecord
	for _, record := range r.cells {
		if strings.HasPrefix(record.Geohash, prefix) {
			clone := *record
			records = append(records, &clone)
		}
	}
	return records, nil
}

// SubscribeShard は指定シャード範囲の購読を開始する
// 登録時点の一致セルを初回スナップショットとして配信し、その後は増分のみ流す
func (r *MemoryTerritoryRepository) SubscribeShard(ctx context.Context, prefix string) (*repository.ShardStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.SubscribeCalls++
	r.nextID++
	id := r.nextID

	sub := &memoryShardSubscriber{
		prefix:  prefix,
		changes: make(chan model.CellChange, memoryChangeBufferSize),
	}

	// 初回スナップショットを先に積んでからReadyをクローズする
	for _, record := range r.cells {
		if strings.HasPrefix(record.Geohash, prefix) {
			clone := *record
			sub.changes <- model.CellChange{Kind: model.ChangeAdded, Record: &clone}
		}
	}
	ready := make(chan struct{})
	close(ready)

	r.subscribers[id] = sub

	var once sync.Once
	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		once.Do(func() {
			r.CancelCalls++
			if registered, ok := r.subscribers[id]; ok {
				delete(r.subscribers, id)
				close(registered.changes)
			}
		})
	}

	return &repository.ShardStream{
		Changes: sub.changes,
		Ready:   ready,
		Cancel:  cancel,
	}, nil
}

func (r *MemoryTerritoryRepository) UpdateLocationLabel(ctx context.Context, cellID, label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record, ok := r.cells[cellID]; ok {
		record.LocationLabel = label
		clone := *record
		r.notifyCellLocked(model.CellChange{Kind: model.ChangeModified, Record: &clone})
	}
	return nil
}

// ---- VengeanceRepository 実装 ----

func (r *MemoryTerritoryRepository) ListByUser(ctx context.Context, userID string) ([]*model.VengeanceTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var targets []*model.VengeanceTarget
	for _, target := range r.vengeance[userID] {
		clone := *target
		targets = append(targets, &clone)
	}
	return targets, nil
}

func (r *MemoryTerritoryRepository) Get(ctx context.Context, userID, cellID string) (*model.VengeanceTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if targets, ok := r.vengeance[userID]; ok {
		if target, ok := targets[cellID]; ok {
			clone := *target
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *MemoryTerritoryRepository) Delete(ctx context.Context, userID, cellID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if targets, ok := r.vengeance[userID]; ok {
		if target, existed := targets[cellID]; existed {
			delete(targets, cellID)
			r.notifyVengeanceLocked(userID, model.VengeanceChange{Kind: model.ChangeRemoved, Target: target})
		}
	}
	return nil
}

func (r *MemoryTerritoryRepository) Watch(ctx context.Context, userID string) (*repository.VengeanceStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID

	watcher := &memoryVengeanceWatcher{
		userID:  userID,
		changes: make(chan model.VengeanceChange, memoryChangeBufferSize),
	}

	// 既存ターゲットを初回スナップショットとして配信する
	for _, target := range r.vengeance[userID] {
		clone := *target
		watcher.changes <- model.VengeanceChange{Kind: model.ChangeAdded, Target: &clone}
	}

	r.watchers[id] = watcher

	var once sync.Once
	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		once.Do(func() {
			if registered, ok := r.watchers[id]; ok {
				delete(r.watchers, id)
				close(registered.changes)
			}
		})
	}

	return &repository.VengeanceStream{
		Changes: watcher.changes,
		Cancel:  cancel,
	}, nil
}

// ---- テスト用ヘルパー ----

// Seed はテスト用にセルレコードを直接格納する
func (r *MemoryTerritoryRepository) Seed(record *model.OwnershipRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cells[record.CellID] = record
}

// SeedVengeance はテスト用にリベンジターゲットを直接格納する
func (r *MemoryTerritoryRepository) SeedVengeance(target *model.VengeanceTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vengeance[target.VictimID] == nil {
		r.vengeance[target.VictimID] = make(map[string]*model.VengeanceTarget)
	}
	r.vengeance[target.VictimID][target.CellID] = target
}

// notifyCellLocked は一致するシャード購読者へ増分イベントを配信する（mu保持前提）
func (r *MemoryTerritoryRepository) notifyCellLocked(change model.CellChange) {
	for _, sub := range r.subscribers {
		if strings.HasPrefix(change.Record.Geohash, sub.prefix) {
			select {
			case sub.changes <- change:
			default:
				log.Printf("⚠️ シャード購読者のバッファが満杯のためイベントを破棄: %s", change.Record.CellID)
			}
		}
	}
}

// notifyVengeanceLocked は一致するウォッチャーへ増分イベントを配信する（mu保持前提）
func (r *MemoryTerritoryRepository) notifyVengeanceLocked(userID string, change model.VengeanceChange) {
	for _, watcher := range r.watchers {
		if watcher.userID == userID {
			select {
			case watcher.changes <- change:
			default:
				log.Printf("⚠️ リベンジターゲットウォッチャーのバッファが満杯のためイベントを破棄")
			}
		}
	}
}

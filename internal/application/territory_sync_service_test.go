package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Territory-App/internal/domain/helper"
	"Territory-App/internal/domain/model"
	domainRepo "Territory-App/internal/domain/repository"
	"Territory-App/internal/repository"
)

var testCenter = model.LatLng{Lat: 34.7024, Lng: 135.4959} // 大阪・梅田

func seedCell(store *repository.MemoryTerritoryRepository, cellID, ownerID string, at model.LatLng) {
	expiresAt := time.Now().Add(72 * time.Hour)
	store.Seed(&model.OwnershipRecord{
		CellID:    cellID,
		OwnerID:   ownerID,
		Center:    &model.Location{Latitude: at.Lat, Longitude: at.Lng},
		Geohash:   helper.CellGeohash(at),
		ExpiresAt: &expiresAt,
	})
}

func TestUpdateViewportDebounce(t *testing.T) {
	store := repository.NewMemoryTerritoryRepository()
	svc := NewTerritorySyncService(store, store)
	defer svc.Close()
	ctx := context.Background()

	require.NoError(t, svc.UpdateViewport(ctx, testCenter, 0.01))
	assert.Equal(t, 9, store.SubscribeCalls, "中心と8近傍の9シャードが購読される")

	// スパンの10%未満の移動はノイズとして無視され、購読は一切触られない
	minor := model.LatLng{Lat: testCenter.Lat + 0.0005, Lng: testCenter.Lng}
	require.NoError(t, svc.UpdateViewport(ctx, minor, 0.01))
	assert.Equal(t, 9, store.SubscribeCalls)
	assert.Equal(t, 0, store.CancelCalls)
}

func TestUpdateViewportKeepsOverlappingShards(t *testing.T) {
	store := repository.NewMemoryTerritoryRepository()
	svc := NewTerritorySyncService(store, store)
	defer svc.Close()
	ctx := context.Background()

	require.NoError(t, svc.UpdateViewport(ctx, testCenter, 0.01))

	// デバウンス閾値は超えるがシャード窓は1行ずれる程度の移動
	moved := model.LatLng{Lat: testCenter.Lat + 0.002, Lng: testCenter.Lng}
	require.NoError(t, svc.UpdateViewport(ctx, moved, 0.01))

	// アクティブ集合は常に9。新規購読数と解除数は一致し、共通シャードは張り直されない
	assert.Equal(t, store.SubscribeCalls-9, store.CancelCalls)
	assert.Less(t, store.CancelCalls, 9, "移動で全シャードが張り直された")
}

func TestUpdateViewportFullChurn(t *testing.T) {
	store := repository.NewMemoryTerritoryRepository()
	svc := NewTerritorySyncService(store, store)
	defer svc.Close()
	ctx := context.Background()

	seedCell(store, "1_1", "userA", testCenter)
	require.NoError(t, svc.UpdateViewport(ctx, testCenter, 0.01))
	require.NoError(t, svc.WaitForFirstSnapshot(ctx, time.Second))

	require.Eventually(t, func() bool {
		_, ok := svc.Snapshot()["1_1"]
		return ok
	}, time.Second, 10*time.Millisecond)

	// 遠距離移動で旧シャードはすべて解除され、カバーされないセルはスナップショットから消える
	far := model.LatLng{Lat: testCenter.Lat + 1.0, Lng: testCenter.Lng + 1.0}
	require.NoError(t, svc.UpdateViewport(ctx, far, 0.01))

	assert.Equal(t, 18, store.SubscribeCalls)
	assert.Equal(t, 9, store.CancelCalls)
	_, ok := svc.Snapshot()["1_1"]
	assert.False(t, ok, "解除済みシャードのセルがスナップショットに残っている")
}

func TestSnapshotMergesLiveChanges(t *testing.T) {
	store := repository.NewMemoryTerritoryRepository()
	svc := NewTerritorySyncService(store, store)
	defer svc.Close()
	ctx := context.Background()

	seedCell(store, "1_1", "userA", testCenter)
	nearby := model.LatLng{Lat: testCenter.Lat + 0.0001, Lng: testCenter.Lng + 0.0001}
	seedCell(store, "1_2", "userB", nearby)

	require.NoError(t, svc.UpdateViewport(ctx, testCenter, 0.01))
	require.NoError(t, svc.WaitForFirstSnapshot(ctx, time.Second))

	// 初回スナップショットで既存セルがマージされる（重複購読でも1件ずつ）
	require.Eventually(t, func() bool {
		snapshot := svc.Snapshot()
		return snapshot["1_1"] != nil && snapshot["1_2"] != nil
	}, time.Second, 10*time.Millisecond)

	// 購読中のライブ更新がスナップショットへ反映される
	require.NoError(t, store.UpdateLocationLabel(ctx, "1_1", "梅田"))
	require.Eventually(t, func() bool {
		record := svc.Snapshot()["1_1"]
		return record != nil && record.LocationLabel == "梅田"
	}, time.Second, 10*time.Millisecond)
}

// neverReadyRepository は初回スナップショットが届かないストアを模擬する
type neverReadyRepository struct {
	domainRepo.TerritoryRepository
}

func (r *neverReadyRepository) SubscribeShard(ctx context.Context, prefix string) (*domainRepo.ShardStream, error) {
	return &domainRepo.ShardStream{
		Changes: make(chan model.CellChange),
		Ready:   make(chan struct{}), // 閉じられない
		Cancel:  func() {},
	}, nil
}

func TestWaitForFirstSnapshotTimeout(t *testing.T) {
	store := repository.NewMemoryTerritoryRepository()
	svc := NewTerritorySyncService(&neverReadyRepository{TerritoryRepository: store}, store)
	defer svc.Close()
	ctx := context.Background()

	require.NoError(t, svc.UpdateViewport(ctx, testCenter, 0.01))

	// タイムアウト後はエラーにせずベストエフォートで継続する
	start := time.Now()
	err := svc.WaitForFirstSnapshot(ctx, 50*time.Millisecond)
	assert.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStartRadarIndependentLifecycle(t *testing.T) {
	store := repository.NewMemoryTerritoryRepository()
	svc := NewTerritorySyncService(store, store)
	ctx := context.Background()

	require.NoError(t, svc.StartRadar(ctx, testCenter))
	radarSubs := store.SubscribeCalls
	assert.Greater(t, radarSubs, 0)

	// ビューポートの更新と移動はレーダー購読を一切解除しない
	require.NoError(t, svc.UpdateViewport(ctx, testCenter, 0.01))
	far := model.LatLng{Lat: testCenter.Lat + 1.0, Lng: testCenter.Lng + 1.0}
	require.NoError(t, svc.UpdateViewport(ctx, far, 0.01))
	assert.Equal(t, 9, store.CancelCalls, "ビューポート移動でレーダー購読が解除された")

	// Closeで全購読（レーダー含む）が解除される
	svc.Close()
	assert.Equal(t, store.SubscribeCalls, store.CancelCalls)
}

func TestWatchVengeanceTargets(t *testing.T) {
	store := repository.NewMemoryTerritoryRepository()
	svc := NewTerritorySyncService(store, store)
	defer svc.Close()
	ctx := context.Background()

	store.SeedVengeance(&model.VengeanceTarget{
		CellID:    "100_200",
		VictimID:  "userA",
		ThiefID:   "userB",
		StolenAt:  time.Now(),
		ExpiresAt: time.Now().Add(72 * time.Hour),
	})

	stream, err := svc.WatchVengeanceTargets(ctx, "userA")
	require.NoError(t, err)
	defer stream.Cancel()

	select {
	case change := <-stream.Changes:
		assert.Equal(t, model.ChangeAdded, change.Kind)
		assert.Equal(t, "100_200", change.Target.CellID)
	case <-time.After(time.Second):
		t.Fatal("初回スナップショットが配信されない")
	}

	t.Run("ユーザーID欠落はエラー", func(t *testing.T) {
		_, err := svc.WatchVengeanceTargets(ctx, "")
		assert.Error(t, err)
	})
}

func TestGetCellsByBoundingBox(t *testing.T) {
	store := repository.NewMemoryTerritoryRepository()
	svc := NewTerritorySyncService(store, store)
	defer svc.Close()
	ctx := context.Background()

	seedCell(store, "1_1", "userA", testCenter)
	outside := model.LatLng{Lat: testCenter.Lat + 2.0, Lng: testCenter.Lng + 2.0}
	seedCell(store, "9_9", "userB", outside)

	records, err := svc.GetCellsByBoundingBox(ctx,
		testCenter.Lng-0.01, testCenter.Lat-0.01,
		testCenter.Lng+0.01, testCenter.Lat+0.01)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1_1", records[0].CellID)

	t.Run("不正な境界ボックスはエラー", func(t *testing.T) {
		_, err := svc.GetCellsByBoundingBox(ctx, 10, 10, 5, 5)
		assert.Error(t, err)
	})
}

package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Territory-App/internal/domain/model"
	"Territory-App/internal/repository"
)

func TestReconcileUserTargets(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("被害者が所有しているセルのターゲットはゴーストとして削除される", func(t *testing.T) {
		store := repository.NewMemoryTerritoryRepository()
		expiresAt := now.Add(72 * time.Hour)
		store.Seed(&model.OwnershipRecord{CellID: "100_200", OwnerID: "userA", ExpiresAt: &expiresAt})
		store.SeedVengeance(&model.VengeanceTarget{
			CellID:    "100_200",
			VictimID:  "userA",
			ThiefID:   "userB",
			StolenAt:  now.Add(-24 * time.Hour),
			ExpiresAt: now.Add(72 * time.Hour),
		})

		reconcile := NewReconcileUsecase(store, store, nil)
		report, err := reconcile.ReconcileUserTargets(ctx, "userA")
		require.NoError(t, err)
		assert.Equal(t, 1, report.GhostTargetsRemoved)

		target, err := store.Get(ctx, "userA", "100_200")
		require.NoError(t, err)
		assert.Nil(t, target)
	})

	t.Run("失効済みターゲットは削除される", func(t *testing.T) {
		store := repository.NewMemoryTerritoryRepository()
		expiresAt := now.Add(72 * time.Hour)
		store.Seed(&model.OwnershipRecord{CellID: "100_200", OwnerID: "userB", ExpiresAt: &expiresAt})
		store.SeedVengeance(&model.VengeanceTarget{
			CellID:    "100_200",
			VictimID:  "userA",
			ThiefID:   "userB",
			StolenAt:  now.Add(-10 * 24 * time.Hour),
			ExpiresAt: now.Add(-time.Hour),
		})

		reconcile := NewReconcileUsecase(store, store, nil)
		report, err := reconcile.ReconcileUserTargets(ctx, "userA")
		require.NoError(t, err)
		assert.Equal(t, 1, report.ExpiredTargetsRemoved)
	})

	t.Run("有効なターゲットは残る", func(t *testing.T) {
		store := repository.NewMemoryTerritoryRepository()
		expiresAt := now.Add(72 * time.Hour)
		store.Seed(&model.OwnershipRecord{CellID: "100_200", OwnerID: "userB", ExpiresAt: &expiresAt})
		store.SeedVengeance(&model.VengeanceTarget{
			CellID:    "100_200",
			VictimID:  "userA",
			ThiefID:   "userB",
			StolenAt:  now,
			ExpiresAt: now.Add(72 * time.Hour),
		})

		reconcile := NewReconcileUsecase(store, store, nil)
		report, err := reconcile.ReconcileUserTargets(ctx, "userA")
		require.NoError(t, err)
		assert.Zero(t, report.GhostTargetsRemoved)
		assert.Zero(t, report.ExpiredTargetsRemoved)

		target, err := store.Get(ctx, "userA", "100_200")
		require.NoError(t, err)
		assert.NotNil(t, target)
	})

	t.Run("ターゲットのないユーザーは何も起きない", func(t *testing.T) {
		store := repository.NewMemoryTerritoryRepository()
		reconcile := NewReconcileUsecase(store, store, nil)
		report, err := reconcile.ReconcileUserTargets(ctx, "userA")
		require.NoError(t, err)
		assert.Zero(t, report.GhostTargetsRemoved)
	})
}

func TestReconcileRivalries(t *testing.T) {
	ctx := context.Background()

	t.Run("片側だけ記録されたカウンターを大きい方の値で修復する", func(t *testing.T) {
		store := repository.NewMemoryTerritoryRepository()
		history := repository.NewMemoryHistoryRepository()

		// 被害者側の書き込みを落としてドリフトを発生させる
		history.FailVictimSide = true
		require.NoError(t, history.RecordSteal(ctx, "userA", "userB"))
		require.NoError(t, history.RecordSteal(ctx, "userA", "userB"))
		history.FailVictimSide = false

		// ドリフトの確認: 泥棒側は2、被害者側は0
		thiefSide, err := history.GetRivalry(ctx, "userA", "userB")
		require.NoError(t, err)
		require.Equal(t, 2, thiefSide.StolenFromRival)
		victimSide, err := history.GetRivalry(ctx, "userB", "userA")
		require.NoError(t, err)
		require.Equal(t, 0, victimSide.StolenByRival)

		reconcile := NewReconcileUsecase(store, store, history)
		report, err := reconcile.ReconcileRivalries(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, report.RivalryPatches, 1)

		// 修復後は相互のカウンターが一致する
		thiefSide, err = history.GetRivalry(ctx, "userA", "userB")
		require.NoError(t, err)
		victimSide, err = history.GetRivalry(ctx, "userB", "userA")
		require.NoError(t, err)
		assert.Equal(t, thiefSide.StolenFromRival, victimSide.StolenByRival)
		assert.Equal(t, thiefSide.StolenByRival, victimSide.StolenFromRival)
		assert.Equal(t, 2, victimSide.StolenByRival)
	})

	t.Run("整合済みのカウンターは変更されない", func(t *testing.T) {
		store := repository.NewMemoryTerritoryRepository()
		history := repository.NewMemoryHistoryRepository()
		require.NoError(t, history.RecordSteal(ctx, "userA", "userB"))

		reconcile := NewReconcileUsecase(store, store, history)
		report, err := reconcile.ReconcileRivalries(ctx)
		require.NoError(t, err)
		assert.Zero(t, report.RivalryPatches)
	})

	t.Run("履歴ストアがない場合は何もしない", func(t *testing.T) {
		store := repository.NewMemoryTerritoryRepository()
		reconcile := NewReconcileUsecase(store, store, nil)
		report, err := reconcile.ReconcileRivalries(ctx)
		require.NoError(t, err)
		assert.Zero(t, report.RivalryPatches)
	})
}

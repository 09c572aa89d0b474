package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Territory-App/internal/domain/model"
)

func ownedRecord(cellID, ownerID string, expiresAt time.Time) *model.OwnershipRecord {
	first := expiresAt.AddDate(0, 0, -model.DefaultCellExpirationDays)
	return &model.OwnershipRecord{
		CellID:           cellID,
		X:                100,
		Y:                200,
		OwnerID:          ownerID,
		FirstConqueredAt: &first,
		LastConqueredAt:  &first,
		ExpiresAt:        &expiresAt,
		ActivityID:       "past-activity",
	}
}

func TestDecideTransitionConquest(t *testing.T) {
	rules := NewConquestRules(testConfig())
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("未所有セルの獲得", func(t *testing.T) {
		transition, err := rules.DecideTransition(nil, "100_200", "userA", "act-1", false, now)
		require.NoError(t, err)
		require.False(t, transition.Skip)

		assert.Equal(t, model.InteractionConquest, transition.Event.Interaction)
		assert.Empty(t, transition.Event.PreviousOwnerID)
		assert.Equal(t, "userA", transition.Record.OwnerID)
		assert.Equal(t, "act-1", transition.Record.ActivityID)

		// 新規セルは派生フィールドが計算される
		require.NotNil(t, transition.Record.Center)
		assert.InDelta(t, 0.401, transition.Record.Center.Latitude, 1e-9)
		assert.InDelta(t, 0.201, transition.Record.Center.Longitude, 1e-9)
		assert.NotNil(t, transition.Record.Boundary)
		assert.NotEmpty(t, transition.Record.Geohash)

		// 期限は現在時刻から設定日数後
		require.NotNil(t, transition.Record.ExpiresAt)
		assert.Equal(t, now.AddDate(0, 0, model.DefaultCellExpirationDays), *transition.Record.ExpiresAt)

		// 所有者になったアクターのゴーストターゲットは常に掃除対象
		assert.Equal(t, []string{"userA"}, transition.DeleteVengeanceUserIDs)
		assert.Nil(t, transition.CreateVengeance)
	})

	t.Run("失効済みセルの獲得は強奪ではなく獲得になる", func(t *testing.T) {
		expired := ownedRecord("100_200", "userB", now.Add(-time.Hour))
		transition, err := rules.DecideTransition(expired, "100_200", "userA", "act-2", false, now)
		require.NoError(t, err)

		assert.Equal(t, model.InteractionConquest, transition.Event.Interaction)
		assert.Empty(t, transition.Event.PreviousOwnerID)
		assert.Nil(t, transition.CreateVengeance)
		assert.Equal(t, "userA", transition.Record.OwnerID)
	})
}

func TestDecideTransitionDefense(t *testing.T) {
	rules := NewConquestRules(testConfig())
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("所有者自身の再走行は防衛として期限を延長する", func(t *testing.T) {
		current := ownedRecord("100_200", "userA", now.Add(72*time.Hour))
		transition, err := rules.DecideTransition(current, "100_200", "userA", "act-2", false, now)
		require.NoError(t, err)

		assert.Equal(t, model.InteractionDefense, transition.Event.Interaction)
		assert.False(t, transition.Event.LastMinuteDefense)
		assert.Equal(t, 1, transition.Record.DefenseCount)
		assert.Equal(t, now.AddDate(0, 0, model.DefaultCellExpirationDays), *transition.Record.ExpiresAt)
	})

	t.Run("残り24時間以内の防衛は期限間際フラグが立つ", func(t *testing.T) {
		current := ownedRecord("100_200", "userA", now.Add(12*time.Hour))
		transition, err := rules.DecideTransition(current, "100_200", "userA", "act-2", false, now)
		require.NoError(t, err)

		assert.Equal(t, model.InteractionDefense, transition.Event.Interaction)
		assert.True(t, transition.Event.LastMinuteDefense)
	})
}

func TestDecideTransitionSteal(t *testing.T) {
	rules := NewConquestRules(testConfig())
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("有効期限内の他人セルの奪取は強奪になる", func(t *testing.T) {
		current := ownedRecord("100_200", "userB", now.Add(72*time.Hour))
		current.DefenseCount = 3
		transition, err := rules.DecideTransition(current, "100_200", "userA", "act-2", false, now)
		require.NoError(t, err)

		assert.Equal(t, model.InteractionSteal, transition.Event.Interaction)
		assert.Equal(t, "userB", transition.Event.PreviousOwnerID)
		assert.Equal(t, "userA", transition.Record.OwnerID)
		assert.Equal(t, 1, transition.Record.TimesStolen)
		assert.False(t, transition.Record.IsHotSpot)
		// 所有権移転で防衛カウントはリセットされる
		assert.Equal(t, 0, transition.Record.DefenseCount)

		// 被害者にリベンジターゲットが作成される
		require.NotNil(t, transition.CreateVengeance)
		assert.Equal(t, "userB", transition.CreateVengeance.VictimID)
		assert.Equal(t, "userA", transition.CreateVengeance.ThiefID)
		assert.Equal(t, "100_200", transition.CreateVengeance.CellID)
		// ターゲットの期限はセル期限より猶予時間ぶん長い
		assert.Equal(t,
			transition.Record.ExpiresAt.Add(model.VengeanceGraceHours*time.Hour),
			transition.CreateVengeance.ExpiresAt)
	})

	t.Run("強奪回数が閾値に達するとホットスポットになる", func(t *testing.T) {
		current := ownedRecord("100_200", "userB", now.Add(72*time.Hour))
		current.TimesStolen = model.HotSpotStealThreshold - 1
		transition, err := rules.DecideTransition(current, "100_200", "userA", "act-2", false, now)
		require.NoError(t, err)

		assert.Equal(t, model.HotSpotStealThreshold, transition.Record.TimesStolen)
		assert.True(t, transition.Record.IsHotSpot)
	})
}

func TestDecideTransitionRecapture(t *testing.T) {
	rules := NewConquestRules(testConfig())
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// リベンジターゲット保持中の奪取は奪還（新たなリベンジターゲットは作られない）
	current := ownedRecord("100_200", "userB", now.Add(72*time.Hour))
	transition, err := rules.DecideTransition(current, "100_200", "userA", "act-2", true, now)
	require.NoError(t, err)

	assert.Equal(t, model.InteractionRecapture, transition.Event.Interaction)
	assert.Equal(t, "userB", transition.Event.PreviousOwnerID)
	assert.Equal(t, "userA", transition.Record.OwnerID)
	assert.Nil(t, transition.CreateVengeance)
	assert.Equal(t, []string{"userA"}, transition.DeleteVengeanceUserIDs)
}

func TestDecideTransitionIdempotentSkip(t *testing.T) {
	rules := NewConquestRules(testConfig())
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// 同一アクティビティの再適用はスキップされ状態が変わらない
	current := ownedRecord("100_200", "userA", now.Add(72*time.Hour))
	current.ActivityID = "act-1"
	transition, err := rules.DecideTransition(current, "100_200", "userA", "act-1", false, now)
	require.NoError(t, err)
	assert.True(t, transition.Skip)
	assert.Nil(t, transition.Event)
}

func TestLoadTerritoryConfigClamp(t *testing.T) {
	t.Run("有効期限は上限60日にクランプされる", func(t *testing.T) {
		t.Setenv("CELL_EXPIRATION_DAYS", "120")
		cfg := model.LoadTerritoryConfig()
		assert.Equal(t, model.CellExpirationDaysMax, cfg.CellExpirationDays)
	})

	t.Run("有効期限は下限1日にクランプされる", func(t *testing.T) {
		t.Setenv("CELL_EXPIRATION_DAYS", "0")
		cfg := model.LoadTerritoryConfig()
		assert.Equal(t, model.CellExpirationDaysMin, cfg.CellExpirationDays)
	})

	t.Run("未設定時はデフォルト値を使う", func(t *testing.T) {
		cfg := model.LoadTerritoryConfig()
		assert.Equal(t, model.DefaultCellSizeDegrees, cfg.CellSizeDegrees)
		assert.Equal(t, model.DefaultCellExpirationDays, cfg.CellExpirationDays)
	})
}

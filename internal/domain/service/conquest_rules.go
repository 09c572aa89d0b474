package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"Territory-App/internal/domain/helper"
	"Territory-App/internal/domain/model"
)

// ConquestRules はセル1件の所有権遷移を決定する純粋なルールエンジン
// ストレージへの適用はリポジトリ側のトランザクションが担当する
type ConquestRules struct {
	cfg *model.TerritoryConfig
}

// NewConquestRules は設定からConquestRulesを生成する
func NewConquestRules(cfg *model.TerritoryConfig) *ConquestRules {
	return &ConquestRules{cfg: cfg}
}

// DecideTransition は現在のセル状態とアクターからセル遷移を決定する
// current がnilの場合は未所有セルとして扱う
// actorHasVengeance はアクターがこのセルの有効なリベンジターゲットを持つかどうか
func (cr *ConquestRules) DecideTransition(current *model.OwnershipRecord, cellID, actorID, activityID string, actorHasVengeance bool, now time.Time) (*model.CellTransition, error) {
	// 同一アクティビティの再適用は冪等にスキップする（リトライ対策）
	if current != nil && current.ActivityID == activityID {
		return &model.CellTransition{Skip: true}, nil
	}

	record, err := cr.prepareRecord(current, cellID)
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(time.Duration(cr.cfg.CellExpirationDays) * 24 * time.Hour)

	var interaction string
	var previousOwnerID string
	var lastMinuteDefense bool
	transition := &model.CellTransition{}

	switch {
	case record.IsOwnedBy(actorID, now):
		// 所有者自身の再走行は防衛（期限延長）
		interaction = model.InteractionDefense
		if record.ExpiresAt != nil {
			remaining := record.ExpiresAt.Sub(now)
			lastMinuteDefense = remaining > 0 && remaining <= model.LastMinuteDefenseWindowHours*time.Hour
		}
		record.DefenseCount++
		record.ExpiresAt = &expiresAt

	case actorHasVengeance:
		// リベンジターゲットを持つアクターの奪取は奪還
		// （所有権移転の仕組みは獲得と同一、報告上の区別のみ）
		interaction = model.InteractionRecapture
		previousOwnerID = cr.previousOwner(record, actorID, now)
		cr.transferOwnership(record, actorID, now, expiresAt)

	case record.HasOwner() && !record.IsExpired(now) && record.OwnerID != actorID:
		// 有効期限内の他人セルの奪取は強奪。被害者にリベンジターゲットを作成する
		interaction = model.InteractionSteal
		previousOwnerID = record.OwnerID
		record.TimesStolen++
		if record.TimesStolen >= model.HotSpotStealThreshold {
			record.IsHotSpot = true
		}
		transition.CreateVengeance = &model.VengeanceTarget{
			CellID:    cellID,
			VictimID:  previousOwnerID,
			ThiefID:   actorID,
			StolenAt:  now,
			ExpiresAt: expiresAt.Add(model.VengeanceGraceHours * time.Hour),
			XPReward:  model.DefaultVengeanceXPReward,
		}
		cr.transferOwnership(record, actorID, now, expiresAt)

	default:
		// 未所有セルまたは失効済みセルの獲得
		interaction = model.InteractionConquest
		previousOwnerID = cr.previousOwner(record, actorID, now)
		cr.transferOwnership(record, actorID, now, expiresAt)
	}

	record.ActivityID = activityID

	// アクターが所有者になった時点で、アクター自身のこのセルに対する
	// リベンジターゲットは必ず削除する（ゴーストターゲットの一掃）
	transition.DeleteVengeanceUserIDs = []string{actorID}

	transition.Record = record
	transition.Event = &model.TerritoryEvent{
		EventID:           uuid.New().String(),
		Interaction:       interaction,
		CellID:            cellID,
		ActorID:           actorID,
		PreviousOwnerID:   previousOwnerID,
		ActivityID:        activityID,
		OccurredAt:        now,
		LastMinuteDefense: lastMinuteDefense,
	}
	transition.History = &model.HistoryEntry{
		CellID:          cellID,
		ActivityID:      activityID,
		ActorID:         actorID,
		Interaction:     interaction,
		PreviousOwnerID: previousOwnerID,
		OccurredAt:      now,
	}

	return transition, nil
}

// prepareRecord は遷移対象のレコードを用意する（新規セルは派生フィールドを計算）
func (cr *ConquestRules) prepareRecord(current *model.OwnershipRecord, cellID string) (*model.OwnershipRecord, error) {
	if current != nil {
		clone := *current
		return &clone, nil
	}

	x, y, err := helper.ParseCellID(cellID)
	if err != nil {
		return nil, fmt.Errorf("セル遷移の準備に失敗: %w", err)
	}

	center := helper.CellCenter(x, y, cr.cfg.CellSizeDegrees)
	return &model.OwnershipRecord{
		CellID:   cellID,
		X:        x,
		Y:        y,
		Center:   &model.Location{Latitude: center.Lat, Longitude: center.Lng},
		Boundary: helper.CellBoundary(x, y, cr.cfg.CellSizeDegrees),
		Geohash:  helper.CellGeohash(center),
	}, nil
}

// previousOwner はイベントに記録すべき直前の有効な所有者を返す
func (cr *ConquestRules) previousOwner(record *model.OwnershipRecord, actorID string, now time.Time) string {
	if record.HasOwner() && record.OwnerID != actorID && !record.IsExpired(now) {
		return record.OwnerID
	}
	return ""
}

// transferOwnership は所有権をアクターに移転する共通処理
func (cr *ConquestRules) transferOwnership(record *model.OwnershipRecord, actorID string, now time.Time, expiresAt time.Time) {
	record.OwnerID = actorID
	if record.FirstConqueredAt == nil {
		first := now
		record.FirstConqueredAt = &first
	}
	last := now
	record.LastConqueredAt = &last
	record.ExpiresAt = &expiresAt
	record.DefenseCount = 0
}

package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"Territory-App/internal/domain/model"
	"Territory-App/internal/domain/repository"
)

// ReconcileUsecase は整合性ドリフトを検出・修復するオフライン照合ユースケース
// 対象は (1) ゴーストリベンジターゲット (2) 双方向の強奪カウンターのズレ
type ReconcileUsecase struct {
	territoryRepo repository.TerritoryRepository
	vengeanceRepo repository.VengeanceRepository
	historyRepo   repository.HistoryRepository // nil可（カウンター照合を省略）
}

// NewReconcileUsecase は新しいReconcileUsecaseインスタンスを作成
func NewReconcileUsecase(
	territoryRepo repository.TerritoryRepository,
	vengeanceRepo repository.VengeanceRepository,
	historyRepo repository.HistoryRepository,
) *ReconcileUsecase {
	return &ReconcileUsecase{
		territoryRepo: territoryRepo,
		vengeanceRepo: vengeanceRepo,
		historyRepo:   historyRepo,
	}
}

// ReconcileReport は照合スイープの実施結果
type ReconcileReport struct {
	GhostTargetsRemoved   int `json:"ghost_targets_removed"`
	ExpiredTargetsRemoved int `json:"expired_targets_removed"`
	RivalryPatches        int `json:"rivalry_patches"`
}

// ReconcileUserTargets は指定ユーザーのリベンジターゲットを所有状態と突き合わせる
// 被害者が現在所有しているセルを指すターゲット（ゴースト）と失効済みターゲットを削除する
func (u *ReconcileUsecase) ReconcileUserTargets(ctx context.Context, userID string) (*ReconcileReport, error) {
	targets, err := u.vengeanceRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("リベンジターゲット一覧の取得失敗: %w", err)
	}

	report := &ReconcileReport{}
	if len(targets) == 0 {
		return report, nil
	}

	cellIDs := make([]string, 0, len(targets))
	for _, target := range targets {
		cellIDs = append(cellIDs, target.CellID)
	}

	records, err := u.territoryRepo.GetByIDs(ctx, cellIDs)
	if err != nil {
		return nil, fmt.Errorf("照合対象セルの取得失敗: %w", err)
	}
	owners := make(map[string]string, len(records))
	for _, record := range records {
		owners[record.CellID] = record.OwnerID
	}

	now := time.Now()
	for _, target := range targets {
		switch {
		case owners[target.CellID] == userID:
			// 被害者が既に所有しているセルを指すターゲットはゴースト（定義済みバグクラス）
			if err := u.vengeanceRepo.Delete(ctx, userID, target.CellID); err != nil {
				log.Printf("⚠️ ゴーストターゲットの削除失敗 (user=%s cell=%s): %v", userID, target.CellID, err)
				continue
			}
			report.GhostTargetsRemoved++
		case target.IsExpired(now):
			if err := u.vengeanceRepo.Delete(ctx, userID, target.CellID); err != nil {
				log.Printf("⚠️ 失効ターゲットの削除失敗 (user=%s cell=%s): %v", userID, target.CellID, err)
				continue
			}
			report.ExpiredTargetsRemoved++
		}
	}

	if report.GhostTargetsRemoved > 0 || report.ExpiredTargetsRemoved > 0 {
		log.Printf("✅ リベンジターゲット照合完了: user=%s ゴースト:%d 失効:%d",
			userID, report.GhostTargetsRemoved, report.ExpiredTargetsRemoved)
	}
	return report, nil
}

// ReconcileRivalries は双方向の強奪カウンターを突き合わせ、少ない側を正とせず
// 大きい方の値（取りこぼしがない側）でパッチする
func (u *ReconcileUsecase) ReconcileRivalries(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}
	if u.historyRepo == nil {
		return report, nil
	}

	rivalries, err := u.historyRepo.ListRivalries(ctx)
	if err != nil {
		return nil, fmt.Errorf("ライバル関係カウンターの列挙失敗: %w", err)
	}

	for _, side := range rivalries {
		other, err := u.historyRepo.GetRivalry(ctx, side.RivalID, side.UserID)
		if err != nil {
			log.Printf("⚠️ 相手側カウンターの取得失敗 (user=%s rival=%s): %v", side.RivalID, side.UserID, err)
			continue
		}

		// 「自分が奪った回数」と相手側の「奪われた回数」は一致していなければならない
		stolenFrom := maxInt(side.StolenFromRival, other.StolenByRival)
		stolenBy := maxInt(side.StolenByRival, other.StolenFromRival)

		if side.StolenFromRival != stolenFrom || side.StolenByRival != stolenBy {
			patched := side
			patched.StolenFromRival = stolenFrom
			patched.StolenByRival = stolenBy
			if err := u.historyRepo.PutRivalry(ctx, &patched); err != nil {
				log.Printf("⚠️ カウンターのパッチ失敗 (user=%s rival=%s): %v", side.UserID, side.RivalID, err)
				continue
			}
			report.RivalryPatches++
		}

		if other.StolenByRival != stolenFrom || other.StolenFromRival != stolenBy {
			patched := model.Rivalry{
				UserID:          other.UserID,
				RivalID:         other.RivalID,
				StolenFromRival: stolenBy,
				StolenByRival:   stolenFrom,
			}
			if err := u.historyRepo.PutRivalry(ctx, &patched); err != nil {
				log.Printf("⚠️ カウンターのパッチ失敗 (user=%s rival=%s): %v", other.UserID, other.RivalID, err)
				continue
			}
			report.RivalryPatches++
		}
	}

	if report.RivalryPatches > 0 {
		log.Printf("✅ ライバル関係カウンター照合完了: パッチ:%d", report.RivalryPatches)
	}
	return report, nil
}

// maxInt 2値の大きい方を返す
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

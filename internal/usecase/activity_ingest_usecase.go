package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"Territory-App/internal/domain/model"
	"Territory-App/internal/domain/repository"
	"Territory-App/internal/domain/service"
)

// ReverseGeocoder は地名ラベル補完用の逆ジオコーディングプロバイダ
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// ActivityIngestUsecase は完了済みアクティビティを領土処理に変換するユースケース
// 経路解決 → セル単位の遷移適用 → 結果集計の制御フローを担当する
type ActivityIngestUsecase struct {
	cfg            *model.TerritoryConfig
	resolver       *service.PathResolver
	rules          *service.ConquestRules
	territoryRepo  repository.TerritoryRepository
	activitiesRepo repository.ActivitiesRepository // nil可（アクティビティ保存を省略）
	historyRepo    repository.HistoryRepository    // nil可（監査ミラーを省略）
	geocoder       ReverseGeocoder                 // nil可（地名ラベル補完を省略）
	maxGoroutines  int
}

// NewActivityIngestUsecase は新しいActivityIngestUsecaseインスタンスを作成
func NewActivityIngestUsecase(
	cfg *model.TerritoryConfig,
	territoryRepo repository.TerritoryRepository,
	activitiesRepo repository.ActivitiesRepository,
	historyRepo repository.HistoryRepository,
	geocoder ReverseGeocoder,
) *ActivityIngestUsecase {
	return &ActivityIngestUsecase{
		cfg:            cfg,
		resolver:       service.NewPathResolver(cfg),
		rules:          service.NewConquestRules(cfg),
		territoryRepo:  territoryRepo,
		activitiesRepo: activitiesRepo,
		historyRepo:    historyRepo,
		geocoder:       geocoder,
		maxGoroutines:  5, // 同時実行数を制限
	}
}

// cellOutcome はセル1件の適用結果
type cellOutcome struct {
	CellID string
	Event  *model.TerritoryEvent
	Err    error
}

// ProcessActivity はアクティビティ1件の領土処理を実行する
// 屋内アクティビティは処理対象外のため (nil, nil) を返す（エラーではない）
// セル単位の失敗は他のセルをブロックせず、部分適用として結果に集計される
func (u *ActivityIngestUsecase) ProcessActivity(ctx context.Context, activity *model.Activity) (*model.TerritoryResult, error) {
	if activity == nil {
		return nil, fmt.Errorf("アクティビティがnilです")
	}
	if activity.ID == "" || activity.UserID == "" {
		return nil, fmt.Errorf("アクティビティIDとユーザーIDは必須です")
	}

	// 屋内アクティビティは領土処理をスキップする（定義済みの境界であってエラーではない）
	if !activity.IsOutdoor() {
		log.Printf("⏭️ 屋内アクティビティのため領土処理をスキップ: %s (%s)", activity.ID, activity.ActivityType)
		return nil, nil
	}

	cells, err := u.resolver.ResolveCells(activity.Route)
	if err != nil {
		return nil, fmt.Errorf("経路のセル解決失敗: %w", err)
	}

	now := activity.EndDate
	if now.IsZero() {
		now = time.Now()
	}

	log.Printf("🚀 領土処理開始: activity=%s user=%s cells=%d", activity.ID, activity.UserID, len(cells))
	start := time.Now()

	// セマフォを使用して同時実行数を制限しつつセル単位で並行適用する
	// セルは互いに独立しており、セル間の不変条件は不要
	semaphore := make(chan struct{}, u.maxGoroutines)
	outcomes := make(chan cellOutcome, len(cells))
	var wg sync.WaitGroup

	for _, cellID := range cells {
		wg.Add(1)
		go func(cellID string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			event, err := u.territoryRepo.ApplyCellTransition(ctx, cellID, activity.UserID, activity.ID,
				func(current *model.OwnershipRecord, actorHasVengeance bool) (*model.CellTransition, error) {
					return u.rules.DecideTransition(current, cellID, activity.UserID, activity.ID, actorHasVengeance, now)
				})
			outcomes <- cellOutcome{CellID: cellID, Event: event, Err: err}
		}(cellID)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	result := &model.TerritoryResult{
		ActivityID: activity.ID,
		TotalCells: len(cells),
	}

	for outcome := range outcomes {
		if outcome.Err != nil {
			result.FailedCells++
			log.Printf("⚠️ セル %s の遷移適用エラー: %v", outcome.CellID, outcome.Err)
			continue
		}
		if outcome.Event == nil {
			// 同一アクティビティの再適用（リトライ）は冪等スキップ
			result.SkippedCells++
			continue
		}

		result.Events = append(result.Events, outcome.Event)
		switch outcome.Event.Interaction {
		case model.InteractionConquest:
			result.ConqueredCells = append(result.ConqueredCells, outcome.CellID)
		case model.InteractionDefense:
			result.DefendedCells = append(result.DefendedCells, outcome.CellID)
		case model.InteractionSteal:
			result.StolenCells = append(result.StolenCells, outcome.CellID)
			log.Printf("⚔️ %s: cell=%s actor=%s victim=%s",
				model.GetInteractionJapaneseName(outcome.Event.Interaction),
				outcome.CellID, outcome.Event.ActorID, outcome.Event.PreviousOwnerID)
		case model.InteractionRecapture:
			result.RecapturedCells = append(result.RecapturedCells, outcome.CellID)
			log.Printf("⚔️ %s: cell=%s actor=%s victim=%s",
				model.GetInteractionJapaneseName(outcome.Event.Interaction),
				outcome.CellID, outcome.Event.ActorID, outcome.Event.PreviousOwnerID)
		}
	}

	// 出力を決定的にするためセルIDでソートする
	sort.Strings(result.ConqueredCells)
	sort.Strings(result.DefendedCells)
	sort.Strings(result.StolenCells)
	sort.Strings(result.RecapturedCells)
	sort.Slice(result.Events, func(i, j int) bool {
		return result.Events[i].CellID < result.Events[j].CellID
	})

	u.postProcess(ctx, activity, result)

	log.Printf("✅ 領土処理完了: activity=%s %v (獲得:%d 防衛:%d 強奪:%d 奪還:%d 失敗:%d)",
		activity.ID, time.Since(start),
		len(result.ConqueredCells), len(result.DefendedCells),
		len(result.StolenCells), len(result.RecapturedCells), result.FailedCells)

	return result, nil
}

// postProcess は所有権遷移と独立したベストエフォートの後続処理を実行する
// （監査ミラー、ライバル関係カウンター、アクティビティ保存、地名ラベル補完）
// ここでの失敗は領土処理の結果には影響しない
func (u *ActivityIngestUsecase) postProcess(ctx context.Context, activity *model.Activity, result *model.TerritoryResult) {
	if u.historyRepo != nil {
		for _, event := range result.Events {
			entry := &model.HistoryEntry{
				CellID:          event.CellID,
				ActivityID:      event.ActivityID,
				ActorID:         event.ActorID,
				Interaction:     event.Interaction,
				PreviousOwnerID: event.PreviousOwnerID,
				OccurredAt:      event.OccurredAt,
			}
			if err := u.historyRepo.Append(ctx, entry); err != nil {
				log.Printf("⚠️ 履歴ミラーの追記失敗 (cell=%s): %v", event.CellID, err)
			}
			if event.Interaction == model.InteractionSteal && event.PreviousOwnerID != "" {
				if err := u.historyRepo.RecordSteal(ctx, event.ActorID, event.PreviousOwnerID); err != nil {
					log.Printf("⚠️ 強奪カウンターの加算失敗 (thief=%s victim=%s): %v", event.ActorID, event.PreviousOwnerID, err)
				}
			}
		}
	}

	if u.activitiesRepo != nil {
		if err := u.activitiesRepo.Create(ctx, activity.ToActivityDB(result.TotalCells)); err != nil {
			log.Printf("⚠️ アクティビティの保存失敗 (id=%s): %v", activity.ID, err)
		}
	}

	if u.geocoder != nil && len(result.ConqueredCells) > 0 {
		// 地名ラベルは非同期で補完する（所有ロジックを決してブロックしない）
		go u.fillLocationLabels(result.ConqueredCells)
	}
}

// fillLocationLabels は獲得セルの地名ラベルを逆ジオコーディングで補完する
func (u *ActivityIngestUsecase) fillLocationLabels(cellIDs []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := u.territoryRepo.GetByIDs(ctx, cellIDs)
	if err != nil {
		log.Printf("⚠️ 地名ラベル補完用のセル取得失敗: %v", err)
		return
	}

	for _, record := range records {
		if record.LocationLabel != "" || record.Center == nil {
			continue
		}
		label, err := u.geocoder.ReverseGeocode(ctx, record.Center.Latitude, record.Center.Longitude)
		if err != nil {
			log.Printf("⚠️ セル %s の逆ジオコーディング失敗: %v", record.CellID, err)
			continue
		}
		if label == "" {
			continue
		}
		if err := u.territoryRepo.UpdateLocationLabel(ctx, record.CellID, label); err != nil {
			log.Printf("⚠️ セル %s の地名ラベル更新失敗: %v", record.CellID, err)
		}
	}
}

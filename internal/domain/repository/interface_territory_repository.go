package repository

import (
	"context"

	"Territory-App/internal/domain/model"
)

// TransitionDecider はトランザクション内で現在状態から遷移内容を決定するコールバック
// current はセルが未作成の場合nil、actorHasVengeance はアクターが
// このセルの有効なリベンジターゲットを持つ場合true
type TransitionDecider func(current *model.OwnershipRecord, actorHasVengeance bool) (*model.CellTransition, error)

// ShardStream はシャード購読のストリームハンドル
// Ready は最初のスナップショット配信完了後にクローズされる
type ShardStream struct {
	Changes <-chan model.CellChange
	Ready   <-chan struct{}
	Cancel  func()
}

// TerritoryRepository は領土状態の空間ストアインターフェース
// 所有権の書き込みはセル単位のトランザクション経由のみ（単一ライター規律）
type TerritoryRepository interface {
	// ApplyCellTransition はセル1件の遷移をトランザクションで適用する
	// 同一アクティビティの再適用など適用不要の場合は (nil, nil) を返す
	ApplyCellTransition(ctx context.Context, cellID, actorID, activityID string, decide TransitionDecider) (*model.TerritoryEvent, error)

	// GetByIDs はセルIDリストで一括取得する（ストアのinクエリ上限に合わせて分割）
	GetByIDs(ctx context.Context, cellIDs []string) ([]*model.OwnershipRecord, error)

	// GetByOwner は指定ユーザーが所有する全セルを取得する（ローカルキャッシュ照合用）
	GetByOwner(ctx context.Context, userID string) ([]*model.OwnershipRecord, error)

	// GetByGeohashPrefix は指定シャード範囲内のセルを取得する
	GetByGeohashPrefix(ctx context.Context, prefix string) ([]*model.OwnershipRecord, error)

	// SubscribeShard は指定シャード範囲のライブ購読を開始する
	SubscribeShard(ctx context.Context, prefix string) (*ShardStream, error)

	// UpdateLocationLabel は地名ラベルを非同期更新する（所有ロジックとは独立）
	UpdateLocationLabel(ctx context.Context, cellID, label string) error
}

package repository

import (
	"context"

	"Territory-App/internal/domain/model"
)

// VengeanceStream はユーザー単位のリベンジターゲット購読ハンドル
// シャード分割されない単一ストリームで、ビューポート変更の影響を受けない
type VengeanceStream struct {
	Changes <-chan model.VengeanceChange
	Cancel  func()
}

// VengeanceRepository はリベンジターゲットのストアインターフェース
// 作成はセル遷移トランザクションの一部として行われるため、ここには現れない
type VengeanceRepository interface {
	// ListByUser は指定ユーザーのリベンジターゲット一覧を取得する
	ListByUser(ctx context.Context, userID string) ([]*model.VengeanceTarget, error)

	// Get は指定ユーザー・セルのリベンジターゲットを取得する（存在しない場合は nil, nil）
	Get(ctx context.Context, userID, cellID string) (*model.VengeanceTarget, error)

	// Delete は指定ユーザー・セルのリベンジターゲットを削除する
	Delete(ctx context.Context, userID, cellID string) error

	// Watch は指定ユーザーのリベンジターゲットのライブ購読を開始する
	Watch(ctx context.Context, userID string) (*VengeanceStream, error)
}

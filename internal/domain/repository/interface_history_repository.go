package repository

import (
	"context"

	"Territory-App/internal/domain/model"
)

// HistoryRepository は監査用の追記専用履歴とライバル関係カウンターのストア
// （Firestore側の履歴サブコレクションのミラーであり、整合性検査のSQLをここで実行する）
type HistoryRepository interface {
	// Append はインタラクション履歴を1件追記する（同一セル・同一アクティビティは冪等）
	Append(ctx context.Context, entry *model.HistoryEntry) error

	// RecordSteal は強奪1件を両者のキャッシュ（泥棒側・被害者側）に記録する
	RecordSteal(ctx context.Context, thiefID, victimID string) error

	// GetRivalry は userID 側から見たライバル関係カウンターを取得する（未記録ならゼロ値）
	GetRivalry(ctx context.Context, userID, rivalID string) (*model.Rivalry, error)

	// PutRivalry はカウンターを指定値で上書きする（照合パッチ用）
	PutRivalry(ctx context.Context, rivalry *model.Rivalry) error

	// ListRivalries は全ライバル関係カウンターを列挙する（照合スイープ用）
	ListRivalries(ctx context.Context) ([]model.Rivalry, error)
}

package repository

import (
	"context"

	"Territory-App/internal/domain/model"
)

// ActivitiesRepository は完了済みアクティビティのストアインターフェース
type ActivitiesRepository interface {
	// Create は完了済みアクティビティを保存する
	Create(ctx context.Context, activity *model.ActivityDB) error

	// GetByID はアクティビティIDで1件取得する
	GetByID(ctx context.Context, id string) (*model.Activity, error)

	// ListByUser は指定ユーザーのアクティビティ一覧を取得する
	ListByUser(ctx context.Context, userID string) ([]*model.Activity, error)
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"Territory-App/internal/database"
	"Territory-App/internal/domain/model"
	"Territory-App/internal/domain/repository"
)

// SupabaseActivitiesRepository はSupabaseを使用した完了済みアクティビティストアの実装
type SupabaseActivitiesRepository struct {
	client *database.SupabaseClient
}

// NewSupabaseActivitiesRepository 新しいSupabaseActivitiesRepositoryインスタンスを作成
func NewSupabaseActivitiesRepository(client *database.SupabaseClient) repository.ActivitiesRepository {
	return &SupabaseActivitiesRepository{
		client: client,
	}
}

func (r *SupabaseActivitiesRepository) Create(ctx context.Context, activity *model.ActivityDB) error {
	data, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("アクティビティデータのJSONマーシャル失敗: %w", err)
	}

	_, _, err = r.client.GetClient().From("activities").Insert(string(data), false, "", "", "").Execute()
	if err != nil {
		return fmt.Errorf("アクティビティデータの作成失敗: %w", err)
	}

	return nil
}

func (r *SupabaseActivitiesRepository) GetByID(ctx context.Context, id string) (*model.Activity, error) {
	var activities []model.ActivityDB
	data, count, err := r.client.GetClient().From("activities").Select("*", "exact", false).Eq("id", id).Execute()
	if err != nil {
		return nil, fmt.Errorf("アクティビティデータの取得失敗: %w", err)
	}
	_ = count

	if err := json.Unmarshal([]byte(data), &activities); err != nil {
		return nil, fmt.Errorf("アクティビティデータのJSONアンマーシャル失敗: %w", err)
	}

	if len(activities) == 0 {
		return nil, fmt.Errorf("アクティビティID %s が見つかりません", id)
	}

	return activities[0].ToActivity(), nil
}

func (r *SupabaseActivitiesRepository) ListByUser(ctx context.Context, userID string) ([]*model.Activity, error) {
	var activities []model.ActivityDB
	data, count, err := r.client.GetClient().From("activities").Select("*", "exact", false).Eq("user_id", userID).Execute()
	if err != nil {
		return nil, fmt.Errorf("ユーザー %s のアクティビティ取得失敗: %w", userID, err)
	}
	_ = count

	if err := json.Unmarshal([]byte(data), &activities); err != nil {
		return nil, fmt.Errorf("アクティビティデータのJSONアンマーシャル失敗: %w", err)
	}

	result := make([]*model.Activity, 0, len(activities))
	for i := range activities {
		result = append(result, activities[i].ToActivity())
	}
	return result, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"Territory-App/internal/domain/model"
	"Territory-App/internal/domain/repository"
	"Territory-App/internal/infrastructure/database"
)

// PostgresHistoryRepository はPostgreSQL直接接続による履歴・ライバル関係ストアの実装
// Firestore側の履歴サブコレクションのミラーで、監査と整合性検査のSQLをここで実行する
type PostgresHistoryRepository struct {
	client *database.PostgreSQLClient
}

// NewPostgresHistoryRepository 新しいPostgresHistoryRepositoryインスタンスを作成
func NewPostgresHistoryRepository(client *database.PostgreSQLClient) repository.HistoryRepository {
	return &PostgresHistoryRepository{
		client: client,
	}
}

func (r *PostgresHistoryRepository) Append(ctx context.Context, entry *model.HistoryEntry) error {
	query := `
		INSERT INTO territory_history (cell_id, activity_id, actor_id, interaction, previous_owner_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cell_id, activity_id) DO NOTHING`

	_, err := r.client.DB.ExecContext(ctx, query,
		entry.CellID, entry.ActivityID, entry.ActorID, entry.Interaction,
		nullableString(entry.PreviousOwnerID), entry.OccurredAt)
	if err != nil {
		return fmt.Errorf("履歴の追記失敗: %w", err)
	}
	return nil
}

// RecordSteal は強奪1件を泥棒側・被害者側の両方のキャッシュ行に記録する
// 片側の書き込みだけが失敗した場合のズレは照合スイープで修復される前提
func (r *PostgresHistoryRepository) RecordSteal(ctx context.Context, thiefID, victimID string) error {
	thiefQuery := `
		INSERT INTO rivalries (user_id, rival_id, stolen_from_rival, stolen_by_rival)
		VALUES ($1, $2, 1, 0)
		ON CONFLICT (user_id, rival_id) DO UPDATE SET stolen_from_rival = rivalries.stolen_from_rival + 1`
	if _, err := r.client.DB.ExecContext(ctx, thiefQuery, thiefID, victimID); err != nil {
		return fmt.Errorf("泥棒側カウンターの加算失敗: %w", err)
	}

	victimQuery := `
		INSERT INTO rivalries (user_id, rival_id, stolen_from_rival, stolen_by_rival)
		VALUES ($1, $2, 0, 1)
		ON CONFLICT (user_id, rival_id) DO UPDATE SET stolen_by_rival = rivalries.stolen_by_rival + 1`
	if _, err := r.client.DB.ExecContext(ctx, victimQuery, victimID, thiefID); err != nil {
		return fmt.Errorf("被害者側カウンターの加算失敗: %w", err)
	}

	return nil
}

func (r *PostgresHistoryRepository) GetRivalry(ctx context.Context, userID, rivalID string) (*model.Rivalry, error) {
	query := `SELECT stolen_from_rival, stolen_by_rival FROM rivalries WHERE user_id = $1 AND rival_id = $2`

	rivalry := &model.Rivalry{UserID: userID, RivalID: rivalID}
	err := r.client.DB.QueryRowContext(ctx, query, userID, rivalID).Scan(&rivalry.StolenFromRival, &rivalry.StolenByRival)
	if err != nil {
		if err == sql.ErrNoRows {
			return rivalry, nil
		}
		return nil, fmt.Errorf("ライバル関係カウンターの取得失敗: %w", err)
	}
	return rivalry, nil
}

func (r *PostgresHistoryRepository) PutRivalry(ctx context.Context, rivalry *model.Rivalry) error {
	query := `
		INSERT INTO rivalries (user_id, rival_id, stolen_from_rival, stolen_by_rival)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, rival_id) DO UPDATE SET stolen_from_rival = $3, stolen_by_rival = $4`

	_, err := r.client.DB.ExecContext(ctx, query,
		rivalry.UserID, rivalry.RivalID, rivalry.StolenFromRival, rivalry.StolenByRival)
	if err != nil {
		return fmt.Errorf("ライバル関係カウンターの修正失敗: %w", err)
	}
	return nil
}

func (r *PostgresHistoryRepository) ListRivalries(ctx context.Context) ([]model.Rivalry, error) {
	query := `SELECT user_id, rival_id, stolen_from_rival, stolen_by_rival FROM rivalries ORDER BY user_id, rival_id`

	rows, err := r.client.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ライバル関係カウンターの列挙失敗: %w", err)
	}
	defer rows.Close()

	var rivalries []model.Rivalry
	for rows.Next() {
		var rivalry model.Rivalry
		if err := rows.Scan(&rivalry.UserID, &rivalry.RivalID, &rivalry.StolenFromRival, &rivalry.StolenByRival); err != nil {
			return nil, fmt.Errorf("ライバル関係カウンターのスキャンエラー: %w", err)
		}
		rivalries = append(rivalries, rivalry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ライバル関係カウンターの読み取りエラー: %w", err)
	}

	return rivalries, nil
}

// nullableString 空文字列をNULLとして扱うためのヘルパー
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

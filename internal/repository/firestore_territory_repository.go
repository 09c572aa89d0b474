package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"Territory-App/internal/domain/model"
	"Territory-App/internal/domain/repository"
)

const (
	territoriesCollection     = "territories"
	historySubcollection      = "history"
	usersCollection           = "users"
	vengeanceSubcollection    = "vengeanceTargets"
	shardChangeBufferSize     = 64
	// geohashRangeUpperSentinel はプレフィックス範囲クエリの上限に付加するUnicode番兵
	geohashRangeUpperSentinel = "\uf8ff"
)

// FirestoreTerritoryRepository はFirestoreを使用した領土ストアの実装
type FirestoreTerritoryRepository struct {
	client *firestore.Client
}

// NewFirestoreTerritoryRepository 新しいFirestoreTerritoryRepositoryインスタンスを作成
func NewFirestoreTerritoryRepository(client *firestore.Client) repository.TerritoryRepository {
	return &FirestoreTerritoryRepository{client: client}
}

// ApplyCellTransition はセル1件の所有権遷移をFirestoreトランザクションで適用する
// 履歴ドキュメントのIDにアクティビティIDを使うことで再適用を冪等にする
func (r *FirestoreTerritoryRepository) ApplyCellTransition(ctx context.Context, cellID, actorID, activityID string, decide repository.TransitionDecider) (*model.TerritoryEvent, error) {
	cellRef := r.client.Collection(territoriesCollection).Doc(cellID)
	historyRef := cellRef.Collection(historySubcollection).Doc(activityID)
	actorVengeanceRef := r.vengeanceRef(actorID, cellID)

	var event *model.TerritoryEvent

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		event = nil // トランザクションがリトライされる場合に備えてリセット

		// Firestoreのトランザクションは全ての読み取りを書き込みより先に行う必要がある

		// 1. 履歴ドキュメントが既に存在する場合は適用済み（冪等スキップ）
		if _, err := tx.Get(historyRef); err == nil {
			return nil
		} else if status.Code(err) != codes.NotFound {
			return fmt.Errorf("履歴ドキュメントの確認失敗: %w", err)
		}

		// 2. 現在のセル状態を読み取る（未作成の場合はnil）
		var current *model.OwnershipRecord
		snap, err := tx.Get(cellRef)
		if err == nil {
			var ft model.FirestoreTerritory
			if err := snap.DataTo(&ft); err != nil {
				return fmt.Errorf("領土ドキュメントの変換失敗: %w", err)
			}
			current = ft.ToOwnershipRecord()
		} else if status.Code(err) != codes.NotFound {
			return fmt.Errorf("領土ドキュメントの取得失敗: %w", err)
		}

		// 3. アクターのこのセルに対するリベンジターゲットの有無を確認する
		hasVengeance := false
		if vsnap, err := tx.Get(actorVengeanceRef); err == nil {
			var fv model.FirestoreVengeanceTarget
			if err := vsnap.DataTo(&fv); err != nil {
				return fmt.Errorf("リベンジターゲットの変換失敗: %w", err)
			}
			hasVengeance = !fv.ToVengeanceTarget().IsExpired(time.Now())
		} else if status.Code(err) != codes.NotFound {
			return fmt.Errorf("リベンジターゲットの取得失敗: %w", err)
		}

		// 4. ドメインルールで遷移を決定する
		transition, err := decide(current, hasVengeance)
		if err != nil {
			return fmt.Errorf("セル遷移の決定失敗: %w", err)
		}
		if transition.Skip {
			return nil
		}

		// 5. セル本体・履歴・リベンジターゲットを同一トランザクションで書き込む
		if err := tx.Set(cellRef, transition.Record.ToFirestoreTerritory()); err != nil {
			return fmt.Errorf("領土ドキュメントの書き込み失敗: %w", err)
		}
		if err := tx.Set(historyRef, transition.History); err != nil {
			return fmt.Errorf("履歴ドキュメントの書き込み失敗: %w", err)
		}
		if v := transition.CreateVengeance; v != nil {
			if err := tx.Set(r.vengeanceRef(v.VictimID, v.CellID), v.ToFirestoreVengeanceTarget()); err != nil {
				return fmt.Errorf("リベンジターゲットの作成失敗: %w", err)
			}
		}
		for _, userID := range transition.DeleteVengeanceUserIDs {
			if err := tx.Delete(r.vengeanceRef(userID, cellID)); err != nil {
				return fmt.Errorf("リベンジターゲットの削除失敗: %w", err)
			}
		}

		event = transition.Event
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("セル %s の遷移トランザクション失敗: %w", cellID, err)
	}

	return event, nil
}

// GetByIDs はセルIDリストで領土レコードを一括取得する
// Firestoreのinクエリ上限に合わせてチャンク分割する
func (r *FirestoreTerritoryRepository) GetByIDs(ctx context.Context, cellIDs []string) ([]*model.OwnershipRecord, error) {
	var records []*model.OwnershipRecord

	for start := 0; start < len(cellIDs); start += model.FirestoreInQueryLimit {
		end := start + model.FirestoreInQueryLimit
		if end > len(cellIDs) {
			end = len(cellIDs)
		}
		chunk := cellIDs[start:end]

		docs, err := r.client.Collection(territoriesCollection).
			Where("cell_id", "in", chunk).
			Documents(ctx).GetAll()
		if err != nil {
			return nil, fmt.Errorf("セルの一括取得失敗: %w", err)
		}

		for _, doc := range docs {
			var ft model.FirestoreTerritory
			if err := doc.DataTo(&ft); err != nil {
				return nil, fmt.Errorf("領土ドキュメントの変換失敗: %w", err)
			}
			records = append(records, ft.ToOwnershipRecord())
		}
	}

	return records, nil
}

// GetByOwner は指定ユーザーが所有する全セルを取得する
func (r *FirestoreTerritoryRepository) GetByOwner(ctx context.Context, userID string) ([]*model.OwnershipRecord, error) {
	docs, err := r.client.Collection(territoriesCollection).
		Where("owner_id", "==", userID).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("ユーザー %s の所有セル取得失敗: %w", userID, err)
	}

	records := make([]*model.OwnershipRecord, 0, len(docs))
	for _, doc := range docs {
		var ft model.FirestoreTerritory
		if err := doc.DataTo(&ft); err != nil {
			return nil, fmt.Errorf("領土ドキュメントの変換失敗: %w", err)
		}
		records = append(records, ft.ToOwnershipRecord())
	}
	return records, nil
}

// GetByGeohashPrefix は指定シャード範囲内のセルを一括取得する
func (r *FirestoreTerritoryRepository) GetByGeohashPrefix(ctx context.Context, prefix string) ([]*model.OwnershipRecord, error) {
	docs, err := r.shardQuery(prefix).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("シャード %s のセル取得失敗: %w", prefix, err)
	}

	records := make([]*model.OwnershipRecord, 0, len(docs))
	for _, doc := range docs {
		var ft model.FirestoreTerritory
		if err := doc.DataTo(&ft); err != nil {
			return nil, fmt.Errorf("領土ドキュメントの変換失敗: %w", err)
		}
		records = append(records, ft.ToOwnershipRecord())
	}
	return records, nil
}

// SubscribeShard は指定シャード範囲のスナップショットリスナーを開始する
// 最初のスナップショット配信完了後にReadyチャンネルがクローズされ、以降は増分イベントのみ流れる
func (r *FirestoreTerritoryRepository) SubscribeShard(ctx context.Context, prefix string) (*repository.ShardStream, error) {
	subCtx, cancel := context.WithCancel(ctx)

	iter := r.shardQuery(prefix).Snapshots(subCtx)
	changes := make(chan model.CellChange, shardChangeBufferSize)
	ready := make(chan struct{})

	go func() {
		defer close(changes)
		defer iter.Stop()

		first := true
		for {
			snap, err := iter.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled && subCtx.Err() == nil {
					log.Printf("❌ シャード %s のスナップショット受信エラー: %v", prefix, err)
				}
				return
			}

			for _, change := range snap.Changes {
				var ft model.FirestoreTerritory
				if err := change.Doc.DataTo(&ft); err != nil {
					log.Printf("⚠️ シャード %s のドキュメント変換失敗: %v", prefix, err)
					continue
				}

				cellChange := model.CellChange{
					Kind:   toChangeKind(change.Kind),
					Record: ft.ToOwnershipRecord(),
				}

				select {
				case changes <- cellChange:
				case <-subCtx.Done():
					return
				}
			}

			if first {
				close(ready)
				first = false
			}
		}
	}()

	return &repository.ShardStream{
		Changes: changes,
		Ready:   ready,
		Cancel:  cancel,
	}, nil
}

// UpdateLocationLabel は地名ラベルのみを更新する（所有ロジックとは独立した補完処理）
func (r *FirestoreTerritoryRepository) UpdateLocationLabel(ctx context.Context, cellID, label string) error {
	_, err := r.client.Collection(territoriesCollection).Doc(cellID).Update(ctx, []firestore.Update{
		{Path: "location_label", Value: label},
	})
	if err != nil {
		return fmt.Errorf("セル %s の地名ラベル更新失敗: %w", cellID, err)
	}
	return nil
}

// shardQuery はgeohashカラムに対するシャード範囲クエリを構築する
func (r *FirestoreTerritoryRepository) shardQuery(prefix string) firestore.Query {
	return r.client.Collection(territoriesCollection).
		Where("geohash", ">=", prefix).
		Where("geohash", "<", prefix+geohashRangeUpperSentinel)
}

// vengeanceRef は指定ユーザー・セルのリベンジターゲットのドキュメント参照を返す
func (r *FirestoreTerritoryRepository) vengeanceRef(userID, cellID string) *firestore.DocumentRef {
	return r.client.Collection(usersCollection).Doc(userID).Collection(vengeanceSubcollection).Doc(cellID)
}

// toChangeKind はFirestoreの変更種別をドメインの変更種別に変換する
func toChangeKind(kind firestore.DocumentChangeKind) model.ChangeKind {
	switch kind {
	case firestore.DocumentAdded:
		return model.ChangeAdded
	case firestore.DocumentModified:
		return model.ChangeModified
	default:
		return model.ChangeRemoved
	}
}

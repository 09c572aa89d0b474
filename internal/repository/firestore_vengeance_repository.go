package repository

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"Territory-App/internal/domain/model"
	"Territory-App/internal/domain/repository"
)

const vengeanceChangeBufferSize = 16

// FirestoreVengeanceRepository はFirestoreを使用したリベンジターゲットストアの実装
// 作成はセル遷移トランザクション側で行われるため、ここは参照・削除・購読のみ
type FirestoreVengeanceRepository struct {
	client *firestore.Client
}

// NewFirestoreVengeanceRepository 新しいFirestoreVengeanceRepositoryインスタンスを作成
func NewFirestoreVengeanceRepository(client *firestore.Client) repository.VengeanceRepository {
	return &FirestoreVengeanceRepository{client: client}
}

// ListByUser は指定ユーザーのリベンジターゲット一覧を取得する
func (r *FirestoreVengeanceRepository) ListByUser(ctx context.Context, userID string) ([]*model.VengeanceTarget, error) {
	docs, err := r.targetsCollection(userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("ユーザー %s のリベンジターゲット取得失敗: %w", userID, err)
	}

	targets := make([]*model.VengeanceTarget, 0, len(docs))
	for _, doc := range docs {
		var fv model.FirestoreVengeanceTarget
		if err := doc.DataTo(&fv); err != nil {
			return nil, fmt.Errorf("リベンジターゲットの変換失敗: %w", err)
		}
		targets = append(targets, fv.ToVengeanceTarget())
	}
	return targets, nil
}

// Get は指定ユーザー・セルのリベンジターゲットを取得する（存在しない場合は nil, nil）
func (r *FirestoreVengeanceRepository) Get(ctx context.Context, userID, cellID string) (*model.VengeanceTarget, error) {
	doc, err := r.targetsCollection(userID).Doc(cellID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("リベンジターゲットの取得失敗: %w", err)
	}

	var fv model.FirestoreVengeanceTarget
	if err := doc.DataTo(&fv); err != nil {
		return nil, fmt.Errorf("リベンジターゲットの変換失敗: %w", err)
	}
	return fv.ToVengeanceTarget(), nil
}

// Delete は指定ユーザー・セルのリベンジターゲットを削除する
func (r *FirestoreVengeanceRepository) Delete(ctx context.Context, userID, cellID string) error {
	if _, err := r.targetsCollection(userID).Doc(cellID).Delete(ctx); err != nil {
		return fmt.Errorf("リベンジターゲットの削除失敗: %w", err)
	}
	return nil
}

// Watch は指定ユーザーのリベンジターゲットのスナップショットリスナーを開始する
// セッション中はビューポート変更と無関係に生き続ける単一ストリーム
func (r *FirestoreVengeanceRepository) Watch(ctx context.Context, userID string) (*repository.VengeanceStream, error) {
	subCtx, cancel := context.WithCancel(ctx)

	iter := r.targetsCollection(userID).Snapshots(subCtx)
	changes := make(chan model.VengeanceChange, vengeanceChangeBufferSize)

	go func() {
		defer close(changes)
		defer iter.Stop()

		for {
			snap, err := iter.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled && subCtx.Err() == nil {
					log.Printf("❌ ユーザー %s のリベンジターゲット購読エラー: %v", userID, err)
				}
				return
			}

			for _, change := range snap.Changes {
				var fv model.FirestoreVengeanceTarget
				if err := change.Doc.DataTo(&fv); err != nil {
					log.Printf("⚠️ リベンジターゲットの変換失敗: %v", err)
					continue
				}

				vengeanceChange := model.VengeanceChange{
					Kind:   toChangeKind(change.Kind),
					Target: fv.ToVengeanceTarget(),
				}

				select {
				case changes <- vengeanceChange:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &repository.VengeanceStream{
		Changes: changes,
		Cancel:  cancel,
	}, nil
}

// targetsCollection は指定ユーザーのリベンジターゲットサブコレクションを返す
func (r *FirestoreVengeanceRepository) targetsCollection(userID string) *firestore.CollectionRef {
	return r.client.Collection(usersCollection).Doc(userID).Collection(vengeanceSubcollection)
}

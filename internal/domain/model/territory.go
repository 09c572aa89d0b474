package model

import "time"

// OwnershipRecord はセルの所有状態を表すモデル（領土システムの中心エンティティ）
type OwnershipRecord struct {
	CellID           string      `json:"cell_id"`                    // セルID（例: "100_200"）
	X                int         `json:"x"`                          // グリッドX座標（経度方向）
	Y                int         `json:"y"`                          // グリッドY座標（緯度方向）
	OwnerID          string      `json:"owner_id,omitempty"`         // 所有者のユーザーID（空文字列は未所有）
	Center           *Location   `json:"center"`                     // セル中心座標（セルインデックスから導出、不変）
	Boundary         *GeoPolygon `json:"boundary"`                   // セル境界ポリゴン（不変）
	Geohash          string      `json:"geohash"`                    // 空間シャード検索用のGeohash
	FirstConqueredAt *time.Time  `json:"first_conquered_at"`         // 初回獲得日時
	LastConqueredAt  *time.Time  `json:"last_conquered_at"`          // 最終獲得日時
	ExpiresAt        *time.Time  `json:"expires_at"`                 // 所有権の有効期限
	ActivityID       string      `json:"activity_id"`                // 所有状態を最後に変更したアクティビティID
	DefenseCount     int         `json:"defense_count"`              // 現所有者の防衛回数
	TimesStolen      int         `json:"times_stolen"`               // セルが強奪された累計回数
	IsHotSpot        bool        `json:"is_hot_spot"`                // 争奪が激しいセルの派生フラグ
	LocationLabel    string      `json:"location_label,omitempty"`   // 地名ラベル（非同期で補完、所有ロジックを妨げない）
}

// HasOwner は所有者が記録されているかを判定する
// （owner_idが空のレコードはクエリ上「存在しない」のと等価、履歴フィールドは監査用に保持）
func (r *OwnershipRecord) HasOwner() bool {
	return r != nil && r.OwnerID != ""
}

// IsExpired は基準時刻時点で所有権が失効しているかを判定する
// 失効は保存された状態ではなく now > expiresAt の計算プロパティ（遅延評価）
func (r *OwnershipRecord) IsExpired(now time.Time) bool {
	if r == nil || r.ExpiresAt == nil {
		return true
	}
	return now.After(*r.ExpiresAt)
}

// IsOwnedBy は基準時刻時点で指定ユーザーが有効な所有者かを判定する
func (r *OwnershipRecord) IsOwnedBy(userID string, now time.Time) bool {
	return r.HasOwner() && r.OwnerID == userID && !r.IsExpired(now)
}

// FirestoreTerritory はFirestoreの領土ドキュメント
type FirestoreTerritory struct {
	CellID           string      `firestore:"cell_id"`
	X                int         `firestore:"x"`
	Y                int         `firestore:"y"`
	OwnerID          string      `firestore:"owner_id"`
	Center           *Location   `firestore:"center"`
	Boundary         *GeoPolygon `firestore:"boundary"`
	Geohash          string      `firestore:"geohash"`
	FirstConqueredAt *time.Time  `firestore:"first_conquered_at"`
	LastConqueredAt  *time.Time  `firestore:"last_conquered_at"`
	ExpiresAt        *time.Time  `firestore:"expires_at"`
	ActivityID       string      `firestore:"activity_id"`
	DefenseCount     int         `firestore:"defense_count"`
	TimesStolen      int         `firestore:"times_stolen"`
	IsHotSpot        bool        `firestore:"is_hot_spot"`
	LocationLabel    string      `firestore:"location_label"`
}

// ToFirestoreTerritory OwnershipRecord をFirestore保存用に変換
func (r *OwnershipRecord) ToFirestoreTerritory() *FirestoreTerritory {
	return &FirestoreTerritory{
		CellID:           r.CellID,
		X:                r.X,
		Y:                r.Y,
		OwnerID:          r.OwnerID,
		Center:           r.Center,
		Boundary:         r.Boundary,
		Geohash:          r.Geohash,
		FirstConqueredAt: r.FirstConqueredAt,
		LastConqueredAt:  r.LastConqueredAt,
		ExpiresAt:        r.ExpiresAt,
		ActivityID:       r.ActivityID,
		DefenseCount:     r.DefenseCount,
		TimesStolen:      r.TimesStolen,
		IsHotSpot:        r.IsHotSpot,
		LocationLabel:    r.LocationLabel,
	}
}

// ToOwnershipRecord FirestoreTerritory をドメインモデルに変換
func (ft *FirestoreTerritory) ToOwnershipRecord() *OwnershipRecord {
	return &OwnershipRecord{
		CellID:           ft.CellID,
		X:                ft.X,
		Y:                ft.Y,
		OwnerID:          ft.OwnerID,
		Center:           ft.Center,
		Boundary:         ft.Boundary,
		Geohash:          ft.Geohash,
		FirstConqueredAt: ft.FirstConqueredAt,
		LastConqueredAt:  ft.LastConqueredAt,
		ExpiresAt:        ft.ExpiresAt,
		ActivityID:       ft.ActivityID,
		DefenseCount:     ft.DefenseCount,
		TimesStolen:      ft.TimesStolen,
		IsHotSpot:        ft.IsHotSpot,
		LocationLabel:    ft.LocationLabel,
	}
}

// TerritoryEvent はセル単位の所有権変化イベント（通知・フィード系が購読する）
type TerritoryEvent struct {
	EventID           string    `json:"event_id"`
	Interaction       string    `json:"interaction"`                   // conquest / defense / steal / recapture
	CellID            string    `json:"cell_id"`
	ActorID           string    `json:"actor_id"`
	PreviousOwnerID   string    `json:"previous_owner_id,omitempty"`
	ActivityID        string    `json:"activity_id"`
	OccurredAt        time.Time `json:"occurred_at"`
	LastMinuteDefense bool      `json:"last_minute_defense,omitempty"` // 期限切れ直前の防衛フラグ（報酬判定はXPシステム側）
}

// HistoryEntry はセルごとの追記専用インタラクション履歴（監査・再取得判定用）
type HistoryEntry struct {
	CellID          string    `json:"cell_id" firestore:"cell_id"`
	ActivityID      string    `json:"activity_id" firestore:"activity_id"`
	ActorID         string    `json:"actor_id" firestore:"actor_id"`
	Interaction     string    `json:"interaction" firestore:"interaction"`
	PreviousOwnerID string    `json:"previous_owner_id" firestore:"previous_owner_id"`
	OccurredAt      time.Time `json:"occurred_at" firestore:"occurred_at"`
}

// CellTransition はセル1件に対する状態遷移の適用内容
// （トランザクション内で現在状態から決定され、そのままコミットされる）
type CellTransition struct {
	Skip                   bool             // 適用不要（同一アクティビティの再適用など）
	Record                 *OwnershipRecord // 遷移後のレコード
	Event                  *TerritoryEvent
	History                *HistoryEntry
	CreateVengeance        *VengeanceTarget // 強奪時に被害者側へ作成するリベンジターゲット
	DeleteVengeanceUserIDs []string         // このセルのリベンジターゲットを削除すべきユーザーID群
}

// ChangeKind はシャード購読ストリーム上の変更種別
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeModified
	ChangeRemoved
)

// CellChange はシャード購読が配信するセル単位の増分イベント
type CellChange struct {
	Kind   ChangeKind
	Record *OwnershipRecord
}

// TerritoryResult はアクティビティ1件の領土処理結果（XP・ミッション系が消費する）
type TerritoryResult struct {
	ActivityID      string           `json:"activity_id"`
	ConqueredCells  []string         `json:"conquered_cells"`
	DefendedCells   []string         `json:"defended_cells"`
	StolenCells     []string         `json:"stolen_cells"`
	RecapturedCells []string         `json:"recaptured_cells"`
	SkippedCells    int              `json:"skipped_cells"`
	FailedCells     int              `json:"failed_cells"`
	TotalCells      int              `json:"total_cells"`
	Events          []*TerritoryEvent `json:"events,omitempty"`
}

package model

import "time"

// Activity は完了済みアクティビティ（フィットネス記録パイプラインから受け取る）
type Activity struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	ActivityType string       `json:"activity_type"`
	StartDate    time.Time    `json:"start_date"`
	EndDate      time.Time    `json:"end_date"`
	Route        []RoutePoint `json:"route"` // 記録後は変更されない追記専用の経路
}

// IsOutdoor は領土処理の対象となる屋外アクティビティかを判定する
func (a *Activity) IsOutdoor() bool {
	return IsOutdoorActivityType(a.ActivityType)
}

// IngestActivityRequest はアクティビティ取り込みAPIのリクエスト
type IngestActivityRequest struct {
	ActivityID   string       `json:"activity_id"` // 省略時はサーバー側でUUIDを生成
	UserID       string       `json:"user_id" validate:"required"`
	ActivityType string       `json:"activity_type" validate:"required"`
	StartDate    time.Time    `json:"start_date"`
	EndDate      time.Time    `json:"end_date"`
	Route        []RoutePoint `json:"route" validate:"required"`
}

// IngestActivityResponse はアクティビティ取り込みAPIのレスポンス
type IngestActivityResponse struct {
	Status string           `json:"status"` // "success" / "partial" / "skipped"
	Result *TerritoryResult `json:"result,omitempty"`
}

// ActivityDB は Activity を DB 保存用に変換した構造体
type ActivityDB struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	ActivityType string       `json:"activity_type"`
	StartDate    time.Time    `json:"start_date"`
	EndDate      time.Time    `json:"end_date"`
	Route        []RoutePoint `json:"route"` // JSONBカラムに格納
	CellCount    int          `json:"cell_count"`
}

// ToActivityDB Activity を DB 保存用に変換
func (a *Activity) ToActivityDB(cellCount int) *ActivityDB {
	return &ActivityDB{
		ID:           a.ID,
		UserID:       a.UserID,
		ActivityType: a.ActivityType,
		StartDate:    a.StartDate,
		EndDate:      a.EndDate,
		Route:        a.Route,
		CellCount:    cellCount,
	}
}

// ToActivity ActivityDB をドメインモデルに変換
func (db *ActivityDB) ToActivity() *Activity {
	return &Activity{
		ID:           db.ID,
		UserID:       db.UserID,
		ActivityType: db.ActivityType,
		StartDate:    db.StartDate,
		EndDate:      db.EndDate,
		Route:        db.Route,
	}
}

// Rivalry は2ユーザー間の強奪回数の片側キャッシュ
// 同じライバル関係が双方のユーザー側に1行ずつ記録され、
// AのStolenFromRivalはBのStolenByRivalと一致するのが整合状態
type Rivalry struct {
	UserID          string `json:"user_id"`           // 記録の持ち主
	RivalID         string `json:"rival_id"`          // 相手ユーザー
	StolenFromRival int    `json:"stolen_from_rival"` // 持ち主が相手から奪った回数
	StolenByRival   int    `json:"stolen_by_rival"`   // 持ち主が相手に奪われた回数
}

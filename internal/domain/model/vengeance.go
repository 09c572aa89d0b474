package model

import "time"

// VengeanceTarget は被害者が特定セルを奪還するためのリベンジターゲット
// 被害者ユーザーにスコープされ、セルIDをキーとする
type VengeanceTarget struct {
	CellID    string    `json:"cell_id"`
	VictimID  string    `json:"victim_id"`  // セルを奪われた側（レコードの所有ユーザー）
	ThiefID   string    `json:"thief_id"`   // セルを奪った側
	StolenAt  time.Time `json:"stolen_at"`
	ExpiresAt time.Time `json:"expires_at"`
	XPReward  int       `json:"xp_reward"` // 奪還時のボーナスXP（付与ロジックはXPシステム側）
}

// IsExpired は基準時刻時点でリベンジターゲットが失効しているかを判定する
func (v *VengeanceTarget) IsExpired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

// FirestoreVengeanceTarget はFirestoreのリベンジターゲットドキュメント
// （users/{victimId}/vengeanceTargets/{cellId} に格納）
type FirestoreVengeanceTarget struct {
	CellID    string    `firestore:"cell_id"`
	VictimID  string    `firestore:"victim_id"`
	ThiefID   string    `firestore:"thief_id"`
	StolenAt  time.Time `firestore:"stolen_at"`
	ExpiresAt time.Time `firestore:"expires_at"`
	XPReward  int       `firestore:"xp_reward"`
}

// ToFirestoreVengeanceTarget VengeanceTarget をFirestore保存用に変換
func (v *VengeanceTarget) ToFirestoreVengeanceTarget() *FirestoreVengeanceTarget {
	return &FirestoreVengeanceTarget{
		CellID:    v.CellID,
		VictimID:  v.VictimID,
		ThiefID:   v.ThiefID,
		StolenAt:  v.StolenAt,
		ExpiresAt: v.ExpiresAt,
		XPReward:  v.XPReward,
	}
}

// ToVengeanceTarget FirestoreVengeanceTarget をドメインモデルに変換
func (fv *FirestoreVengeanceTarget) ToVengeanceTarget() *VengeanceTarget {
	return &VengeanceTarget{
		CellID:    fv.CellID,
		VictimID:  fv.VictimID,
		ThiefID:   fv.ThiefID,
		StolenAt:  fv.StolenAt,
		ExpiresAt: fv.ExpiresAt,
		XPReward:  fv.XPReward,
	}
}

// VengeanceChange はリベンジターゲット購読ストリーム上の増分イベント
type VengeanceChange struct {
	Kind   ChangeKind
	Target *VengeanceTarget
}

// DefaultVengeanceXPReward は奪還ボーナスのデフォルトXP
const DefaultVengeanceXPReward = 50

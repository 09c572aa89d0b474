package model

import (
	"os"
	"strconv"
)

// InteractionConstants はセルへのインタラクション種別の定数
const (
	InteractionConquest  = "conquest"  // 未所有セルの初回獲得
	InteractionDefense   = "defense"   // 所有者自身による再走行（期限延長）
	InteractionSteal     = "steal"     // 有効期限内の他人セルの強奪
	InteractionRecapture = "recapture" // 奪われたセルのリベンジ奪還
)

// InteractionNameMap はインタラクション種別から日本語名へのマッピング
var InteractionNameMap = map[string]string{
	InteractionConquest:  "獲得",
	InteractionDefense:   "防衛",
	InteractionSteal:     "強奪",
	InteractionRecapture: "奪還",
}

// GetInteractionJapaneseName はインタラクション種別から日本語名を取得する
func GetInteractionJapaneseName(interaction string) string {
	if name, ok := InteractionNameMap[interaction]; ok {
		return name
	}
	return interaction // デフォルトはそのまま返す
}

// ActivityTypeConstants はアクティビティ種別の定数
const (
	ActivityTypeWalking       = "walking"
	ActivityTypeRunning       = "running"
	ActivityTypeCycling       = "cycling"
	ActivityTypeHiking        = "hiking"
	ActivityTypeIndoorRunning = "indoor_running"
	ActivityTypeIndoorCycling = "indoor_cycling"
	ActivityTypeIndoorWorkout = "indoor_workout"
)

// outdoorActivityTypes は領土処理の対象となる屋外アクティビティ種別
var outdoorActivityTypes = map[string]bool{
	ActivityTypeWalking: true,
	ActivityTypeRunning: true,
	ActivityTypeCycling: true,
	ActivityTypeHiking:  true,
}

// IsOutdoorActivityType は領土処理の対象となる屋外アクティビティかを判定する
// （屋内アクティビティはエラーではなく処理スキップの扱い）
func IsOutdoorActivityType(activityType string) bool {
	return outdoorActivityTypes[activityType]
}

// DefaultConstants は領土システムのデフォルト設定値
const (
	DefaultCellSizeDegrees           = 0.002 // 約200m四方（中緯度）
	DefaultCellExpirationDays        = 7
	DefaultInterpolationStepMeters   = 20.0
	DefaultMaxInterpolationDistanceM = 300.0

	// MinSegmentDistanceMeters これ未満の区間は端点のみで十分とみなし補間しない
	MinSegmentDistanceMeters = 10.0

	// CellExpirationDaysMin / Max 有効期限設定のクランプ範囲
	CellExpirationDaysMin = 1
	CellExpirationDaysMax = 60

	// HotSpotStealThreshold この回数以上強奪されたセルはホットスポット扱い
	HotSpotStealThreshold = 3

	// LastMinuteDefenseWindowHours 期限切れ直前防衛とみなす残り時間
	LastMinuteDefenseWindowHours = 24

	// VengeanceGraceHours リベンジターゲットの期限がセル期限を上回る余裕時間
	VengeanceGraceHours = 24

	// FirestoreInQueryLimit Firestoreの"in"クエリで指定できるID数の上限
	FirestoreInQueryLimit = 30
)

// TerritoryConfig は領土システムの実行時設定
type TerritoryConfig struct {
	CellSizeDegrees               float64
	CellExpirationDays            int
	InterpolationStepMeters       float64
	MaxInterpolationDistanceMeter float64
}

// LoadTerritoryConfig は環境変数から設定を読み込む（未設定時はデフォルト値）
func LoadTerritoryConfig() *TerritoryConfig {
	cfg := &TerritoryConfig{
		CellSizeDegrees:               getEnvFloat("CELL_SIZE_DEGREES", DefaultCellSizeDegrees),
		CellExpirationDays:            getEnvInt("CELL_EXPIRATION_DAYS", DefaultCellExpirationDays),
		InterpolationStepMeters:       getEnvFloat("INTERPOLATION_STEP_METERS", DefaultInterpolationStepMeters),
		MaxInterpolationDistanceMeter: getEnvFloat("MAX_INTERPOLATION_DISTANCE_METERS", DefaultMaxInterpolationDistanceM),
	}

	// 有効期限は[1,60]日にクランプする
	if cfg.CellExpirationDays < CellExpirationDaysMin {
		cfg.CellExpirationDays = CellExpirationDaysMin
	}
	if cfg.CellExpirationDays > CellExpirationDaysMax {
		cfg.CellExpirationDays = CellExpirationDaysMax
	}

	return cfg
}

// getEnvFloat 環境変数をfloat64として取得する（パース失敗時はデフォルト値）
func getEnvFloat(key string, defaultValue float64) float64 {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

// getEnvInt 環境変数をintとして取得する（パース失敗時はデフォルト値）
func getEnvInt(key string, defaultValue int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return defaultValue
}

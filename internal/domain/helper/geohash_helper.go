package helper

import (
	"sort"

	geohash "github.com/TomiHiltunen/geohash-golang"

	"Territory-App/internal/domain/model"
)

// GeohashPrecisionConstants は空間シャードに使用するGeohash精度の定数
const (
	// GeohashPrecisionWide ズームアウト時（広域ビューポート）のシャード精度
	GeohashPrecisionWide = 5
	// GeohashPrecisionNarrow ズームイン時のシャード精度
	GeohashPrecisionNarrow = 6
	// GeohashPrecisionRadar ビューポート非連動の広域発見用購読の固定精度
	GeohashPrecisionRadar = 4
	// CellGeohashPrecision セルドキュメントのgeohashカラムの精度（最細の購読精度に合わせる）
	CellGeohashPrecision = 6

	// WideViewportSpanDegrees この値以上のスパンは広域ビューポートとみなす
	WideViewportSpanDegrees = 0.04
)

// PrecisionForSpan はビューポートのスパン（度）からシャード精度を選択する
func PrecisionForSpan(spanDegrees float64) int {
	if spanDegrees >= WideViewportSpanDegrees {
		return GeohashPrecisionWide
	}
	return GeohashPrecisionNarrow
}

// CellGeohash はセル中心座標からgeohashカラム値を計算する
func CellGeohash(center model.LatLng) string {
	return geohash.EncodeWithPrecision(center.Lat, center.Lng, CellGeohashPrecision)
}

// ShardKeys は中心座標のシャードとその8近傍のシャードキー集合を計算する
// （境界付近の重複を避けるため重複排除し、決定的な順序で返す）
func ShardKeys(center model.LatLng, precision int) []string {
	centerHash := geohash.EncodeWithPrecision(center.Lat, center.Lng, precision)

	seen := map[string]bool{centerHash: true}
	for _, adjacent := range geohash.CalculateAllAdjacent(centerHash) {
		if adjacent != "" {
			seen[adjacent] = true
		}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// DiffShardKeys は新旧のシャードキー集合を比較し、追加・削除すべきキーを返す
// 両方に含まれるキーは購読を張り直さずそのまま維持する
func DiffShardKeys(current, required []string) (toAdd, toRemove []string) {
	currentSet := make(map[string]bool, len(current))
	for _, key := range current {
		currentSet[key] = true
	}
	requiredSet := make(map[string]bool, len(required))
	for _, key := range required {
		requiredSet[key] = true
	}

	for _, key := range required {
		if !currentSet[key] {
			toAdd = append(toAdd, key)
		}
	}
	for _, key := range current {
		if !requiredSet[key] {
			toRemove = append(toRemove, key)
		}
	}
	return toAdd, toRemove
}

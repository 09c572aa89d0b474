package helper

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"Territory-App/internal/domain/model"
)

// earthRadiusMeters 地球半径（メートル）
const earthRadiusMeters = 6371000.0

// HaversineDistanceMeters は2地点間の大円距離を計算する (m)
func HaversineDistanceMeters(p1, p2 model.LatLng) float64 {
	lat1 := p1.Lat * math.Pi / 180
	lng1 := p1.Lng * math.Pi / 180
	lat2 := p2.Lat * math.Pi / 180
	lng2 := p2.Lng * math.Pi / 180
	dLat := lat2 - lat1
	dLng := lng2 - lng1
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// CellIndex は緯度経度をグリッドセルの整数座標に変換する
// x = floor(lng / cellSize), y = floor(lat / cellSize)
// 度数ベースの固定サイズグリッドのため物理的なセル幅は緯度によって変わる（許容済みの近似）
func CellIndex(lat, lng, cellSizeDegrees float64) (x, y int) {
	x = int(math.Floor(lng / cellSizeDegrees))
	y = int(math.Floor(lat / cellSizeDegrees))
	return x, y
}

// CellID はセル座標から正規のセルIDを生成する（例: "100_200"）
func CellID(x, y int) string {
	return fmt.Sprintf("%d_%d", x, y)
}

// CellIDForLatLng は緯度経度から直接セルIDを生成する
func CellIDForLatLng(p model.LatLng, cellSizeDegrees float64) string {
	x, y := CellIndex(p.Lat, p.Lng, cellSizeDegrees)
	return CellID(x, y)
}

// ParseCellID はセルIDをセル座標に分解する
func ParseCellID(cellID string) (x, y int, err error) {
	parts := strings.Split(cellID, "_")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("無効なセルID形式: %s", cellID)
	}
	x, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("無効なセルID形式: %s", cellID)
	}
	y, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("無効なセルID形式: %s", cellID)
	}
	return x, y, nil
}

// CellCenter はセル座標からセル中心の緯度経度を計算する
func CellCenter(x, y int, cellSizeDegrees float64) model.LatLng {
	return model.LatLng{
		Lat: (float64(y) + 0.5) * cellSizeDegrees,
		Lng: (float64(x) + 0.5) * cellSizeDegrees,
	}
}

// CellBound はセル座標からorbの境界ボックスを生成する
func CellBound(x, y int, cellSizeDegrees float64) orb.Bound {
	minLng := float64(x) * cellSizeDegrees
	minLat := float64(y) * cellSizeDegrees
	return orb.Bound{
		Min: orb.Point{minLng, minLat},
		Max: orb.Point{minLng + cellSizeDegrees, minLat + cellSizeDegrees},
	}
}

// CellBoundary はセル座標から境界ポリゴン（GeoJSON形式）を生成する
func CellBoundary(x, y int, cellSizeDegrees float64) *model.GeoPolygon {
	bound := CellBound(x, y, cellSizeDegrees)

	minLng := bound.Min.Lon()
	minLat := bound.Min.Lat()
	maxLng := bound.Max.Lon()
	maxLat := bound.Max.Lat()

	coordinates := [][][]float64{
		{
			{minLng, minLat}, // 左下
			{maxLng, minLat}, // 右下
			{maxLng, maxLat}, // 右上
			{minLng, maxLat}, // 左上
			{minLng, minLat}, // 閉じる
		},
	}

	return &model.GeoPolygon{
		Type:        "Polygon",
		Coordinates: coordinates,
	}
}

// InterpolateLatLng は2点間を比率tで線形補間する
// （このスケールでは測地線ではなく単純な緯度経度の線形補間で十分）
func InterpolateLatLng(p1, p2 model.LatLng, t float64) model.LatLng {
	return model.LatLng{
		Lat: p1.Lat + (p2.Lat-p1.Lat)*t,
		Lng: p1.Lng + (p2.Lng-p1.Lng)*t,
	}
}

package service

import (
	"fmt"
	"math"
	"sort"

	"Territory-App/internal/domain/helper"
	"Territory-App/internal/domain/model"
)

// PathResolver はアクティビティ経路を通過セルIDの集合に解決する純粋な変換器
// ネットワーク・ストレージに依存せず、同じ入力からは常に同じセル集合を返す
type PathResolver struct {
	cellSizeDegrees        float64
	stepMeters             float64
	maxInterpolationMeters float64
}

// NewPathResolver は設定からPathResolverを生成する
func NewPathResolver(cfg *model.TerritoryConfig) *PathResolver {
	return &PathResolver{
		cellSizeDegrees:        cfg.CellSizeDegrees,
		stepMeters:             cfg.InterpolationStepMeters,
		maxInterpolationMeters: cfg.MaxInterpolationDistanceMeter,
	}
}

// ResolveCells は経路が通過したセルIDの集合を解決する
// 戻り値はソート済みで重複なし。最低でも先頭・末尾の点のセルを必ず含む
func (r *PathResolver) ResolveCells(route []model.RoutePoint) ([]string, error) {
	if len(route) == 0 {
		return nil, fmt.Errorf("経路が空です")
	}

	// 非有限座標の点は除外する（入力不正でクラッシュさせない）
	points := make([]model.LatLng, 0, len(route))
	for _, p := range route {
		latLng := p.ToLatLng()
		if latLng.IsFinite() {
			points = append(points, latLng)
		}
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("経路に有効な座標が含まれていません")
	}

	cellSet := make(map[string]bool)
	cellSet[helper.CellIDForLatLng(points[0], r.cellSizeDegrees)] = true

	for i := 0; i+1 < len(points); i++ {
		r.resolveSegment(points[i], points[i+1], cellSet)
	}

	cells := make([]string, 0, len(cellSet))
	for cellID := range cellSet {
		cells = append(cells, cellID)
	}
	sort.Strings(cells)
	return cells, nil
}

// resolveSegment は連続する2点間の区間を解決してセル集合に追加する
func (r *PathResolver) resolveSegment(p1, p2 model.LatLng, cellSet map[string]bool) {
	// 両端点のセルは必ず追加する
	cellSet[helper.CellIDForLatLng(p1, r.cellSizeDegrees)] = true
	cellSet[helper.CellIDForLatLng(p2, r.cellSizeDegrees)] = true

	distance := helper.HaversineDistanceMeters(p1, p2)

	// 短い区間は端点だけで十分
	if distance < model.MinSegmentDistanceMeters {
		return
	}

	// GPS異常（信号ロス・テレポート・端末切替）とみなし補間をスキップする
	// これがないと不正なGPSフィックス1つで実際に走っていないセルの回廊が発生する
	if distance > r.maxInterpolationMeters {
		return
	}

	// 区間を線形補間してceil(d/step)個の中間点のセルを追加する
	count := int(math.Ceil(distance / r.stepMeters))
	for s := 1; s <= count; s++ {
		t := float64(s) / float64(count+1)
		intermediate := helper.InterpolateLatLng(p1, p2, t)
		cellSet[helper.CellIDForLatLng(intermediate, r.cellSizeDegrees)] = true
	}
}

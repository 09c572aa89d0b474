package model

import (
	"math"
	"time"
)

// LatLng 緯度経度を表す基本的な型（グリッド計算などで使用）
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsFinite 緯度経度が有限値かつ範囲内であるかをチェック
func (l LatLng) IsFinite() bool {
	if math.IsNaN(l.Lat) || math.IsInf(l.Lat, 0) {
		return false
	}
	if math.IsNaN(l.Lng) || math.IsInf(l.Lng, 0) {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

type Location struct {
	Latitude  float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"required,min=-180,max=180"`
}

// ToLatLng Location を LatLng 形式に変換
func (l *Location) ToLatLng() LatLng {
	if l == nil {
		return LatLng{}
	}
	return LatLng{Lat: l.Latitude, Lng: l.Longitude}
}

// GeoPolygon GeoJSON Polygon に対応する構造体（セル境界などで使用）
type GeoPolygon struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

// RoutePoint アクティビティ経路上の1点（タイムスタンプ付きGPS座標）
type RoutePoint struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
	Altitude  *float64  `json:"altitude,omitempty"` // 高度（NULLABLE）
}

// ToLatLng RoutePoint の座標を LatLng 形式に変換
func (p RoutePoint) ToLatLng() LatLng {
	return LatLng{Lat: p.Latitude, Lng: p.Longitude}
}

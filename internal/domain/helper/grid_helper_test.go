package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Territory-App/internal/domain/model"
)

func TestCellIndex(t *testing.T) {
	t.Run("中緯度の座標が正しいセル座標に変換される", func(t *testing.T) {
		x, y := CellIndex(35.0, 135.0, 0.002)
		assert.Equal(t, 67500, x)
		assert.Equal(t, 17500, y)
	})

	t.Run("負の座標はfloorで切り下げられる", func(t *testing.T) {
		x, y := CellIndex(-0.001, -0.001, 0.002)
		assert.Equal(t, -1, x)
		assert.Equal(t, -1, y)
	})

	t.Run("セル境界上の座標は次のセルに属する", func(t *testing.T) {
		// 境界値はfloorにより常に大きい側のセルへ
		x, y := CellIndex(0.002, 0.004, 0.002)
		assert.Equal(t, 2, x)
		assert.Equal(t, 1, y)
	})
}

func TestCellIDRoundTrip(t *testing.T) {
	t.Run("セルIDの生成と分解が往復する", func(t *testing.T) {
		cellID := CellID(100, 200)
		assert.Equal(t, "100_200", cellID)

		x, y, err := ParseCellID(cellID)
		require.NoError(t, err)
		assert.Equal(t, 100, x)
		assert.Equal(t, 200, y)
	})

	t.Run("負のセル座標も往復する", func(t *testing.T) {
		x, y, err := ParseCellID(CellID(-5, -10))
		require.NoError(t, err)
		assert.Equal(t, -5, x)
		assert.Equal(t, -10, y)
	})

	t.Run("無効な形式はエラーになる", func(t *testing.T) {
		_, _, err := ParseCellID("abc")
		assert.Error(t, err)

		_, _, err = ParseCellID("1_2_3")
		assert.Error(t, err)

		_, _, err = ParseCellID("x_y")
		assert.Error(t, err)
	})
}

func TestCellCenter(t *testing.T) {
	center := CellCenter(100, 200, 0.002)
	assert.InDelta(t, 0.201, center.Lng, 1e-9)
	assert.InDelta(t, 0.401, center.Lat, 1e-9)

	// 中心は必ず自分のセルに解決される
	x, y := CellIndex(center.Lat, center.Lng, 0.002)
	assert.Equal(t, 100, x)
	assert.Equal(t, 200, y)
}

func TestCellBoundary(t *testing.T) {
	boundary := CellBoundary(100, 200, 0.002)
	require.NotNil(t, boundary)
	assert.Equal(t, "Polygon", boundary.Type)
	require.Len(t, boundary.Coordinates, 1)

	ring := boundary.Coordinates[0]
	require.Len(t, ring, 5)
	// GeoJSONのリングは始点と終点が一致して閉じている
	assert.Equal(t, ring[0], ring[4])
	assert.InDelta(t, 0.200, ring[0][0], 1e-9)
	assert.InDelta(t, 0.400, ring[0][1], 1e-9)
	assert.InDelta(t, 0.202, ring[2][0], 1e-9)
	assert.InDelta(t, 0.402, ring[2][1], 1e-9)
}

func TestHaversineDistanceMeters(t *testing.T) {
	t.Run("同一地点の距離はゼロ", func(t *testing.T) {
		p := model.LatLng{Lat: 35.0, Lng: 135.0}
		assert.Equal(t, 0.0, HaversineDistanceMeters(p, p))
	})

	t.Run("緯度0.001度の距離は約111m", func(t *testing.T) {
		p1 := model.LatLng{Lat: 35.0, Lng: 135.0}
		p2 := model.LatLng{Lat: 35.001, Lng: 135.0}
		assert.InDelta(t, 111.2, HaversineDistanceMeters(p1, p2), 1.0)
	})

	t.Run("経度方向は緯度のcos倍に縮む", func(t *testing.T) {
		p1 := model.LatLng{Lat: 35.0, Lng: 135.0}
		p2 := model.LatLng{Lat: 35.0, Lng: 135.001}
		// cos(35°) ≈ 0.819
		assert.InDelta(t, 91.1, HaversineDistanceMeters(p1, p2), 1.0)
	})

	t.Run("距離は対称", func(t *testing.T) {
		p1 := model.LatLng{Lat: 34.7, Lng: 135.5}
		p2 := model.LatLng{Lat: 35.0, Lng: 135.76}
		assert.Equal(t, HaversineDistanceMeters(p1, p2), HaversineDistanceMeters(p2, p1))
	})
}

func TestInterpolateLatLng(t *testing.T) {
	p1 := model.LatLng{Lat: 35.0, Lng: 135.0}
	p2 := model.LatLng{Lat: 36.0, Lng: 136.0}

	mid := InterpolateLatLng(p1, p2, 0.5)
	assert.InDelta(t, 35.5, mid.Lat, 1e-9)
	assert.InDelta(t, 135.5, mid.Lng, 1e-9)

	assert.Equal(t, p1, InterpolateLatLng(p1, p2, 0.0))
	assert.Equal(t, p2, InterpolateLatLng(p1, p2, 1.0))
}

package helper

import (
	"sort"
	"strings"
	"testing"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Territory-App/internal/domain/model"
)

func TestPrecisionForSpan(t *testing.T) {
	t.Run("広域ビューポートは粗い精度を選ぶ", func(t *testing.T) {
		assert.Equal(t, GeohashPrecisionWide, PrecisionForSpan(0.1))
		assert.Equal(t, GeohashPrecisionWide, PrecisionForSpan(WideViewportSpanDegrees))
	})

	t.Run("狭いビューポートは細かい精度を選ぶ", func(t *testing.T) {
		assert.Equal(t, GeohashPrecisionNarrow, PrecisionForSpan(0.01))
		assert.Equal(t, GeohashPrecisionNarrow, PrecisionForSpan(0.039))
	})
}

func TestCellGeohash(t *testing.T) {
	center := model.LatLng{Lat: 34.7024, Lng: 135.4959} // 大阪・梅田
	hash := CellGeohash(center)
	assert.Len(t, hash, CellGeohashPrecision)

	// セルのgeohashはより粗いシャードキーのプレフィックスマッチで拾える
	shard := geohash.EncodeWithPrecision(center.Lat, center.Lng, GeohashPrecisionWide)
	assert.True(t, strings.HasPrefix(hash, shard))
}

func TestShardKeys(t *testing.T) {
	center := model.LatLng{Lat: 34.7024, Lng: 135.4959}

	t.Run("中心と8近傍の9シャードを返す", func(t *testing.T) {
		keys := ShardKeys(center, GeohashPrecisionWide)
		assert.Len(t, keys, 9)

		centerHash := geohash.EncodeWithPrecision(center.Lat, center.Lng, GeohashPrecisionWide)
		assert.Contains(t, keys, centerHash)

		for _, key := range keys {
			assert.Len(t, key, GeohashPrecisionWide)
		}
	})

	t.Run("重複なしの決定的な順序で返す", func(t *testing.T) {
		keys := ShardKeys(center, GeohashPrecisionNarrow)
		assert.True(t, sort.StringsAreSorted(keys))

		seen := make(map[string]bool)
		for _, key := range keys {
			assert.False(t, seen[key], "シャードキーが重複: %s", key)
			seen[key] = true
		}

		// 同じ入力からは常に同じ集合
		assert.Equal(t, keys, ShardKeys(center, GeohashPrecisionNarrow))
	})
}

func TestDiffShardKeys(t *testing.T) {
	t.Run("新規と不要のシャードを分類する", func(t *testing.T) {
		current := []string{"aaa", "bbb", "ccc"}
		required := []string{"bbb", "ccc", "ddd"}

		toAdd, toRemove := DiffShardKeys(current, required)
		assert.Equal(t, []string{"ddd"}, toAdd)
		assert.Equal(t, []string{"aaa"}, toRemove)
	})

	t.Run("同一集合なら追加も削除もない", func(t *testing.T) {
		keys := []string{"aaa", "bbb"}
		toAdd, toRemove := DiffShardKeys(keys, keys)
		assert.Empty(t, toAdd)
		assert.Empty(t, toRemove)
	})

	t.Run("空の現行集合は全シャードが追加になる", func(t *testing.T) {
		required := []string{"aaa", "bbb"}
		toAdd, toRemove := DiffShardKeys(nil, required)
		require.Equal(t, required, toAdd)
		assert.Empty(t, toRemove)
	})
}

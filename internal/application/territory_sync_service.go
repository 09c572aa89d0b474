package application

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"Territory-App/internal/domain/helper"
	"Territory-App/internal/domain/model"
	"Territory-App/internal/domain/repository"
)

// observerEventBufferSize は観測者向けイベントチャネルのバッファ長
// 消費が追いつかない場合は増分を落とす（スナップショットが正）
const observerEventBufferSize = 256

// viewportDebounceRatio はビューポート移動の無視閾値（スパンに対する比率）
const viewportDebounceRatio = 0.1

// TerritorySyncService は観測者1人分のライブ領土ビューを管理するサービス
// ビューポート連動のシャード購読、広域レーダー購読、リベンジターゲット購読を
// 統合し、重複排除済みのマージスナップショットを維持する
type TerritorySyncService struct {
	territoryRepo repository.TerritoryRepository
	vengeanceRepo repository.VengeanceRepository

	mu     sync.Mutex
	shards map[string]*shardState // ビューポート連動のシャード購読
	radar  map[string]*shardState // ビューポート非連動の広域発見用購読
	cells  map[string]*model.OwnershipRecord
	events chan model.CellChange
	closed bool

	lastCenter    *model.LatLng
	lastSpan      float64
	lastPrecision int
}

// shardState はシャード1件分の購読状態
type shardState struct {
	prefix string
	stream *repository.ShardStream
	active bool // teardown後のインフライトイベントを破棄するためのフラグ
}

// NewTerritorySyncService は新しいTerritorySyncServiceインスタンスを作成
func NewTerritorySyncService(
	territoryRepo repository.TerritoryRepository,
	vengeanceRepo repository.VengeanceRepository,
) *TerritorySyncService {
	return &TerritorySyncService{
		territoryRepo: territoryRepo,
		vengeanceRepo: vengeanceRepo,
		shards:        make(map[string]*shardState),
		radar:         make(map[string]*shardState),
		cells:         make(map[string]*model.OwnershipRecord),
		events:        make(chan model.CellChange, observerEventBufferSize),
	}
}

// Events は観測者向けの増分イベントチャネルを返す
func (s *TerritorySyncService) Events() <-chan model.CellChange {
	return s.events
}

// UpdateViewport はビューポートの中心とスパンに合わせてシャード購読を更新する
// 精度変更を伴わないスパンの10%未満の移動はノイズとみなして無視し、
// 新旧で共通するシャードは購読を張り直さない
func (s *TerritorySyncService) UpdateViewport(ctx context.Context, center model.LatLng, spanDegrees float64) error {
	if !center.IsFinite() {
		return fmt.Errorf("ビューポート中心の座標が不正です")
	}
	if spanDegrees <= 0 {
		return fmt.Errorf("ビューポートのスパンは正の値である必要があります")
	}

	precision := helper.PrecisionForSpan(spanDegrees)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("サービスは既にクローズされています")
	}

	// GPSノイズによる微小移動のデバウンス（精度が変わる場合は必ず更新する）
	if s.lastCenter != nil && precision == s.lastPrecision {
		moved := math.Max(math.Abs(center.Lat-s.lastCenter.Lat), math.Abs(center.Lng-s.lastCenter.Lng))
		if moved < s.lastSpan*viewportDebounceRatio {
			s.mu.Unlock()
			return nil
		}
	}

	required := helper.ShardKeys(center, precision)
	current := make([]string, 0, len(s.shards))
	for prefix := range s.shards {
		current = append(current, prefix)
	}
	toAdd, toRemove := helper.DiffShardKeys(current, required)

	// 不要になったシャードの破棄（インフライトイベントは同一ミューテックス下で遮断）
	var cancels []func()
	for _, prefix := range toRemove {
		state := s.shards[prefix]
		state.active = false
		cancels = append(cancels, state.stream.Cancel)
		delete(s.shards, prefix)
	}
	s.evictUncoveredLocked(toRemove)

	s.lastCenter = &model.LatLng{Lat: center.Lat, Lng: center.Lng}
	s.lastSpan = spanDegrees
	s.lastPrecision = precision
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	for _, prefix := range toAdd {
		if err := s.subscribeShard(ctx, prefix, s.shards); err != nil {
			return fmt.Errorf("シャード %s の購読開始失敗: %w", prefix, err)
		}
	}

	if len(toAdd) > 0 || len(toRemove) > 0 {
		log.Printf("✅ ビューポート更新: precision=%d 追加:%d 解除:%d 維持:%d",
			precision, len(toAdd), len(toRemove), len(required)-len(toAdd))
	}
	return nil
}

// StartRadar はビューポート非連動の広域発見用購読を開始する
// 粗い精度で自シャードと8近傍を購読し、ビューポート更新の影響を受けない
func (s *TerritorySyncService) StartRadar(ctx context.Context, center model.LatLng) error {
	if !center.IsFinite() {
		return fmt.Errorf("レーダー中心の座標が不正です")
	}

	for _, prefix := range helper.ShardKeys(center, helper.GeohashPrecisionRadar) {
		s.mu.Lock()
		_, exists := s.radar[prefix]
		s.mu.Unlock()
		if exists {
			continue
		}
		if err := s.subscribeShard(ctx, prefix, s.radar); err != nil {
			return fmt.Errorf("レーダーシャード %s の購読開始失敗: %w", prefix, err)
		}
	}
	return nil
}

// WatchVengeanceTargets は観測者自身のリベンジターゲットのライブ購読を開始する
// ユーザー単位の単一ストリームで、ビューポート変更の影響を受けない
func (s *TerritorySyncService) WatchVengeanceTargets(ctx context.Context, userID string) (*repository.VengeanceStream, error) {
	if userID == "" {
		return nil, fmt.Errorf("ユーザーIDは必須です")
	}
	return s.vengeanceRepo.Watch(ctx, userID)
}

// WaitForFirstSnapshot は全アクティブシャードの初回スナップショット配信を待機する
// タイムアウト後はベストエフォートで継続する（エラーにしない）
func (s *TerritorySyncService) WaitForFirstSnapshot(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	readies := make([]<-chan struct{}, 0, len(s.shards)+len(s.radar))
	for _, state := range s.shards {
		readies = append(readies, state.stream.Ready)
	}
	for _, state := range s.radar {
		readies = append(readies, state.stream.Ready)
	}
	s.mu.Unlock()

	deadline := time.After(timeout)
	for _, ready := range readies {
		select {
		case <-ready:
		case <-deadline:
			log.Printf("⚠️ 初回スナップショットの待機がタイムアウト（ベストエフォートで継続）")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Snapshot は現在のマージ済みスナップショットのコピーを返す
func (s *TerritorySyncService) Snapshot() map[string]*model.OwnershipRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]*model.OwnershipRecord, len(s.cells))
	for cellID, record := range s.cells {
		snapshot[cellID] = record
	}
	return snapshot
}

// GetCells はセルIDリストの一括取得（ストアのinクエリ上限に合わせた分割はリポジトリ側で行う）
func (s *TerritorySyncService) GetCells(ctx context.Context, cellIDs []string) ([]*model.OwnershipRecord, error) {
	if len(cellIDs) == 0 {
		return nil, nil
	}
	return s.territoryRepo.GetByIDs(ctx, cellIDs)
}

// GetCellsByOwner は指定ユーザーが所有する全セルを取得する
func (s *TerritorySyncService) GetCellsByOwner(ctx context.Context, userID string) ([]*model.OwnershipRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("ユーザーIDは必須です")
	}
	return s.territoryRepo.GetByOwner(ctx, userID)
}

// GetCellsByBoundingBox は境界ボックス内のセルを取得する（非ライブの窓付き読み取り）
// 境界ボックスを覆うシャードキー集合を計算し、各シャードを範囲クエリで読む
func (s *TerritorySyncService) GetCellsByBoundingBox(ctx context.Context, minLng, minLat, maxLng, maxLat float64) ([]*model.OwnershipRecord, error) {
	if err := validateBoundingBox(minLng, minLat, maxLng, maxLat); err != nil {
		return nil, fmt.Errorf("境界ボックスの検証失敗: %w", err)
	}

	center := model.LatLng{Lat: (minLat + maxLat) / 2, Lng: (minLng + maxLng) / 2}
	span := math.Max(maxLat-minLat, maxLng-minLng)
	precision := helper.PrecisionForSpan(span)

	seen := make(map[string]*model.OwnershipRecord)
	for _, prefix := range helper.ShardKeys(center, precision) {
		records, err := s.territoryRepo.GetByGeohashPrefix(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("シャード %s の読み取り失敗: %w", prefix, err)
		}
		for _, record := range records {
			seen[record.CellID] = record
		}
	}

	// シャードは境界ボックスより広いため、ボックス内のセルだけに絞り込む
	results := make([]*model.OwnershipRecord, 0, len(seen))
	for _, record := range seen {
		if record.Center == nil {
			continue
		}
		if record.Center.Latitude < minLat || record.Center.Latitude > maxLat {
			continue
		}
		if record.Center.Longitude < minLng || record.Center.Longitude > maxLng {
			continue
		}
		results = append(results, record)
	}
	return results, nil
}

// Close は全購読を解除してサービスを停止する
func (s *TerritorySyncService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	var cancels []func()
	for prefix, state := range s.shards {
		state.active = false
		cancels = append(cancels, state.stream.Cancel)
		delete(s.shards, prefix)
	}
	for prefix, state := range s.radar {
		state.active = false
		cancels = append(cancels, state.stream.Cancel)
		delete(s.radar, prefix)
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// subscribeShard はシャード1件の購読を開始し、受信ループを起動する
func (s *TerritorySyncService) subscribeShard(ctx context.Context, prefix string, registry map[string]*shardState) error {
	stream, err := s.territoryRepo.SubscribeShard(ctx, prefix)
	if err != nil {
		return err
	}

	state := &shardState{prefix: prefix, stream: stream, active: true}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		stream.Cancel()
		return fmt.Errorf("サービスは既にクローズされています")
	}
	registry[prefix] = state
	s.mu.Unlock()

	go s.pumpShard(state)
	return nil
}

// pumpShard はシャードストリームの増分をマージスナップショットに適用する
// 解除済みシャードのインフライトイベントは破棄する（teardownと同一ミューテックス下で判定）
func (s *TerritorySyncService) pumpShard(state *shardState) {
	for change := range state.stream.Changes {
		s.mu.Lock()
		if !state.active || s.closed {
			s.mu.Unlock()
			continue
		}
		if change.Record == nil {
			s.mu.Unlock()
			continue
		}

		switch change.Kind {
		case model.ChangeRemoved:
			delete(s.cells, change.Record.CellID)
		default:
			s.cells[change.Record.CellID] = change.Record
		}

		// 消費が追いつかない観測者には増分を届けない（スナップショットで追いつける）
		select {
		case s.events <- change:
		default:
		}
		s.mu.Unlock()
	}
}

// evictUncoveredLocked は解除されたシャードのセルのうち、残存する購読で
// カバーされないものをスナップショットから取り除く（mu保持前提）
func (s *TerritorySyncService) evictUncoveredLocked(removedPrefixes []string) {
	if len(removedPrefixes) == 0 {
		return
	}

	active := make([]string, 0, len(s.shards)+len(s.radar))
	for prefix := range s.shards {
		active = append(active, prefix)
	}
	for prefix := range s.radar {
		active = append(active, prefix)
	}

	for cellID, record := range s.cells {
		removed := false
		for _, prefix := range removedPrefixes {
			if strings.HasPrefix(record.Geohash, prefix) {
				removed = true
				break
			}
		}
		if !removed {
			continue
		}

		covered := false
		for _, prefix := range active {
			if strings.HasPrefix(record.Geohash, prefix) {
				covered = true
				break
			}
		}
		if !covered {
			delete(s.cells, cellID)
		}
	}
}

// validateBoundingBox 境界ボックスのバリデーション
func validateBoundingBox(minLng, minLat, maxLng, maxLat float64) error {
	if minLng >= maxLng {
		return fmt.Errorf("経度の最小値は最大値より小さい必要があります")
	}
	if minLat >= maxLat {
		return fmt.Errorf("緯度の最小値は最大値より小さい必要があります")
	}
	if minLng < -180 || maxLng > 180 {
		return fmt.Errorf("経度は-180から180の範囲内である必要があります")
	}
	if minLat < -90 || maxLat > 90 {
		return fmt.Errorf("緯度は-90から90の範囲内である必要があります")
	}
	return nil
}

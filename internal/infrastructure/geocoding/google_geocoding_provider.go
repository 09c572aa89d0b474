package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// GoogleGeocodingProvider はGoogle Maps Geocoding APIを使用した逆ジオコーディングの実装
// 獲得セルの地名ラベル補完にのみ使用し、所有ロジックからは呼ばれない
type GoogleGeocodingProvider struct {
	apiKey     string
	httpClient *http.Client
}

// NewGoogleGeocodingProvider は新しいプロバイダを生成する
func NewGoogleGeocodingProvider(apiKey string) *GoogleGeocodingProvider {
	return &GoogleGeocodingProvider{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// ReverseGeocode はGoogle Maps Geocoding APIを呼び出して座標から地名ラベルを取得する
func (g *GoogleGeocodingProvider) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	// 1. APIリクエストURLを構築
	reqURL := g.buildURL(lat, lng)

	// 2. HTTPリクエストを作成・実行
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("リクエストの作成に失敗: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("APIリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("APIからエラーステータスが返されました: %s", resp.Status)
	}

	// 3. JSONレスポンスをパース
	var apiResp googleGeocodingResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("JSONのパースに失敗: %w", err)
	}

	if apiResp.Status == "ZERO_RESULTS" || len(apiResp.Results) == 0 {
		return "", nil // 海上など地名のない座標はエラーにしない
	}
	if apiResp.Status != "OK" {
		return "", errors.New("Geocoding APIエラー: " + apiResp.Status)
	}

	// 4. 町丁目レベルの地名を優先して抽出し、なければ先頭結果の住所を使用
	first := apiResp.Results[0]
	for _, component := range first.AddressComponents {
		for _, componentType := range component.Types {
			if componentType == "sublocality_level_2" || componentType == "sublocality" || componentType == "locality" {
				return component.LongName, nil
			}
		}
	}
	return first.FormattedAddress, nil
}

func (g *GoogleGeocodingProvider) buildURL(lat, lng float64) string {
	baseURL := "https://maps.googleapis.com/maps/api/geocode/json"
	params := url.Values{}
	params.Set("latlng", fmt.Sprintf("%f,%f", lat, lng))
	params.Set("language", "ja")
	params.Set("result_type", "sublocality|locality")
	params.Set("key", g.apiKey)
	return fmt.Sprintf("%s?%s", baseURL, params.Encode())
}

// --- Google Maps APIのレスポンスをパースするための構造体 ---

type googleGeocodingResponse struct {
	Results      []geocodingResult `json:"results"`
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
}
type geocodingResult struct {
	FormattedAddress  string             `json:"formatted_address"`
	AddressComponents []addressComponent `json:"address_components"`
}
type addressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

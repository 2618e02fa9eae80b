package pharmacy

import (
	"sort"
)

// RankingWeights holds the weights of the composite score. Exact numbers
// are deployment configuration, not fixed business constants.
// 複合スコアの重み設定を保持（固定のビジネス定数ではなく設定値）
type RankingWeights struct {
	StockLevelWeight      float64 `yaml:"stock_level_weight"`       // 在庫レベル優先度の係数（最大の重み）
	PriceWeight           float64 `yaml:"price_weight"`             // 価格の重み（安いほど高スコア）
	ReferenceCeilingPrice float64 `yaml:"reference_ceiling_price"`  // 価格正規化用の基準上限価格
	RatingWeight          float64 `yaml:"rating_weight"`            // 薬局評価の重み（小さめ）
	DeliveryWeightCap     float64 `yaml:"delivery_weight_cap"`      // 配送属性スコアの上限（最小の重み）
	DeliveryFeeCeiling    float64 `yaml:"delivery_fee_ceiling"`     // 配送料正規化用の上限
	DeliveryTimeCeiling   float64 `yaml:"delivery_time_ceiling"`    // 平均配送時間正規化用の上限（分）
	Open24HoursBonus      float64 `yaml:"open_24_hours_bonus"`      // 24時間営業ボーナス
	FeatureBonus          float64 `yaml:"feature_bonus"`            // 特徴フラグ1件あたりのボーナス
}

// DefaultRankingWeights returns the default ranking weights
// デフォルトのランキング重みを返す
func DefaultRankingWeights() RankingWeights {
	return RankingWeights{
		StockLevelWeight:      20,
		PriceWeight:           10,
		ReferenceCeilingPrice: 10000,
		RatingWeight:          5,
		DeliveryWeightCap:     3,
		DeliveryFeeCeiling:    1500,
		DeliveryTimeCeiling:   120,
		Open24HoursBonus:      0.5,
		FeatureBonus:          0.25,
	}
}

// Ranker orders available pharmacies by composite score
// 在庫あり薬局を複合スコアで順位付け
type Ranker struct {
	weights RankingWeights
}

// NewRanker creates a new pharmacy ranker
// 新しい薬局ランカーを作成
func NewRanker(weights RankingWeights) *Ranker {
	if weights.StockLevelWeight <= 0 {
		weights = DefaultRankingWeights()
	}
	return &Ranker{weights: weights}
}

// Rank sorts the given records by descending composite score. The result is
// a permutation of the input; ties keep their original relative order.
// Pure function over well-formed input, no failure modes.
// 複合スコア降順で並べ替える（同点は入力順を維持する安定ソート）
func (r *Ranker) Rank(records []RankedPharmacy) []RankedPharmacy {
	ranked := make([]RankedPharmacy, len(records))
	copy(ranked, records)

	for i := range ranked {
		ranked[i].Score = r.Score(ranked[i])
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}

// Score computes the composite score for one record. Missing pharmacy
// attributes contribute a neutral 0 rather than failing.
// 1件の複合スコアを計算（薬局属性が欠損している場合は0として扱う）
func (r *Ranker) Score(rp RankedPharmacy) float64 {
	score := float64(LevelInfo(rp.Stock.StockLevel).Priority) * r.weights.StockLevelWeight
	score += r.priceScore(rp.Stock.Price)

	if rp.Pharmacy != nil {
		score += r.ratingScore(rp.Pharmacy.Rating)
		score += r.deliveryScore(rp.Pharmacy)
	}

	return score
}

// priceScore rewards cheaper prices, normalized against the reference ceiling
// 基準上限価格に対して正規化し、安い価格ほど高くスコア付け
func (r *Ranker) priceScore(price float64) float64 {
	if price <= 0 || r.weights.ReferenceCeilingPrice <= 0 {
		return 0
	}
	normalized := price / r.weights.ReferenceCeilingPrice
	if normalized > 1 {
		normalized = 1
	}
	return (1 - normalized) * r.weights.PriceWeight
}

// ratingScore scales the 0-5 pharmacy rating into its weight
// 0〜5の薬局評価を重みに変換
func (r *Ranker) ratingScore(rating float64) float64 {
	if rating <= 0 {
		return 0
	}
	if rating > 5 {
		rating = 5
	}
	return rating / 5 * r.weights.RatingWeight
}

// deliveryScore combines fee, quoted delivery-time range, 24-hour
// availability and feature flags, capped at DeliveryWeightCap
// 配送料・配送時間・24時間営業・特徴フラグを合算し上限でキャップ
func (r *Ranker) deliveryScore(p *Pharmacy) float64 {
	score := 0.0

	if r.weights.DeliveryFeeCeiling > 0 {
		normalizedFee := p.DeliveryFee / r.weights.DeliveryFeeCeiling
		if normalizedFee > 1 {
			normalizedFee = 1
		}
		score += 1 - normalizedFee
	}

	// 提示された配送時間レンジの平均を使用
	if p.DeliveryTimeMinMinutes > 0 || p.DeliveryTimeMaxMinutes > 0 {
		avgMinutes := float64(p.DeliveryTimeMinMinutes+p.DeliveryTimeMaxMinutes) / 2
		if r.weights.DeliveryTimeCeiling > 0 {
			normalizedTime := avgMinutes / r.weights.DeliveryTimeCeiling
			if normalizedTime > 1 {
				normalizedTime = 1
			}
			score += 1 - normalizedTime
		}
	}

	if p.Open24Hours {
		score += r.weights.Open24HoursBonus
	}
	score += float64(len(p.Features)) * r.weights.FeatureBonus

	if score > r.weights.DeliveryWeightCap {
		score = r.weights.DeliveryWeightCap
	}
	return score
}

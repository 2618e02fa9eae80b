package pharmacy

// Banding holds the configurable classification bands. Bands are a
// configuration constant of the deployment, never hard-coded per item.
// 在庫レベル分類バンドの設定を保持（商品ごとの固定値にはしない）
type Banding struct {
	LowBandMultiplier    float64 `yaml:"low_band_multiplier"`    // low帯の上限 = 発注点 × この係数
	MediumBandMultiplier float64 `yaml:"medium_band_multiplier"` // medium帯の上限 = 発注点 × この係数
}

// DefaultBanding returns the default classification bands
// デフォルトの分類バンドを返す
func DefaultBanding() Banding {
	return Banding{
		LowBandMultiplier:    2.0,
		MediumBandMultiplier: 4.0,
	}
}

// Classifier maps raw quantities to discrete stock levels
// 生の在庫数を離散的な在庫レベルに変換
type Classifier struct {
	banding Banding
}

// NewClassifier creates a new stock classifier
// 新しい在庫分類器を作成
func NewClassifier(banding Banding) *Classifier {
	if banding.LowBandMultiplier <= 1 {
		banding.LowBandMultiplier = DefaultBanding().LowBandMultiplier
	}
	if banding.MediumBandMultiplier <= banding.LowBandMultiplier {
		banding.MediumBandMultiplier = DefaultBanding().MediumBandMultiplier
	}
	return &Classifier{banding: banding}
}

// Classify maps a quantity and its thresholds to a stock level. Pure
// function, no failure modes.
// 在庫数と閾値から在庫レベルを決定（純粋関数）
func (c *Classifier) Classify(quantity, reorderLevel, maxStock int64) StockLevel {
	if quantity <= 0 {
		return StockLevelOut
	}
	if quantity <= reorderLevel {
		return StockLevelCritical
	}
	lowCeiling := int64(float64(reorderLevel) * c.banding.LowBandMultiplier)
	if quantity <= lowCeiling {
		return StockLevelLow
	}
	mediumCeiling := int64(float64(reorderLevel) * c.banding.MediumBandMultiplier)
	if quantity <= mediumCeiling {
		return StockLevelMedium
	}
	return StockLevelHigh
}

// Reclassify recomputes the derived fields of a stock record in place
// 在庫記録の導出フィールドをその場で再計算
func (c *Classifier) Reclassify(record *StockRecord) {
	record.StockLevel = c.Classify(record.StockQuantity, record.ReorderLevel, record.MaxStock)
	record.RecalculateInStock()
}

// 在庫レベルごとの固定表示属性。優先度は単調: high > medium > low > critical > out
var stockLevelInfos = map[StockLevel]StockLevelInfo{
	StockLevelHigh:     {Label: "在庫十分", Icon: "✅", Priority: 5, Color: "green"},
	StockLevelMedium:   {Label: "在庫あり", Icon: "🟢", Priority: 4, Color: "lightgreen"},
	StockLevelLow:      {Label: "残りわずか", Icon: "🟡", Priority: 3, Color: "yellow"},
	StockLevelCritical: {Label: "在庫僅少", Icon: "🟠", Priority: 2, Color: "orange"},
	StockLevelOut:      {Label: "在庫切れ", Icon: "🔴", Priority: 1, Color: "red"},
}

// LevelInfo returns the fixed presentation tuple for a stock level.
// Unknown levels map to the out-of-stock tuple.
// 在庫レベルの固定表示属性を返す（未知のレベルは在庫切れ扱い）
func LevelInfo(level StockLevel) StockLevelInfo {
	if info, ok := stockLevelInfos[level]; ok {
		return info
	}
	return stockLevelInfos[StockLevelOut]
}

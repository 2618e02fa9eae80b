package pharmacy

import (
	"fmt"
	"regexp"
	"strings"
)

// 識別子に許可する文字: 英数字、ハイフン、アンダースコア
var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateMedicineID 医薬品IDの形式をバリデーション
func ValidateMedicineID(medicineID string) error {
	if medicineID == "" {
		return NewValidationError("medicine_id", "医薬品IDが空です", medicineID)
	}
	if len(medicineID) > 255 {
		return NewValidationError("medicine_id", "医薬品IDが長すぎます", medicineID)
	}
	if !identifierPattern.MatchString(medicineID) {
		return NewValidationError("medicine_id", "医薬品IDに無効な文字が含まれています", medicineID)
	}
	return nil
}

// ValidatePharmacyID 薬局IDの形式をバリデーション
func ValidatePharmacyID(pharmacyID string) error {
	if pharmacyID == "" {
		return NewValidationError("pharmacy_id", "薬局IDが空です", pharmacyID)
	}
	if len(pharmacyID) > 255 {
		return NewValidationError("pharmacy_id", "薬局IDが長すぎます", pharmacyID)
	}
	if !identifierPattern.MatchString(pharmacyID) {
		return NewValidationError("pharmacy_id", "薬局IDに無効な文字が含まれています", pharmacyID)
	}
	return nil
}

// ValidateCityID 都市IDの形式をバリデーション（空は任意扱い）
func ValidateCityID(cityID string) error {
	if cityID == "" {
		return nil
	}
	if len(cityID) > 255 {
		return NewValidationError("city_id", "都市IDが長すぎます", cityID)
	}
	if !identifierPattern.MatchString(cityID) {
		return NewValidationError("city_id", "都市IDに無効な文字が含まれています", cityID)
	}
	return nil
}

// ValidateQuantity 在庫数量をバリデーション
func ValidateQuantity(quantity int64) error {
	if quantity < 0 {
		return NewValidationError("quantity", "数量は0以上である必要があります", fmt.Sprintf("%d", quantity))
	}
	if quantity > 999999999 {
		return NewValidationError("quantity", "数量が有効範囲を超えています", fmt.Sprintf("%d", quantity))
	}
	return nil
}

// ValidatePrice 価格をバリデーション
func ValidatePrice(price float64) error {
	if price < 0 {
		return NewValidationError("price", "価格は0以上である必要があります", fmt.Sprintf("%.2f", price))
	}
	if price > 999999.99 {
		return NewValidationError("price", "価格が有効範囲を超えています", fmt.Sprintf("%.2f", price))
	}
	return nil
}

// ValidateRating 薬局評価をバリデーション（0〜5）
func ValidateRating(rating float64) error {
	if rating < 0 || rating > 5 {
		return NewValidationError("rating", "評価は0〜5の範囲である必要があります", fmt.Sprintf("%.1f", rating))
	}
	return nil
}

// ValidateAlertFrequency アラート頻度をバリデーション
func ValidateAlertFrequency(frequency AlertFrequency) error {
	switch frequency {
	case AlertFrequencyImmediate, AlertFrequencyHourly, AlertFrequencyDaily:
		return nil
	}
	return NewValidationError("frequency", "無効なアラート頻度です", string(frequency))
}

// ValidateAlertType アラート種別をバリデーション
func ValidateAlertType(alertType AlertType) error {
	switch alertType {
	case AlertTypeLowStock, AlertTypeCriticalStock, AlertTypeOutOfStock, AlertTypeAutoReorder:
		return nil
	}
	return NewValidationError("alert_type", "無効なアラート種別です", string(alertType))
}

// ValidateAlertPolicy アラート設定全体をバリデーション
func ValidateAlertPolicy(policy *AlertPolicy) error {
	if policy == nil {
		return nil // アラート設定は任意
	}
	if policy.AlertThreshold < 0 {
		return NewValidationError("alert_threshold", "閾値は0以上である必要があります", fmt.Sprintf("%d", policy.AlertThreshold))
	}
	if policy.CriticalThreshold < 0 {
		return NewValidationError("critical_threshold", "閾値は0以上である必要があります", fmt.Sprintf("%d", policy.CriticalThreshold))
	}
	if policy.CriticalThreshold > policy.AlertThreshold {
		return NewValidationError("critical_threshold", "危機的閾値は低在庫閾値以下である必要があります",
			fmt.Sprintf("%d > %d", policy.CriticalThreshold, policy.AlertThreshold))
	}
	return ValidateAlertFrequency(policy.Frequency)
}

// ValidateStockRecord 在庫記録全体をバリデーション
func ValidateStockRecord(record *StockRecord) error {
	if record == nil {
		return NewValidationError("stock_record", "在庫記録が指定されていません", "nil")
	}

	if err := ValidateMedicineID(record.MedicineID); err != nil {
		return err
	}
	if err := ValidatePharmacyID(record.PharmacyID); err != nil {
		return err
	}
	if err := ValidateQuantity(record.StockQuantity); err != nil {
		return err
	}
	if err := ValidateQuantity(record.ReorderLevel); err != nil {
		return err
	}
	if err := ValidateQuantity(record.MaxStock); err != nil {
		return err
	}
	if err := ValidatePrice(record.Price); err != nil {
		return err
	}
	return ValidateAlertPolicy(record.AlertPolicy)
}

// ValidatePharmacy 薬局全体をバリデーション
func ValidatePharmacy(pharmacy *Pharmacy) error {
	if pharmacy == nil {
		return NewValidationError("pharmacy", "薬局が指定されていません", "nil")
	}

	if err := ValidatePharmacyID(pharmacy.ID); err != nil {
		return err
	}
	if strings.TrimSpace(pharmacy.Name) == "" {
		return NewValidationError("name", "薬局名が空です", pharmacy.Name)
	}
	if err := ValidateCityID(pharmacy.CityID); err != nil {
		return err
	}
	if err := ValidateRating(pharmacy.Rating); err != nil {
		return err
	}
	if pharmacy.DeliveryFee < 0 {
		return NewValidationError("delivery_fee", "配送料は0以上である必要があります", fmt.Sprintf("%.2f", pharmacy.DeliveryFee))
	}
	if pharmacy.DeliveryTimeMinMinutes < 0 || pharmacy.DeliveryTimeMaxMinutes < 0 {
		return NewValidationError("delivery_time", "配送時間は0以上である必要があります",
			fmt.Sprintf("%d-%d", pharmacy.DeliveryTimeMinMinutes, pharmacy.DeliveryTimeMaxMinutes))
	}
	if pharmacy.DeliveryTimeMaxMinutes > 0 && pharmacy.DeliveryTimeMinMinutes > pharmacy.DeliveryTimeMaxMinutes {
		return NewValidationError("delivery_time", "最短配送時間が最長配送時間を超えています",
			fmt.Sprintf("%d > %d", pharmacy.DeliveryTimeMinMinutes, pharmacy.DeliveryTimeMaxMinutes))
	}
	return nil
}

// ValidateMedicine 医薬品全体をバリデーション
func ValidateMedicine(medicine *Medicine) error {
	if medicine == nil {
		return NewValidationError("medicine", "医薬品が指定されていません", "nil")
	}

	if err := ValidateMedicineID(medicine.ID); err != nil {
		return err
	}
	if strings.TrimSpace(medicine.Name) == "" {
		return NewValidationError("name", "医薬品名が空です", medicine.Name)
	}
	for _, alt := range medicine.Alternatives {
		if err := ValidateMedicineID(alt); err != nil {
			return err
		}
	}
	return nil
}

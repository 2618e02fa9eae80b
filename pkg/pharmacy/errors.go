package pharmacy

import (
	"errors"
	"fmt"
)

// Common pharmacy stock errors
// 共通の薬局在庫エラー定義

var (
	// ErrMedicineNotFound is returned when a medicine doesn't exist in the catalog
	// 医薬品がカタログに存在しない場合のエラー
	ErrMedicineNotFound = errors.New("医薬品が見つかりません")

	// ErrPharmacyNotFound is returned when a pharmacy doesn't exist
	// 薬局が存在しない場合のエラー
	ErrPharmacyNotFound = errors.New("薬局が見つかりません")

	// ErrStockNotFound is returned when a stock record doesn't exist
	// 在庫記録が存在しない場合のエラー
	ErrStockNotFound = errors.New("在庫記録が見つかりません")

	// ErrAlertNotFound is returned when an alert doesn't exist
	// アラートが存在しない場合のエラー
	ErrAlertNotFound = errors.New("アラートが見つかりません")

	// ErrDuplicateStockRecord is returned when creating a record that already exists
	// 既に存在する在庫記録を作成しようとした場合のエラー
	ErrDuplicateStockRecord = errors.New("在庫記録は既に存在します")

	// ErrDuplicatePharmacy is returned when creating a pharmacy that already exists
	// 既に存在する薬局を作成しようとした場合のエラー
	ErrDuplicatePharmacy = errors.New("薬局は既に存在します")

	// ErrDuplicateMedicine is returned when creating a medicine that already exists
	// 既に存在する医薬品を作成しようとした場合のエラー
	ErrDuplicateMedicine = errors.New("医薬品は既に存在します")

	// ErrInsufficientStock is returned when a sale exceeds the stock on hand
	// 販売数量が手持ち在庫を超える場合のエラー
	ErrInsufficientStock = errors.New("在庫が不足しています")

	// ErrVersionMismatch is returned when optimistic locking fails
	// 楽観的ロック失敗時のエラー
	ErrVersionMismatch = errors.New("バージョンが一致しません。他のユーザーによって更新されています")

	// ErrUnavailable is returned when a remote collaborator can't be reached
	// 外部コラボレーターへ一時的に到達できない場合のエラー（呼び出し側でリトライ可能）
	ErrUnavailable = errors.New("外部サービスが一時的に利用できません")
)

// IntegrityError represents a data-consistency failure, e.g. a stock record
// referencing a pharmacy or medicine absent from its lookup collaborator.
// Distinct from NotFound: it signals corruption and halts the computation.
// データ整合性エラーを表現（NotFoundとは異なり、データ破損を示す）
type IntegrityError struct {
	Entity  string `json:"entity"`  // 欠損しているエンティティ種別
	ID      string `json:"id"`      // 欠損エンティティのID
	Message string `json:"message"` // エラーメッセージ
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("整合性エラー [%s:%s]: %s", e.Entity, e.ID, e.Message)
}

// ValidationError represents a validation error with details
// 詳細付きバリデーションエラーを表現
type ValidationError struct {
	Field   string `json:"field"`   // エラーフィールド
	Message string `json:"message"` // エラーメッセージ
	Value   string `json:"value"`   // 無効な値
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("バリデーションエラー [%s]: %s (値: %s)", e.Field, e.Message, e.Value)
}

// StorageError represents a storage layer error
// ストレージ層のエラーを表現
type StorageError struct {
	Operation string `json:"operation"` // 操作名
	Message   string `json:"message"`   // エラーメッセージ
	Cause     error  `json:"cause"`     // 原因エラー
}

func (e StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ストレージエラー [%s]: %s (原因: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("ストレージエラー [%s]: %s", e.Operation, e.Message)
}

func (e StorageError) Unwrap() error {
	return e.Cause
}

// NewIntegrityError creates a new integrity error
// 新しい整合性エラーを作成
func NewIntegrityError(entity, id, message string) *IntegrityError {
	return &IntegrityError{
		Entity:  entity,
		ID:      id,
		Message: message,
	}
}

// NewValidationError creates a new validation error
// 新しいバリデーションエラーを作成
func NewValidationError(field, message, value string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// NewStorageError creates a new storage error
// 新しいストレージエラーを作成
func NewStorageError(operation, message string, cause error) *StorageError {
	return &StorageError{
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// IsIntegrityError reports whether err is an IntegrityError
// errが整合性エラーかどうかを判定
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// BloodType: группа крови с резус-фактором.
type BloodType string

const (
	BloodTypeOPositive  BloodType = "O_POSITIVE"
	BloodTypeONegative  BloodType = "O_NEGATIVE"
	BloodTypeAPositive  BloodType = "A_POSITIVE"
	BloodTypeANegative  BloodType = "A_NEGATIVE"
	BloodTypeBPositive  BloodType = "B_POSITIVE"
	BloodTypeBNegative  BloodType = "B_NEGATIVE"
	BloodTypeABPositive BloodType = "AB_POSITIVE"
	BloodTypeABNegative BloodType = "AB_NEGATIVE"
)

var bloodTypeSymbols = map[BloodType]string{
	BloodTypeOPositive:  "0+",
	BloodTypeONegative:  "0-",
	BloodTypeAPositive:  "A+",
	BloodTypeANegative:  "A-",
	BloodTypeBPositive:  "B+",
	BloodTypeBNegative:  "B-",
	BloodTypeABPositive: "AB+",
	BloodTypeABNegative: "AB-",
}

// AllBloodTypes returns the eight blood types in display order.
func AllBloodTypes() []BloodType {
	return []BloodType{
		BloodTypeOPositive, BloodTypeONegative,
		BloodTypeAPositive, BloodTypeANegative,
		BloodTypeBPositive, BloodTypeBNegative,
		BloodTypeABPositive, BloodTypeABNegative,
	}
}

func (b BloodType) Valid() bool {
	_, ok := bloodTypeSymbols[b]
	return ok
}

// Symbol возвращает отображаемое обозначение, например "AB-".
func (b BloodType) Symbol() string {
	return bloodTypeSymbols[b]
}

// ParseBloodType принимает каноническое имя ("A_NEGATIVE") или символ ("A-", "0+", "O+").
// Адаптеры источников используют собственные таблицы и сюда не обращаются.
func ParseBloodType(s string) (BloodType, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if b := BloodType(v); b.Valid() {
		return b, nil
	}
	v = strings.ReplaceAll(v, " ", "")
	v = strings.Replace(v, "O", "0", 1)
	for _, b := range AllBloodTypes() {
		if b.Symbol() == v {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: unknown blood type %q", ErrInvalidInput, s)
}

// InventoryStatus: уровень запасов, упорядочен от LOW к HIGH.
type InventoryStatus int

const (
	StatusLow InventoryStatus = iota + 1
	StatusMedium
	StatusSatisfactory
	StatusHigh
)

var statusNames = map[InventoryStatus]string{
	StatusLow:          "LOW",
	StatusMedium:       "MEDIUM",
	StatusSatisfactory: "SATISFACTORY",
	StatusHigh:         "HIGH",
}

var statusDisplayNames = map[InventoryStatus]string{
	StatusLow:          "Niski",
	StatusMedium:       "Średni",
	StatusSatisfactory: "Zadowalający",
	StatusHigh:         "Wysoki",
}

func (s InventoryStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s InventoryStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("InventoryStatus(%d)", int(s))
}

// Level is the ordinal 1..4.
func (s InventoryStatus) Level() int { return int(s) }

// DisplayName returns the Polish label shown by the blood banks.
func (s InventoryStatus) DisplayName() string { return statusDisplayNames[s] }

// ParseInventoryStatus parses the canonical upper-case name.
func ParseInventoryStatus(s string) (InventoryStatus, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for st, name := range statusNames {
		if name == v {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown inventory status %q", s)
}

func (s InventoryStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid inventory status %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

func (s *InventoryStatus) UnmarshalText(text []byte) error {
	st, err := ParseInventoryStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Value хранит статус в БД текстом.
func (s InventoryStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid inventory status %d", int(s))
	}
	return statusNames[s], nil
}

func (s *InventoryStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into InventoryStatus", src)
	}
}

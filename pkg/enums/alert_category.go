package enums

import "fmt"

// AlertCategory maps to the alert_category enum in Postgres.
type AlertCategory string

const (
	AlertCategoryProduction AlertCategory = "production"
	AlertCategoryFinancial  AlertCategory = "financial"
	AlertCategorySystem     AlertCategory = "system"
	AlertCategoryReminder   AlertCategory = "reminder"
	AlertCategoryEvent      AlertCategory = "event"
	AlertCategoryCustom     AlertCategory = "custom"
)

var validAlertCategories = []AlertCategory{
	AlertCategoryProduction,
	AlertCategoryFinancial,
	AlertCategorySystem,
	AlertCategoryReminder,
	AlertCategoryEvent,
	AlertCategoryCustom,
}

// IsValid checks whether the given category matches the canonical enum.
func (a AlertCategory) IsValid() bool {
	for _, candidate := range validAlertCategories {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAlertCategory converts raw strings into AlertCategory.
func ParseAlertCategory(value string) (AlertCategory, error) {
	for _, candidate := range validAlertCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid alert category %q", value)
}

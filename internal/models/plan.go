package models

// DefaultTenant значение метаданных tenant, если клиент его не передал.
const DefaultTenant = "ai-english"

// Plan тарифный план, доступный при оформлении.
type Plan struct {
	ID          string
	Name        string
	PublicLabel string
	PriceID     string
}

// Plans возвращает известные планы с ценами из конфигурации.
// Пустой PriceID означает, что цена не настроена.
func Plans(priceIDs map[string]string) map[string]Plan {
	return map[string]Plan{
		"monthly_basic": {
			ID:          "monthly_basic",
			Name:        "月額プラン",
			PublicLabel: "¥980 / 月",
			PriceID:     priceIDs["monthly_basic"],
		},
		"semiannual_basic": {
			ID:          "semiannual_basic",
			Name:        "6ヶ月プラン",
			PublicLabel: "¥5,280 / 6ヶ月",
			PriceID:     priceIDs["semiannual_basic"],
		},
	}
}

package models

import "strings"

// DefaultCountry: регион, выбранный до первого действия пользователя.
const DefaultCountry = "br"

// Country описывает регион, для которого можно запросить заголовки.
type Country struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

// Countries: поддерживаемые регионы в порядке отображения.
var Countries = []Country{
	{Code: "br", Name: "Brazil", Emoji: "🇧🇷"},
	{Code: "pt", Name: "Portugal", Emoji: "🇵🇹"},
	{Code: "ar", Name: "Argentina", Emoji: "🇦🇷"},
	{Code: "us", Name: "USA", Emoji: "🇺🇸"},
	{Code: "gb", Name: "UK", Emoji: "🇬🇧"},
}

// LookupCountry ищет регион по коду без учёта регистра.
func LookupCountry(code string) (Country, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, c := range Countries {
		if c.Code == code {
			return c, true
		}
	}
	return Country{}, false
}

// CountryCodes возвращает коды всех поддерживаемых регионов.
func CountryCodes() []string {
	codes := make([]string, 0, len(Countries))
	for _, c := range Countries {
		codes = append(codes, c.Code)
	}
	return codes
}

package imagecache

import (
	"net/url"
	"strings"
)

// NormalizeKey приводит URL миниатюры к ключу кеша: схема и хост в нижнем регистре,
// фрагмент отброшен. Допускаются только абсолютные http и https URL.
func NormalizeKey(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fetchError(raw, ErrInvalidKey, nil)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fetchError(raw, ErrInvalidKey, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fetchError(raw, ErrInvalidKey, nil)
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

// ValidKey сообщает, пригоден ли URL для загрузки.
func ValidKey(raw string) bool {
	_, err := NormalizeKey(raw)
	return err == nil
}

package handler

import "github.com/shwanortho/site/internal/locale"

var fixedTitleMap = map[string]string{
	"Admin Login":    "تسجيل دخول المشرف",
	"Content Editor": "محرر المحتوى",
	"Page Not Found": "الصفحة غير موجودة",
}

func localizeFixedTitle(l locale.Locale, title string) string {
	if title == "" {
		return title
	}
	if l == locale.Arabic {
		if mapped, ok := fixedTitleMap[title]; ok {
			return mapped
		}
		return title
	}
	for key, value := range fixedTitleMap {
		if value == title {
			return key
		}
	}
	return title
}

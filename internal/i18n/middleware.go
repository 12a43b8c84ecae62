package i18n

import "net/http"

// Middleware injects a localizer into every request context. The language
// is taken from the "lang" query parameter, then Accept-Language, then lang.
func Middleware(lang string) func(http.Handler) http.Handler {
	fallback := NewLocalizer(lang)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := fallback
			if want := r.URL.Query().Get("lang"); want != "" {
				loc = NewLocalizer(want, lang)
			} else if want := Negotiate(r.Header.Get("Accept-Language")); want != "" {
				loc = NewLocalizer(want, lang)
			}
			ctx := WithLocalizer(r.Context(), loc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

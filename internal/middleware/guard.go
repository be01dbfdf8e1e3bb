package middleware

import "net/http"

// RequireAuthenticated はサインイン済みの訪問者だけを通すガードを返す。
// 未ログインの場合はハンドラーを実行せずredirectToへリダイレクトする。
func RequireAuthenticated(redirectTo string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IdentityFromContext(r.Context()) == nil {
				http.Redirect(w, r, redirectTo, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnonymous は未ログインの訪問者だけを通すガードを返す。
// サインイン済みの場合はredirectToへリダイレクトする。
func RequireAnonymous(redirectTo string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IdentityFromContext(r.Context()) != nil {
				http.Redirect(w, r, redirectTo, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

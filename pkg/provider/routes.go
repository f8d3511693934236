package provider

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
)

func (p *Provider) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/login", p.LoginPage()).Methods(http.MethodGet)
	r.HandleFunc("/login", p.LoginSubmit()).Methods(http.MethodPost)
	r.HandleFunc("/logout", p.Logout()).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/refresh", p.RefreshTokens()).Methods(http.MethodPost)
	return r
}

var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in{{with .Display}} to {{.}}{{end}}</title></head>
<body>
{{with .Error}}<p class="error">{{.}}</p>{{end}}
<form method="POST" action="login">
	<input type="hidden" name="next" value="{{.Next}}">
	<input type="hidden" name="database" value="{{.Database}}">
	<input type="hidden" name="appName" value="{{.AppName}}">
	<label>Handle <input name="handle" autocomplete="username"></label>
	<label>Password <input name="password" type="password" autocomplete="current-password"></label>
	<button type="submit">Sign in</button>
</form>
</body>
</html>
`))

type loginModel struct {
	Next     string
	Database string
	AppName  string
	Display  string
	Error    string
}

func (p *Provider) LoginPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		model := loginModel{
			Next:     q.Get("next"),
			Database: q.Get("database"),
			AppName:  q.Get("appName"),
		}
		if app, err := p.catalog.Get(model.AppName); err == nil {
			model.Display = app.Display
		}
		p.renderLogin(w, r, http.StatusOK, model)
	}
}

func (p *Provider) LoginSubmit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			p.logRequestErr(r, "bad form", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		model := loginModel{
			Next:     r.PostForm.Get("next"),
			Database: r.PostForm.Get("database"),
			AppName:  r.PostForm.Get("appName"),
		}

		next, err := parseNext(model.Next)
		if err != nil || model.Next == "" {
			p.logRequestErr(r, "invalid next", err)
			http.Error(w, "invalid 'next' url", http.StatusBadRequest)
			return
		}

		pair, err := p.Login(
			r.PostForm.Get("handle"),
			r.PostForm.Get("password"),
			model.Database,
			model.AppName,
		)
		if err != nil {
			p.logRequestErr(r, "login failed", err)
			status := statusFor(err)
			if status == http.StatusUnauthorized {
				model.Error = "Invalid handle or password."
			} else {
				model.Error = http.StatusText(status)
			}
			p.renderLogin(w, r, status, model)
			return
		}

		p.log.Infow("login", "handle", r.PostForm.Get("handle"), "app", model.AppName)
		http.Redirect(w, r, redirectWithTokens(next, pair).String(), http.StatusSeeOther)
	}
}

func (p *Provider) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if token := r.Form.Get("refresh_token"); token != "" {
			if err := p.Revoke(token); err != nil && !errors.Is(err, ErrTokenNotFound) {
				p.logRequestErr(r, "revoke failed", err)
			}
		}

		next, err := parseNext(r.Form.Get("next"))
		if err != nil || next.String() == "" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("Signed out.\n"))
			return
		}
		http.Redirect(w, r, next.String(), http.StatusSeeOther)
	}
}

func (p *Provider) RefreshTokens() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			p.logRequestErr(r, "bad form", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		token := r.PostForm.Get("refresh_token")
		if token == "" {
			http.Error(w, "missing 'refresh_token'", http.StatusBadRequest)
			return
		}

		pair, err := p.Refresh(token)
		if err != nil {
			p.logRequestErr(r, "refresh failed", err)
			status := statusFor(err)
			http.Error(w, http.StatusText(status), status)
			return
		}
		returnJson(pair, w)
	}
}

func (p *Provider) renderLogin(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	model loginModel,
) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := loginPage.Execute(w, model); err != nil {
		p.logRequestErr(r, "couldn't render template", err)
	}
}

func (p *Provider) logRequestErr(r *http.Request, msg string, err error) {
	p.log.Warnw(msg, "method", r.Method, "path", r.URL.Path, "error", err)
}

// parseNext accepts only absolute http(s) URLs, or empty.
func parseNext(next string) (*url.URL, error) {
	u, err := url.Parse(next)
	if err != nil {
		return nil, err
	}
	if next == "" {
		return u, nil
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New("next must be an absolute http(s) url")
	}
	return u, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrAccountNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrTokenNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, ErrApplicationNotFound), errors.Is(err, ErrInvalidHandle):
		return http.StatusBadRequest
	case errors.Is(err, ErrHandleExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func returnJson(data any, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

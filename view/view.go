// Package view renders the console pages and the live fragments pushed
// over websockets. Templates and static assets are embedded.
package view

import (
	"bytes"
	"crypto/sha1"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/diewo77/rbac-console/i18n"
	"github.com/diewo77/rbac-console/session"
)

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// LangCookie remembers the language picked with ?lang=.
const LangCookie = "lang"

// fragmentsKey is the cache key of the set holding only live fragments.
const fragmentsKey = "#fragments"

var (
	dev      bool
	tplCache = struct {
		sync.RWMutex
		m map[string]*template.Template
	}{m: map[string]*template.Template{}}
	assetHashes sync.Map

	langResolver = RequestLang
)

// SetDev turns template caching off so every render reparses.
func SetDev(on bool) {
	dev = on
	ResetCache()
}

// ResetCache drops every parsed template.
func ResetCache() {
	tplCache.Lock()
	tplCache.m = map[string]*template.Template{}
	tplCache.Unlock()
}

// SetLangResolver allows the host app to provide a custom language resolver.
func SetLangResolver(f func(*http.Request) string) {
	if f != nil {
		langResolver = f
	}
}

// RequestLang picks ?lang=, then the lang cookie, then Accept-Language.
func RequestLang(r *http.Request) string {
	if l := r.URL.Query().Get(LangCookie); l != "" && i18n.Supported(l) {
		return l
	}
	if c, err := r.Cookie(LangCookie); err == nil && i18n.Supported(c.Value) {
		return c.Value
	}
	return i18n.DetectLanguage(r.Header.Get("Accept-Language"))
}

// Lang returns the language of r as seen by templates.
func Lang(r *http.Request) string { return langResolver(r) }

// Funcs returns the func map for lang.
func Funcs(lang string) template.FuncMap {
	return template.FuncMap{
		"t":     func(code string) string { return i18n.T(lang, code) },
		"lang":  func() string { return lang },
		"year":  func() int { return time.Now().Year() },
		"asset": Asset,
		"ids":   joinIDs,
		"list":  func(values ...string) []string { return values },
		"hasPrefix": strings.HasPrefix,
		// dict creates a map from key-value pairs for passing to sub-templates.
		// Usage: {{ template "partial" (dict "Key1" val1 "Key2" val2) }}
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				m[key] = values[i+1]
			}
			return m
		},
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

// Asset returns the URL of a static file with a content hash for cache
// busting. Unknown files get a plain URL.
func Asset(rel string) string {
	if strings.HasPrefix(rel, "http://") || strings.HasPrefix(rel, "https://") || strings.HasPrefix(rel, "//") {
		return rel
	}
	if h, ok := assetHashes.Load(rel); ok {
		return "/static/" + rel + "?v=" + h.(string)
	}
	b, err := staticFS.ReadFile("static/" + rel)
	if err != nil {
		return "/static/" + rel
	}
	sum := sha1.Sum(b)
	h := fmt.Sprintf("%x", sum[:8])
	assetHashes.Store(rel, h)
	return "/static/" + rel + "?v=" + h
}

// Static serves the embedded assets under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	files := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("v") != "" {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}
		files.ServeHTTP(w, r)
	})
}

var sharedPatterns = []string{"templates/partials/*.html", "templates/live/*.html"}

// load returns the parsed set for name. Cached sets are never executed
// directly; renders work on a clone carrying the request's funcs.
func load(name string) (*template.Template, error) {
	if !dev {
		tplCache.RLock()
		t, ok := tplCache.m[name]
		tplCache.RUnlock()
		if ok {
			return t, nil
		}
	}
	var (
		t   *template.Template
		err error
	)
	if name == fragmentsKey {
		t, err = template.New("fragments").Funcs(Funcs(i18n.Default)).ParseFS(templateFS, sharedPatterns...)
	} else {
		patterns := append([]string{"templates/layout.html", "templates/" + name}, sharedPatterns...)
		t, err = template.New("layout.html").Funcs(Funcs(i18n.Default)).ParseFS(templateFS, patterns...)
	}
	if err != nil {
		return nil, err
	}
	if !dev {
		tplCache.Lock()
		tplCache.m[name] = t
		tplCache.Unlock()
	}
	return t, nil
}

func execute(w io.Writer, name, root, lang string, data any) error {
	base, err := load(name)
	if err != nil {
		return err
	}
	t, err := base.Clone()
	if err != nil {
		return err
	}
	t.Funcs(Funcs(lang))
	return t.ExecuteTemplate(w, root, data)
}

// Render executes a page inside the layout. name is the page file under
// templates, e.g. "admin/permissions.html".
func Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	return RenderStatus(w, r, http.StatusOK, name, data)
}

// RenderStatus is Render with a status code. Nothing is written when the
// template fails.
func RenderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) error {
	// Ensure data map exists and inject common defaults to avoid template errors.
	if data == nil {
		data = map[string]any{}
	}
	lang := Lang(r)
	if _, exists := data["Year"]; !exists {
		data["Year"] = time.Now().Year()
	}
	if _, exists := data["IsLoggedIn"]; !exists {
		sess, loggedIn := session.FromContext(r.Context())
		data["IsLoggedIn"] = loggedIn
		if loggedIn {
			data["Email"] = sess.Email
		}
	}
	data["Lang"] = lang
	data["Languages"] = i18n.Languages()
	data["Path"] = r.URL.Path

	var buf bytes.Buffer
	if err := execute(&buf, name, "layout.html", lang, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// RenderFragment executes one live fragment, e.g. "permissions-view".
func RenderFragment(w io.Writer, lang, fragment string, data any) error {
	return execute(w, fragmentsKey, fragment, lang, data)
}

// Fragment is RenderFragment into a string.
func Fragment(lang, fragment string, data any) (string, error) {
	var b strings.Builder
	if err := RenderFragment(&b, lang, fragment, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

package server

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"strings"
	"time"

	"github.com/ije/rex"
)

var errModuleNotFound = errors.New("module not found")

// servePreview handles requests under the preview prefix: the remainder of
// the path names a source module to render in isolation.
func (app *App) servePreview(pathname string) interface{} {
	name := strings.TrimPrefix(pathname, app.preview.Prefix)
	page, err := app.renderPreview(name)
	if err != nil {
		if err == errModuleNotFound {
			return rex.Status(404, "module not found")
		}
		return err
	}
	return rex.Content("preview.html", page.Modtime, bytes.NewReader(page.Content))
}

// renderPreview resolves the named module, picks the nearest ancestor
// template and returns the preview page html.
func (app *App) renderPreview(name string) (page FileContent, err error) {
	filename, ok := resolveModule(app.wd, name)
	if !ok {
		err = errModuleNotFound
		return
	}

	fi, err := os.Lstat(filename)
	if err != nil {
		return
	}
	modtime := fi.ModTime()

	html := []byte(defaultPreviewHtml)
	templateFile, ok := findTemplate(app.wd, path.Dir(filename), app.preview.Template)
	if ok {
		html, err = ioutil.ReadFile(templateFile)
		if err != nil {
			return
		}
		if tfi, e := os.Lstat(templateFile); e == nil && tfi.ModTime().After(modtime) {
			modtime = tfi.ModTime()
		}
	} else {
		log.Debugf("no %s found for %s, using the default shell", app.preview.Template, name)
	}

	moduleURL := strings.TrimPrefix(filename, app.wd)
	html = injectModuleTag(html, app.preview.Placeholder, moduleURL)
	if app.dev {
		html = injectClient(html)
	}

	page = FileContent{
		Modtime: modtime,
		Content: html,
	}
	return
}

// injectModuleTag replaces the first occurrence of the placeholder token with
// a module-script tag referencing src. A template without the token gets the
// tag inserted before </body>, or appended when no body tag exists either.
func injectModuleTag(html []byte, placeholder, src string) []byte {
	tag := fmt.Sprintf(`<script type="module" src="%s"></script>`, src)
	if bytes.Contains(html, []byte(placeholder)) {
		return bytes.Replace(html, []byte(placeholder), []byte(tag), 1)
	}
	if i := bytes.Index(html, []byte("</body>")); i >= 0 {
		return insertAt(html, i, tag)
	}
	return append(html, []byte(tag+"\n")...)
}

// injectClient adds the builtin dev client before </head>, falling back to
// the start of the document.
func injectClient(html []byte) []byte {
	tag := fmt.Sprintf(`<script type="module" src="%s"></script>`, previewClientJS)
	if i := bytes.Index(html, []byte("</head>")); i >= 0 {
		return insertAt(html, i, tag)
	}
	return append([]byte(tag+"\n"), html...)
}

func insertAt(html []byte, i int, s string) []byte {
	out := make([]byte, 0, len(html)+len(s))
	out = append(out, html[:i]...)
	out = append(out, s...)
	out = append(out, html[i:]...)
	return out
}

// serveReloadEpoch returns the current reload epoch as json; the builtin dev
// client polls it and reloads the page when the epoch advances. The zero
// modtime keeps a Last-Modified header off a response that must never cache.
func (app *App) serveReloadEpoch() interface{} {
	var epoch int64
	if app.reload != nil {
		epoch = app.reload.Epoch()
	}
	body := fmt.Sprintf(`{"epoch":%d}`, epoch)
	return rex.Content("reload.json", time.Time{}, bytes.NewReader([]byte(body)))
}

package server

import (
	"path/filepath"
	"strings"
	"testing"
)

func newTestApp(t *testing.T, dev bool, preview PreviewConfig) *App {
	t.Helper()
	return newApp(nil, t.TempDir(), dev, preview)
}

func TestPreviewConfigNormalize(t *testing.T) {
	tests := []struct {
		in   PreviewConfig
		want PreviewConfig
	}{
		{
			PreviewConfig{},
			PreviewConfig{Prefix: "/__preview/", Template: "preview.html", Placeholder: "<!--module-->"},
		},
		{
			PreviewConfig{Prefix: "p"},
			PreviewConfig{Prefix: "/p/", Template: "preview.html", Placeholder: "<!--module-->"},
		},
		{
			PreviewConfig{Prefix: "/iso/", Template: "shell.html", Placeholder: "{{module}}"},
			PreviewConfig{Prefix: "/iso/", Template: "shell.html", Placeholder: "{{module}}"},
		},
	}
	for _, tt := range tests {
		got := tt.in
		got.normalize()
		if got != tt.want {
			t.Errorf("normalize(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestInjectModuleTag(t *testing.T) {
	tag := `<script type="module" src="/src/widget.ts"></script>`
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"placeholder",
			"<body><!--module--></body>",
			"<body>" + tag + "</body>",
		},
		{
			"first placeholder only",
			"<body><!--module--><!--module--></body>",
			"<body>" + tag + "<!--module--></body>",
		},
		{
			"no placeholder, body close",
			"<body><h1>x</h1></body>",
			"<body><h1>x</h1>" + tag + "</body>",
		},
		{
			"bare fragment",
			"<h1>x</h1>",
			"<h1>x</h1>" + tag + "\n",
		},
	}
	for _, tt := range tests {
		got := injectModuleTag([]byte(tt.html), "<!--module-->", "/src/widget.ts")
		if string(got) != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestInjectClient(t *testing.T) {
	tag := `<script type="module" src="` + previewClientJS + `"></script>`

	got := injectClient([]byte("<head><title>t</title></head><body></body>"))
	if string(got) != "<head><title>t</title>"+tag+"</head><body></body>" {
		t.Errorf("head injection: got %q", got)
	}

	got = injectClient([]byte("<h1>x</h1>"))
	if string(got) != tag+"\n<h1>x</h1>" {
		t.Errorf("no-head injection: got %q", got)
	}
}

func TestRenderPreview(t *testing.T) {
	app := newTestApp(t, true, PreviewConfig{})
	writeFile(t, filepath.Join(app.wd, "src/widget.tsx"), "export default null")
	writeFile(t, filepath.Join(app.wd, "src/preview.html"),
		"<html><head></head><body data-shell=\"src\"><!--module--></body></html>")

	page, err := app.renderPreview("src/widget")
	if err != nil {
		t.Fatalf("renderPreview: %v", err)
	}
	html := string(page.Content)
	if !strings.Contains(html, `<script type="module" src="/src/widget.tsx"></script>`) {
		t.Errorf("missing module script tag in %q", html)
	}
	if !strings.Contains(html, `data-shell="src"`) {
		t.Errorf("nearest template not used: %q", html)
	}
	if strings.Contains(html, "<!--module-->") {
		t.Errorf("placeholder left in output: %q", html)
	}
	if !strings.Contains(html, previewClientJS) {
		t.Errorf("dev client not injected: %q", html)
	}
	if page.Modtime.IsZero() {
		t.Error("zero modtime")
	}
}

func TestRenderPreviewAncestorTemplate(t *testing.T) {
	// the template may live levels above the module
	app := newTestApp(t, true, PreviewConfig{})
	writeFile(t, filepath.Join(app.wd, "preview.html"),
		"<body data-shell=\"root\"><!--module--></body>")
	writeFile(t, filepath.Join(app.wd, "src/deep/part.ts"), "export {}")

	page, err := app.renderPreview("src/deep/part")
	if err != nil {
		t.Fatalf("renderPreview: %v", err)
	}
	if !strings.Contains(string(page.Content), `data-shell="root"`) {
		t.Errorf("root template not found: %q", page.Content)
	}
}

func TestRenderPreviewDefaultShell(t *testing.T) {
	app := newTestApp(t, true, PreviewConfig{})
	writeFile(t, filepath.Join(app.wd, "widget.ts"), "export {}")

	page, err := app.renderPreview("widget")
	if err != nil {
		t.Fatalf("renderPreview: %v", err)
	}
	html := string(page.Content)
	if !strings.Contains(html, "<title>Preview</title>") {
		t.Errorf("default shell not used: %q", html)
	}
	if !strings.Contains(html, `src="/widget.ts"`) {
		t.Errorf("missing module script tag: %q", html)
	}
}

func TestRenderPreviewNotFound(t *testing.T) {
	app := newTestApp(t, true, PreviewConfig{})
	for _, name := range []string{"missing", "", "../outside"} {
		if _, err := app.renderPreview(name); err != errModuleNotFound {
			t.Errorf("renderPreview(%q): err = %v, want errModuleNotFound", name, err)
		}
	}
}

func TestRenderPreviewNonDev(t *testing.T) {
	app := newTestApp(t, false, PreviewConfig{})
	writeFile(t, filepath.Join(app.wd, "widget.ts"), "export {}")

	page, err := app.renderPreview("widget")
	if err != nil {
		t.Fatalf("renderPreview: %v", err)
	}
	if strings.Contains(string(page.Content), previewClientJS) {
		t.Errorf("dev client injected outside dev mode: %q", page.Content)
	}
}

func TestRenderPreviewCustomPlaceholder(t *testing.T) {
	app := newTestApp(t, true, PreviewConfig{Template: "shell.html", Placeholder: "{{module}}"})
	writeFile(t, filepath.Join(app.wd, "shell.html"), "<body>{{module}}</body>")
	writeFile(t, filepath.Join(app.wd, "widget.ts"), "export {}")

	page, err := app.renderPreview("widget")
	if err != nil {
		t.Fatalf("renderPreview: %v", err)
	}
	if !strings.Contains(string(page.Content), `<script type="module" src="/widget.ts"></script>`) {
		t.Errorf("custom placeholder not substituted: %q", page.Content)
	}
}

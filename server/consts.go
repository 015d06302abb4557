package server

const (
	defaultPreviewPrefix = "/__preview/"
	defaultTemplateName  = "preview.html"
	defaultPlaceholder   = "<!--module-->"

	builtinPrefix   = "/builtin:"
	previewClientJS = builtinPrefix + "preview-client.ts"
	reloadEndpoint  = "/@reload"
)

const (
	defaultIndexHtml = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body>
  <script type="module" src="%s"></script>
</body>
</html>
`

	// the shell used when no ancestor template file exists
	defaultPreviewHtml = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Preview</title>
</head>
<body>
  <!--module-->
</body>
</html>
`

	// a JS shim that installs a css file as a <style> element,
	// served for `*.css?module` requests
	cssLoader = `const url = "%s"
const css = %s
let el = document.querySelector("style[data-module-url='" + url + "']")
if (!el) {
  el = document.createElement("style")
  el.setAttribute("data-module-url", url)
  document.head.appendChild(el)
}
el.textContent = css
export default css
`
)

var (
	defaultModuleExts = []string{".ts", ".mjs", ".js", ".tsx", ".jsx"}
)

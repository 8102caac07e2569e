package handlers

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"wireviz-web/internal/config"
	"wireviz-web/internal/domain"
	"wireviz-web/internal/infra/wireviz"
	"wireviz-web/internal/plantuml"
)

const fakeEnginePrelude = `#!/bin/sh
input="$1"; shift
out=""; fmt="svg"
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift 2 ;;
    -f) fmt="$2"; shift 2 ;;
    *) shift ;;
  esac
done
`

// svgAndPNGEngine emits the proper magic for either format.
const svgAndPNGEngine = fakeEnginePrelude + `if [ "$fmt" = "png" ]; then
  printf '\211PNG\r\n\032\n' > "$out/input.$fmt"
else
  printf '<svg xmlns="http://www.w3.org/2000/svg"></svg>' > "$out/input.$fmt"
fi
`

func writeEngine(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-wireviz")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write fake engine: %v", err)
	}
	return path
}

func testRenderCfg(enginePath, workDir string) config.Config {
	var cfg config.Config
	cfg.Engine.Path = enginePath
	cfg.Engine.WorkDir = workDir
	cfg.Engine.TimeoutSecs = 5
	cfg.Limits.MaxYAMLBytes = 1024 * 1024
	cfg.Limits.MaxArtifactBytes = 1024 * 1024
	return cfg
}

func newTestApp(cfg config.Config) (*fiber.App, *RenderService) {
	svc := NewRenderService(cfg, nil, wireviz.New(cfg))
	app := fiber.New()
	app.Post("/render", svc.HandleRender)
	app.Get("/plantuml/:imagetype/:encoded", svc.HandlePlantUML)
	app.Get("/engine/stats", svc.HandleEngineStats)
	return app, svc
}

func multipartBody(t *testing.T, filename, yamlBody string, images []domain.Asset) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := w.CreateFormFile("yml_file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write([]byte(yamlBody)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	for _, img := range images {
		fw, err := w.CreateFormFile("images", img.Name)
		if err != nil {
			t.Fatalf("create image part: %v", err)
		}
		if _, err := fw.Write(img.Data); err != nil {
			t.Fatalf("write image part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestHandleRender_DefaultsToSVG(t *testing.T) {
	workBase := t.TempDir()
	app, _ := newTestApp(testRenderCfg(writeEngine(t, svgAndPNGEngine), workBase))

	body, ct := multipartBody(t, "demo01.yaml", "connectors:\n  X1:\n    pincount: 4\n", nil)
	req := httptest.NewRequest("POST", "/render", body)
	req.Header.Set("Content-Type", ct)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(payload), "<svg") {
		t.Fatalf("expected svg payload, got %q", payload)
	}
	if got := resp.Header.Get("Content-Type"); got != "image/svg+xml" {
		t.Fatalf("content type = %q", got)
	}
	if got := resp.Header.Get("Content-Disposition"); got != "attachment; filename=demo01.svg" {
		t.Fatalf("content disposition = %q", got)
	}
	entries, _ := os.ReadDir(workBase)
	if len(entries) != 0 {
		t.Fatalf("expected working area cleaned up, found %d entries", len(entries))
	}
}

func TestHandleRender_PNGViaAccept(t *testing.T) {
	app, _ := newTestApp(testRenderCfg(writeEngine(t, svgAndPNGEngine), t.TempDir()))

	body, ct := multipartBody(t, "demo01.yaml", "connectors:\n  X1:\n    pincount: 4\n", nil)
	req := httptest.NewRequest("POST", "/render", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Accept", "image/png")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(payload, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}) {
		t.Fatalf("expected png magic, got %v", payload)
	}
	if got := resp.Header.Get("Content-Disposition"); got != "attachment; filename=demo01.png" {
		t.Fatalf("content disposition = %q", got)
	}
}

func TestHandleRender_UnrecognizedAcceptFallsBackToSVG(t *testing.T) {
	app, _ := newTestApp(testRenderCfg(writeEngine(t, svgAndPNGEngine), t.TempDir()))

	body, ct := multipartBody(t, "demo01.yaml", "connectors:\n", nil)
	req := httptest.NewRequest("POST", "/render", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "image/svg+xml" {
		t.Fatalf("expected svg fallback, content type = %q", got)
	}
}

func TestHandleRender_MissingFile(t *testing.T) {
	app, _ := newTestApp(testRenderCfg("/definitely/missing/wireviz", t.TempDir()))

	body, ct := multipartBody(t, "", "", nil)
	req := httptest.NewRequest("POST", "/render", body)
	req.Header.Set("Content-Type", ct)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for missing yml_file, got %d", resp.StatusCode)
	}
}

func TestHandleRender_DescriptionTooLarge(t *testing.T) {
	cfg := testRenderCfg("/definitely/missing/wireviz", t.TempDir())
	cfg.Limits.MaxYAMLBytes = 16
	app, _ := newTestApp(cfg)

	body, ct := multipartBody(t, "demo01.yaml", strings.Repeat("x", 64), nil)
	req := httptest.NewRequest("POST", "/render", body)
	req.Header.Set("Content-Type", ct)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
}

func TestHandleRender_EngineFailure(t *testing.T) {
	workBase := t.TempDir()
	script := writeEngine(t, "#!/bin/sh\necho 'wireviz: designator X9 not found' >&2\nexit 2\n")
	app, _ := newTestApp(testRenderCfg(script, workBase))

	body, ct := multipartBody(t, "demo01.yaml", "connectors:\n", nil)
	req := httptest.NewRequest("POST", "/render", body)
	req.Header.Set("Content-Type", ct)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	payload, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(payload), "designator X9 not found") {
		t.Fatalf("expected engine diagnostics in body, got %q", payload)
	}
	entries, _ := os.ReadDir(workBase)
	if len(entries) != 0 {
		t.Fatalf("expected working area cleaned up after failure, found %d entries", len(entries))
	}
}

func TestHandleRender_Timeout(t *testing.T) {
	cfg := testRenderCfg(writeEngine(t, "#!/bin/sh\nsleep 5\n"), t.TempDir())
	cfg.Engine.TimeoutSecs = 1
	app, _ := newTestApp(cfg)

	body, ct := multipartBody(t, "demo01.yaml", "connectors:\n", nil)
	req := httptest.NewRequest("POST", "/render", body)
	req.Header.Set("Content-Type", ct)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusRequestTimeout {
		t.Fatalf("expected 408, got %d", resp.StatusCode)
	}
}

func TestHandleRender_ArtifactTooLarge(t *testing.T) {
	cfg := testRenderCfg(writeEngine(t, svgAndPNGEngine), t.TempDir())
	cfg.Limits.MaxArtifactBytes = 4
	app, _ := newTestApp(cfg)

	body, ct := multipartBody(t, "demo01.yaml", "connectors:\n", nil)
	req := httptest.NewRequest("POST", "/render", body)
	req.Header.Set("Content-Type", ct)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversized artifact, got %d", resp.StatusCode)
	}
}

func TestHandleRender_DuplicateImageNames(t *testing.T) {
	script := writeEngine(t, fakeEnginePrelude+`dir=$(dirname "$input")
cat "$dir/resources/logo.png" > "$out/input.$fmt"
`)
	app, _ := newTestApp(testRenderCfg(script, t.TempDir()))

	body, ct := multipartBody(t, "demo01.yaml", "connectors:\n", []domain.Asset{
		{Name: "logo.png", Data: []byte("stale")},
		{Name: "logo.png", Data: []byte("fresh")},
	})
	req := httptest.NewRequest("POST", "/render", body)
	req.Header.Set("Content-Type", ct)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload, _ := io.ReadAll(resp.Body)
	if string(payload) != "fresh" {
		t.Fatalf("expected engine to see the later image, got %q", payload)
	}
}

func TestHandlePlantUML_RendersEncodedDescription(t *testing.T) {
	app, _ := newTestApp(testRenderCfg(writeEngine(t, svgAndPNGEngine), t.TempDir()))

	encoded, err := plantuml.Encode("connectors:\n  X1:\n    pincount: 4\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/plantuml/svg/"+encoded, nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(payload), "<svg") {
		t.Fatalf("expected svg payload, got %q", payload)
	}
	if got := resp.Header.Get("Content-Disposition"); got != "attachment; filename=rendered.svg" {
		t.Fatalf("content disposition = %q", got)
	}
}

func TestHandlePlantUML_RejectsUnknownImageType(t *testing.T) {
	app, _ := newTestApp(testRenderCfg("/definitely/missing/wireviz", t.TempDir()))

	encoded, _ := plantuml.Encode("x: 1\n")
	resp, err := app.Test(httptest.NewRequest("GET", "/plantuml/jpg/"+encoded, nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for jpg, got %d", resp.StatusCode)
	}
}

func TestHandlePlantUML_RejectsBadEncoding(t *testing.T) {
	app, _ := newTestApp(testRenderCfg("/definitely/missing/wireviz", t.TempDir()))

	resp, err := app.Test(httptest.NewRequest("GET", "/plantuml/svg/~~~", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for invalid encoding, got %d", resp.StatusCode)
	}
}

func TestHandleEngineStats(t *testing.T) {
	script := writeEngine(t, `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "WireViz 0.4.1"
  exit 0
fi
exit 64
`)
	app, _ := newTestApp(testRenderCfg(script, t.TempDir()))

	resp, err := app.Test(httptest.NewRequest("GET", "/engine/stats", nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(payload), "WireViz 0.4.1") {
		t.Fatalf("expected version in stats, got %q", payload)
	}
	if !strings.Contains(string(payload), "timeout_secs") {
		t.Fatalf("expected timeout in stats, got %q", payload)
	}
}

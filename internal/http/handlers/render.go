package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"wireviz-web/internal/config"
	"wireviz-web/internal/domain"
	"wireviz-web/internal/infra/logging"
	"wireviz-web/internal/infra/wireviz"
	"wireviz-web/internal/metrics"
	"wireviz-web/internal/plantuml"
)

// RenderService bundles configuration and dependencies for diagram rendering.
type RenderService struct {
	Config *config.Config
	Redis  *redis.Client
	Runner *wireviz.Runner
}

// NewRenderService creates a new RenderService instance.
func NewRenderService(cfg config.Config, rdb *redis.Client, runner *wireviz.Runner) *RenderService {
	return &RenderService{
		Config: &cfg,
		Redis:  rdb,
		Runner: runner,
	}
}

// HandleRender accepts a multipart upload (field yml_file, optional repeated
// field images) and responds with the rendered diagram. The Accept header
// picks the output format; anything but a supported MIME type means SVG.
func (svc *RenderService) HandleRender(c *fiber.Ctx) error {
	file, err := c.FormFile("yml_file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Missing yml_file upload")
	}
	yamlInput, err := readFormFile(file)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Cannot read yml_file upload")
	}

	var assets []domain.Asset
	if form, err := c.MultipartForm(); err == nil {
		for _, fh := range form.File["images"] {
			data, err := readFormFile(fh)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Cannot read uploaded image "+fh.Filename)
			}
			assets = append(assets, domain.Asset{Name: fh.Filename, Data: data})
		}
	}

	format, err := domain.FormatFromMIME(c.Get(fiber.HeaderAccept))
	if err != nil {
		format = domain.DefaultFormat
	}

	return svc.respondRender(c, domain.RenderRequest{
		YAML:       yamlInput,
		Assets:     assets,
		Format:     format,
		OutputName: outputName(file.Filename, format),
	})
}

// HandlePlantUML renders a description passed in the URL using the PlantUML
// text encoding. Unlike the upload route, the format token here is strict.
func (svc *RenderService) HandlePlantUML(c *fiber.Ctx) error {
	format, err := domain.ParseFormat(c.Params("imagetype"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid image type: must be svg or png")
	}

	yamlText, err := plantuml.Decode(c.Params("encoded"))
	if err != nil {
		metrics.DecodeErrors.Inc()
		return fiber.NewError(fiber.StatusBadRequest, "Invalid encoding: "+err.Error())
	}

	return svc.respondRender(c, domain.RenderRequest{
		YAML:       []byte(yamlText),
		Format:     format,
		OutputName: "rendered." + format.Ext(),
	})
}

// respondRender is the shared funnel: size checks, cache lookup, engine
// invocation, cache fill, response headers.
func (svc *RenderService) respondRender(c *fiber.Ctx, req domain.RenderRequest) error {
	if max := svc.Config.Limits.MaxYAMLBytes; max > 0 && len(req.YAML) > max {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, fmt.Sprintf("Description exceeds %d bytes", max))
	}

	cacheKey := computeRenderCacheKey(req)

	if svc.cacheEnabled() {
		if cached, err := getCachedArtifact(c, svc.Redis, cacheKey); err == nil && cached != nil {
			metrics.RenderCacheHits.Inc()
			logging.Info("Render cache hit", "key", cacheKey)
			return sendArtifact(c, &domain.Artifact{
				Bytes:    cached,
				MIMEType: req.Format.MIMEType(),
				Filename: req.OutputName,
			})
		}
		metrics.RenderCacheMisses.Inc()
	}

	artifact, err := svc.Runner.Render(c.Context(), req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logging.Error("Diagram rendering timeout", "timeout_secs", svc.Config.Engine.TimeoutSecs, "error", err.Error())
			return fiber.NewError(fiber.StatusRequestTimeout, "Diagram rendering took too long")
		}
		logging.Error("Diagram rendering failed", "error", err.Error())
		return fiber.NewError(fiber.StatusInternalServerError, "Diagram rendering failed: "+err.Error())
	}

	if max := svc.Config.Limits.MaxArtifactBytes; max > 0 && len(artifact.Bytes) > max {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "Rendered artifact exceeds allowed size")
	}

	if svc.cacheEnabled() {
		setCachedArtifact(c, svc.Redis, cacheKey, artifact.Bytes, svc.Config.Cache.RenderCacheTTL.Std())
	}

	requestID := c.Get("X-Request-ID")
	logging.Info("Diagram rendered", "filename", artifact.Filename, "format", string(req.Format), "request_id", requestID)

	return sendArtifact(c, artifact)
}

// HandleEngineStats exposes engine observability: binary, timeout and the
// runner's invocation counters, plus a live version probe.
func (svc *RenderService) HandleEngineStats(c *fiber.Ctx) error {
	st := svc.Runner.Stats()
	resp := fiber.Map{
		"engine":       svc.Config.Engine.Path,
		"timeout_secs": svc.Config.Engine.TimeoutSecs,
		"renders":      st.Renders,
		"failures":     st.Failures,
	}
	if !st.LastRender.IsZero() {
		resp["last_render"] = st.LastRender
	}

	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()
	if v, err := svc.Runner.Version(ctx); err == nil {
		resp["version"] = v
	} else {
		resp["version_error"] = err.Error()
	}
	return c.JSON(resp)
}

func (svc *RenderService) cacheEnabled() bool {
	return svc.Redis != nil && svc.Config.Cache.RenderCacheEnabled
}

func sendArtifact(c *fiber.Ctx, a *domain.Artifact) error {
	c.Set(fiber.HeaderContentType, a.MIMEType)
	c.Set(fiber.HeaderContentDisposition, "attachment; filename="+a.Filename)
	return c.Send(a.Bytes)
}

// outputName derives the artifact filename from the uploaded document's base
// name, swapping the extension for the target format's.
func outputName(uploadName string, f domain.Format) string {
	base := filepath.Base(uploadName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "diagram"
	}
	return base + "." + f.Ext()
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

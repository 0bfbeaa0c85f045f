package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/BaSui01/fmriflow/api"
	"github.com/BaSui01/fmriflow/dockertags"
	"github.com/BaSui01/fmriflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🐳 Docker 标签 Handler
// =============================================================================

// TagFetcher 查询镜像标签，dockertags.Client 实现该接口
type TagFetcher interface {
	Fetch(ctx context.Context, image string) ([]string, error)
	FetchAll(ctx context.Context, images map[string]string) (*dockertags.Result, error)
}

// DockerTagsHandler Docker 标签处理器
type DockerTagsHandler struct {
	fetcher TagFetcher
	catalog Catalog
	logger  *zap.Logger
}

// NewDockerTagsHandler 创建 Docker 标签处理器
func NewDockerTagsHandler(fetcher TagFetcher, catalog Catalog, logger *zap.Logger) *DockerTagsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DockerTagsHandler{
		fetcher: fetcher,
		catalog: catalog,
		logger:  logger.With(zap.String("handler", "docker_tags")),
	}
}

// HandleTags 返回镜像标签
// @Summary Docker 标签
// @Description 指定 image 时返回该镜像的标签；否则返回目录中每个库的镜像标签，单个库失败不影响其他库
// @Tags Docker
// @Produce json
// @Param image query string false "镜像名，如 brainlife/fsl"
// @Success 200 {object} api.DockerTagsResponse "单个镜像"
// @Success 200 {object} dockertags.Result "全部库"
// @Failure 400 {object} Response "镜像名无效"
// @Failure 502 {object} Response "Docker Hub 请求失败"
// @Security ApiKeyAuth
// @Router /api/v1/docker/tags [get]
func (h *DockerTagsHandler) HandleTags(w http.ResponseWriter, r *http.Request) {
	if image := r.URL.Query().Get("image"); image != "" {
		h.fetchOne(w, r, image)
		return
	}

	images := h.images()
	res, err := h.fetcher.FetchAll(r.Context(), images)
	if err != nil {
		WriteError(w, r, types.WrapError(err, types.ErrUpstreamTimeout, "tag fetch cancelled"), h.logger)
		return
	}
	if len(res.Errors) > 0 {
		h.logger.Warn("some libraries have no tags", zap.Any("errors", res.Errors))
	}
	WriteSuccess(w, r, res)
}

func (h *DockerTagsHandler) fetchOne(w http.ResponseWriter, r *http.Request, image string) {
	tags, err := h.fetcher.Fetch(r.Context(), image)
	if err != nil {
		WriteError(w, r, tagError(err), h.logger)
		return
	}
	WriteSuccess(w, r, api.DockerTagsResponse{Image: image, Tags: tags})
}

// images 目录中声明的镜像，目录未声明时使用内置列表
func (h *DockerTagsHandler) images() map[string]string {
	if h.catalog != nil {
		if images := h.catalog.Current().DockerImages(); len(images) > 0 {
			return images
		}
	}
	images := make(map[string]string, len(dockertags.DefaultImages))
	for lib, image := range dockertags.DefaultImages {
		images[lib] = image
	}
	return images
}

func tagError(err error) *types.Error {
	if apiErr, ok := types.AsError(err); ok {
		return apiErr
	}
	if errors.Is(err, dockertags.ErrInvalidImage) {
		return types.NewError(types.ErrInvalidRequest, "invalid image name").WithCause(err)
	}
	return types.WrapError(err, types.ErrUpstreamError, "docker hub request failed")
}

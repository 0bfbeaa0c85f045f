package api

import (
	"encoding/json"
	"time"

	"github.com/BaSui01/fmriflow/compat"
	"github.com/BaSui01/fmriflow/registry"
)

// =============================================================================
// 工具目录类型
// =============================================================================

// ToolSummary 是工具列表中的单个条目。
// @Description 工具摘要
type ToolSummary struct {
	// 画布上显示的工具标签
	Label string `json:"label" example:"bet"`
	// 工作流步骤使用的工具 ID
	ID string `json:"id" example:"bet"`
	// 所属库（fsl、afni、ants、freesurfer）
	Library string `json:"library,omitempty" example:"fsl"`
	// Docker 镜像
	DockerImage string `json:"docker_image,omitempty" example:"brainlife/fsl"`
	// 主要输出
	PrimaryOutputs []string `json:"primary_outputs,omitempty"`
	// 必需输入数量
	RequiredInputs int `json:"required_inputs" example:"2"`
	// 可选参数数量
	OptionalInputs int `json:"optional_inputs" example:"12"`
	// 输出数量
	Outputs int `json:"outputs" example:"6"`
}

// ToolListResponse 表示工具列表。
// @Description 工具列表响应
type ToolListResponse struct {
	// 按目录顺序排列的工具
	Tools []ToolSummary `json:"tools"`
	// 按库分组的工具标签
	Libraries map[string][]string `json:"libraries"`
}

// ToolDetailResponse 表示单个工具的完整描述与可连接端口。
// @Description 工具详情响应
type ToolDetailResponse struct {
	// 工具描述
	Tool *registry.ToolDescriptor `json:"tool"`
	// 可连接端口
	Ports compat.Ports `json:"ports"`
}

// =============================================================================
// 编译类型
// =============================================================================

// CompileResponse 是 JSON 包装的编译结果，仅在请求 envelope=true 时返回。
// @Description 编译响应
type CompileResponse struct {
	// 输出格式（yaml、json）
	Format string `json:"format" example:"yaml"`
	// 图指纹
	Fingerprint string `json:"fingerprint"`
	// 步骤数量，命中缓存时省略
	Steps int `json:"steps,omitempty" example:"3"`
	// 是否命中缓存
	Cached bool `json:"cached"`
	// CWL 文档文本
	Document string `json:"document"`
}

// =============================================================================
// 兼容性检查类型
// =============================================================================

// CompatCheckRequest 检查一条连接。提供 source_tool 时按工具端口检查，
// 否则直接比较给出的类型与扩展名。
// @Description 兼容性检查请求
type CompatCheckRequest struct {
	// 请求 ID，WebSocket 回包原样返回
	ID string `json:"id,omitempty"`
	// 上游工具标签
	SourceTool string `json:"source_tool,omitempty" example:"bet"`
	// 上游输出名
	SourceOutput string `json:"source_output,omitempty" example:"brain_extraction"`
	// 下游工具标签
	TargetTool string `json:"target_tool,omitempty" example:"fast"`
	// 下游输入名
	TargetInput string `json:"target_input,omitempty" example:"input"`
	// 输出类型
	OutputType string `json:"output_type,omitempty" example:"File"`
	// 输入类型
	InputType string `json:"input_type,omitempty" example:"File"`
	// 输出文件扩展名
	OutputExtensions []string `json:"output_extensions,omitempty"`
	// 输入可接受的扩展名
	InputExtensions []string `json:"input_extensions,omitempty"`
}

// ByTool 是否按工具端口检查
func (r *CompatCheckRequest) ByTool() bool {
	return r.SourceTool != ""
}

// CompatCheckResponse 兼容性检查结果。
// @Description 兼容性检查响应
type CompatCheckResponse struct {
	// 对应请求 ID
	ID string `json:"id,omitempty"`
	// 检查结果
	Result compat.Result `json:"result"`
	// 两个工具首次连接时的默认映射建议
	Suggestion *compat.Suggestion `json:"suggestion,omitempty"`
	// 首次连接时主输出与首个透传输入的类型不匹配
	Mismatch bool `json:"mismatch,omitempty"`
	// 错误信息（仅 WebSocket）
	Error string `json:"error,omitempty"`
}

// ExtensionCheckRequest 比较两组文件扩展名。
// @Description 扩展名检查请求
type ExtensionCheckRequest struct {
	// 输出文件扩展名
	OutputExtensions []string `json:"output_extensions"`
	// 输入可接受的扩展名
	InputExtensions []string `json:"input_extensions"`
}

// GlobRequest 从输出 glob 中解析扩展名。
// @Description glob 解析请求
type GlobRequest struct {
	// CWL 输出 glob 模式
	Globs []string `json:"globs" example:"$(inputs.output).nii.gz"`
}

// GlobResponse glob 解析结果。
// @Description glob 解析响应
type GlobResponse struct {
	// 解析得到的扩展名
	Extensions []string `json:"extensions"`
	// 扩展名所属的文件类别
	Category compat.Category `json:"category,omitempty"`
}

// =============================================================================
// Docker 标签类型
// =============================================================================

// DockerTagsResponse 单个镜像的标签列表。
// @Description Docker 标签响应
type DockerTagsResponse struct {
	// 镜像名
	Image string `json:"image" example:"brainlife/fsl"`
	// 过滤后的标签，latest 总在首位
	Tags []string `json:"tags"`
}

// =============================================================================
// 工作区类型
// =============================================================================

// WorkspaceRequest 创建或更新工作区。更新时未提供的字段保持不变。
// @Description 工作区请求
type WorkspaceRequest struct {
	// 名称
	Name *string `json:"name,omitempty" example:"preprocessing"`
	// 描述
	Description *string `json:"description,omitempty"`
	// 编辑器画布快照
	Canvas json.RawMessage `json:"canvas,omitempty"`
}

// WorkspaceResponse 工作区详情。
// @Description 工作区响应
type WorkspaceResponse struct {
	// 工作区 ID
	ID string `json:"id"`
	// 名称
	Name string `json:"name"`
	// 描述
	Description string `json:"description,omitempty"`
	// 图指纹
	Fingerprint string `json:"fingerprint"`
	// 节点数量
	NodeCount int `json:"node_count"`
	// 连线数量
	EdgeCount int `json:"edge_count"`
	// 画布快照（列表接口中省略）
	Canvas json.RawMessage `json:"canvas,omitempty"`
	// 创建时间
	CreatedAt time.Time `json:"created_at"`
	// 更新时间
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkspaceListResponse 工作区分页列表。
// @Description 工作区列表响应
type WorkspaceListResponse struct {
	// 当前页
	Workspaces []WorkspaceResponse `json:"workspaces"`
	// 总数
	Total int64 `json:"total"`
	// 页大小
	Limit int `json:"limit"`
	// 偏移量
	Offset int `json:"offset"`
}

// Package document 负责产线配置文件的解析与编码。
//
// 同一份结构有两种编码：紧凑的 JSON 与便于人工编辑的 YAML。解析得到的
// Tree 是未经类型约束的通用结构，供校验引擎逐字段检查；校验通过后再用
// Decode 转换为带类型的 Config。
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"plant-config/internal/apperr"
)

// Format 编码格式
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat 解析格式名称，yml 视为 yaml，空串默认为 json
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", apperr.New(apperr.CodeParse, "不支持的导出格式: %s", s)
}

// Ext 返回文件扩展名（不含点）
func (f Format) Ext() string {
	return string(f)
}

// ContentType 返回 HTTP 响应使用的 MIME 类型
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/x-yaml"
	}
	return "application/json"
}

// Tree 解析后的通用配置树
type Tree map[string]any

// Parse 按指定格式把原始字节解析为配置树，顶层必须是对象
func Parse(data []byte, format Format) (Tree, error) {
	var tree Tree
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, apperr.Wrap(apperr.CodeParse, err, "JSON 解析失败")
		}
	case FormatYAML:
		// 解码到普通 map，嵌套对象与 JSON 一样是 map[string]any
		var m map[string]any
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, apperr.Wrap(apperr.CodeParse, err, "YAML 解析失败")
		}
		tree = Tree(m)
	default:
		return nil, apperr.New(apperr.CodeParse, "不支持的格式: %s", format)
	}
	if tree == nil {
		tree = Tree{}
	}
	return tree, nil
}

// FormatForFile 根据文件扩展名判断格式
func FormatForFile(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", apperr.New(apperr.CodeParse, "不支持的文件格式: %s", filename)
}

// ParseFile 解析上传的配置文件，错误信息中带上文件名
func ParseFile(filename string, data []byte) (Tree, error) {
	format, err := FormatForFile(filename)
	if err != nil {
		return nil, err
	}
	tree, err := Parse(data, format)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeParse, err, "文件 %s 解析失败", filename)
	}
	return tree, nil
}

// Decode 将已校验的配置树转换为带类型的 Config
func Decode(tree Tree) (*Config, error) {
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeParse, err, "配置无法序列化")
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, apperr.Wrap(apperr.CodeParse, err, "配置字段类型错误")
	}
	return &cfg, nil
}

// Encode 按指定格式编码配置
func Encode(cfg *Config, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false) // 条件表达式中的 < > & 保持原样
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("编码 JSON 失败: %w", err)
		}
		return buf.Bytes(), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("编码 YAML 失败: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("编码 YAML 失败: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, apperr.New(apperr.CodeParse, "不支持的格式: %s", format)
}

// ExportFilename 返回导出文件名 production_line_{id}.{ext}
func ExportFilename(lineID string, format Format) string {
	return fmt.Sprintf("production_line_%s.%s", lineID, format.Ext())
}

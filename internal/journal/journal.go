// Package journal 以 JSON Lines 追加记录产线配置的变更，用于审计与重放
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"plant-config/internal/model"
)

// 记录类型
const (
	TypeImport = "IMPORT"
	TypeDelete = "DELETE"
)

// Entry 变更日志中的一条记录
type Entry struct {
	Type     string            `json:"type"`
	LineID   string            `json:"line_id"`
	LineName string            `json:"line_name,omitempty"`
	Stats    *model.Statistics `json:"stats,omitempty"` // 仅导入记录
	TraceID  string            `json:"trace_id,omitempty"`
	At       time.Time         `json:"at"`
}

// Journal 追加写入的变更日志文件
type Journal struct {
	file *os.File
	mu   sync.Mutex // 保证单条记录写入的原子性
}

// Open 创建或打开变更日志文件
func Open(path string) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开变更日志 %s 失败: %w", path, err)
	}
	return &Journal{file: file}, nil
}

// Append 写入一条记录并刷盘
func (j *Journal) Append(e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return err
	}
	return j.file.Sync()
}

// Entries 按写入顺序读取全部记录，损坏的行被跳过
func (j *Journal) Entries() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	// 读完后回到文件末尾，继续追加
	defer j.file.Seek(0, io.SeekEnd)

	var entries []Entry
	scanner := bufio.NewScanner(j.file)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// LiveLines 重放日志，返回导入后尚未删除的产线 ID，按首次导入顺序排列
func (j *Journal) LiveLines() ([]string, error) {
	entries, err := j.Entries()
	if err != nil {
		return nil, err
	}
	live := make(map[string]bool)
	var order []string
	for _, e := range entries {
		switch e.Type {
		case TypeImport:
			if !live[e.LineID] {
				order = append(order, e.LineID)
			}
			live[e.LineID] = true
		case TypeDelete:
			live[e.LineID] = false
		}
	}
	var out []string
	seen := make(map[string]bool)
	for _, id := range order {
		if live[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// Close 关闭日志文件
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
)

type readFileInput struct {
	Path string `json:"path" jsonschema:"description=absolute path of the file to read"`
}

type readFileOutput struct {
	Content string `json:"content"`
}

type writeFileInput struct {
	Path    string `json:"path" jsonschema:"description=absolute path of the file to write"`
	Content string `json:"content" jsonschema:"description=full new file contents"`
}

type writeFileOutput struct {
	OK bool `json:"ok"`
}

type listDirInput struct {
	Path string `json:"path" jsonschema:"description=directory to list"`
}

type listDirOutput struct {
	Entries []string `json:"entries"`
}

type mkdirInput struct {
	Path string `json:"path" jsonschema:"description=directory to create, parents included"`
}

type mkdirOutput struct {
	OK bool `json:"ok"`
}

// fileTools wraps the dev server filesystem as agent-callable tools.
func fileTools(fs FileAccess) ([]tool.BaseTool, error) {
	readTool, err := utils.InferTool("read_file", "reads the contents of a file in the game project",
		func(ctx context.Context, in *readFileInput) (*readFileOutput, error) {
			if in == nil || strings.TrimSpace(in.Path) == "" {
				return nil, fmt.Errorf("path is required")
			}
			content, err := fs.ReadFile(ctx, in.Path)
			if err != nil {
				return nil, err
			}
			return &readFileOutput{Content: content}, nil
		})
	if err != nil {
		return nil, err
	}

	writeTool, err := utils.InferTool("write_file", "creates or replaces a file in the game project",
		func(ctx context.Context, in *writeFileInput) (*writeFileOutput, error) {
			if in == nil || strings.TrimSpace(in.Path) == "" {
				return nil, fmt.Errorf("path is required")
			}
			if err := fs.WriteFile(ctx, in.Path, in.Content); err != nil {
				return nil, err
			}
			return &writeFileOutput{OK: true}, nil
		})
	if err != nil {
		return nil, err
	}

	listTool, err := utils.InferTool("list_directory", "lists the entries of a directory in the game project",
		func(ctx context.Context, in *listDirInput) (*listDirOutput, error) {
			if in == nil || strings.TrimSpace(in.Path) == "" {
				return nil, fmt.Errorf("path is required")
			}
			entries, err := fs.ListDir(ctx, in.Path)
			if err != nil {
				return nil, err
			}
			return &listDirOutput{Entries: entries}, nil
		})
	if err != nil {
		return nil, err
	}

	mkdirTool, err := utils.InferTool("make_directory", "creates a directory in the game project",
		func(ctx context.Context, in *mkdirInput) (*mkdirOutput, error) {
			if in == nil || strings.TrimSpace(in.Path) == "" {
				return nil, fmt.Errorf("path is required")
			}
			if err := fs.Mkdir(ctx, in.Path); err != nil {
				return nil, err
			}
			return &mkdirOutput{OK: true}, nil
		})
	if err != nil {
		return nil, err
	}

	return []tool.BaseTool{readTool, writeTool, listTool, mkdirTool}, nil
}

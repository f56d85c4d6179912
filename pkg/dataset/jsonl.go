package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// JSONL reads <dir>/<split>.jsonl with one item object per line
type JSONL struct {
	dir string
}

func NewJSONL(dir string) *JSONL {
	return &JSONL{dir: dir}
}

func (j *JSONL) Load(ctx context.Context, split Split, limit int) ([]*model.Item, error) {
	path := filepath.Join(j.dir, string(split)+".jsonl")
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open dataset file", goerr.V("path", path))
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var items []*model.Item
	for line := 1; scanner.Scan(); line++ {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var item model.Item
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, goerr.Wrap(err, "failed to parse dataset line",
				goerr.V("path", path), goerr.V("line", line))
		}
		items = accept(ctx, items, &item, path)
		if full(items, limit) {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to read dataset file", goerr.V("path", path))
	}

	return items, nil
}

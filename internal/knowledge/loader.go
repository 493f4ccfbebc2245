package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"

	logx "github.com/voicebot-core/server/pkg/logger"
)

// Load reads every .txt and .md file under dir, splits it into overlapping
// chunks of at most size runes and indexes them. A missing dir yields an
// empty store.
func Load(ctx context.Context, dir string, size, overlap int) (*Store, error) {
	s := &Store{}
	if dir == "" {
		return s, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logx.Warn().Str("dir", dir).Msg("knowledge directory not found; retrieval disabled")
		return s, nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}

	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      &parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("create file loader: %w", err)
	}
	splitter, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   size,
		OverlapSize: overlap,
		Separators:  []string{"\n\n", "\n", " "},
		LenFunc:     utf8.RuneCountInString,
	})
	if err != nil {
		return nil, fmt.Errorf("create splitter: %w", err)
	}

	paths, err := documentPaths(dir)
	if err != nil {
		return nil, fmt.Errorf("load knowledge: %w", err)
	}
	for _, path := range paths {
		docs, err := loader.Load(ctx, document.Source{URI: path})
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		chunks, err := splitter.Transform(ctx, docs)
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", path, err)
		}
		name := filepath.Base(path)
		for i, c := range chunks {
			c.ID = fmt.Sprintf("%s#%d", name, i)
			if c.MetaData == nil {
				c.MetaData = map[string]any{}
			}
			c.MetaData["source"] = path
			c.MetaData["filename"] = name
			s.add(c)
		}
	}
	logx.Info().Str("dir", dir).Int("files", len(paths)).Int("chunks", len(s.chunks)).Msg("knowledge loaded")
	return s, nil
}

// documentPaths lists the text and markdown files under dir in lexical order.
func documentPaths(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

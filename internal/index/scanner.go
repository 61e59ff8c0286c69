package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/sucicfilip/ruby-lsp-rails/internal/core/errors"
	"github.com/sucicfilip/ruby-lsp-rails/internal/ruby"
	"github.com/sucicfilip/ruby-lsp-rails/internal/shared/observability"
	"github.com/sucicfilip/ruby-lsp-rails/internal/shared/util"
)

// Scanner walks a workspace for Ruby files and feeds them through the
// extractor into the store.
type Scanner struct {
	store        *Store
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
}

func NewScanner(store *Store, excludeDirs, excludeFiles []string) (*Scanner, error) {
	compiledDirs := make([]glob.Glob, 0, len(excludeDirs))
	for _, pattern := range excludeDirs {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		compiledDirs = append(compiledDirs, g)
	}

	compiledFiles := make([]glob.Glob, 0, len(excludeFiles))
	for _, pattern := range excludeFiles {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		compiledFiles = append(compiledFiles, g)
	}

	return &Scanner{
		store:        store,
		excludeDirs:  compiledDirs,
		excludeFiles: compiledFiles,
	}, nil
}

// Scan indexes every Ruby file under root. Individual file failures
// are logged and skipped; the walk continues.
func (s *Scanner) Scan(ctx context.Context, root string) error {
	ctx, span := observability.Tracer.Start(ctx, "scanner.Scan")
	defer span.End()

	start := time.Now()
	indexed := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		candidate := filepath.ToSlash(path)
		if d.IsDir() {
			for _, g := range s.excludeDirs {
				if g.Match(candidate) {
					return fs.SkipDir
				}
			}
			return nil
		}

		if !strings.HasSuffix(path, ".rb") {
			return nil
		}
		for _, g := range s.excludeFiles {
			if g.Match(candidate) {
				return nil
			}
		}

		if err := s.IndexFile(path); err != nil {
			slog.Warn("failed to index file", "path", path, "error", err)
			return nil
		}
		indexed++
		return nil
	})
	if err != nil {
		return err
	}

	if count, err := s.store.FileCount(); err == nil {
		observability.IndexedFiles.Set(float64(count))
	}

	slog.Info("workspace indexed", "files", indexed, "duration", time.Since(start))
	return nil
}

// IndexFile re-indexes a single file.
func (s *Scanner) IndexFile(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return errors.AddContext(
			errors.Wrap(err, errors.CodeUnavailable, "failed to read source file"),
			errors.CtxPath, path)
	}

	uri := util.PathToURI(path)
	doc, err := ruby.Parse(uri, path, source)
	if err != nil {
		return errors.AddContext(err, errors.CtxPath, path)
	}
	defer doc.Close()

	return s.store.UpsertFile(path, uri, Extract(doc))
}

// Remove drops a deleted file from the index.
func (s *Scanner) Remove(path string) error {
	return s.store.DeleteFile(path)
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/berrythewa/clipdrive/internal/manifest"
)

// item is one top-level clipboard file or directory.
type item struct {
	src  string
	name string // slash-separated, relative to the volume root
	dst  string
	// inPlace marks sources that already are their destination.
	inPlace bool
}

// planItems names each source relative to the deepest directory shared by
// all of them. Sources that cannot be stored are returned as errors.
func planItems(root string, sources []string) ([]item, []error) {
	var (
		cleaned []string
		skipped []error
		seen    = make(map[string]bool)
	)
	for _, src := range sources {
		if !filepath.IsAbs(src) {
			skipped = append(skipped, fmt.Errorf("%q: not an absolute path", src))
			continue
		}
		src = filepath.Clean(src)
		if seen[src] {
			continue
		}
		seen[src] = true
		cleaned = append(cleaned, src)
	}
	if len(cleaned) == 0 {
		return nil, skipped
	}

	parent := commonParent(cleaned)
	root = filepath.Clean(root)

	items := make([]item, 0, len(cleaned))
	for _, src := range cleaned {
		rel, err := filepath.Rel(parent, src)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("%q: %w", src, err))
			continue
		}
		name := filepath.ToSlash(rel)
		switch {
		case !manifest.IsSafeRelative(name):
			skipped = append(skipped, fmt.Errorf("%q: cannot derive a relative name", src))
			continue
		case strings.Contains(name, manifest.Separator):
			skipped = append(skipped, fmt.Errorf("%q: name contains %q", src, manifest.Separator))
			continue
		case manifest.IsReserved(name):
			skipped = append(skipped, fmt.Errorf("%q: name is reserved for the snapshot manifest", src))
			continue
		case root == src || within(src, root):
			skipped = append(skipped, fmt.Errorf("%q: contains the volume itself", src))
			continue
		}
		dst := filepath.Join(root, filepath.FromSlash(name))
		items = append(items, item{src: src, name: name, dst: dst, inPlace: samePath(src, dst)})
	}
	return items, skipped
}

// commonParent returns the deepest directory containing every path.
func commonParent(paths []string) string {
	parent := filepath.Dir(paths[0])
	for _, p := range paths[1:] {
		dir := filepath.Dir(p)
		for !within(parent, dir) && parent != dir {
			next := filepath.Dir(parent)
			if next == parent {
				break
			}
			parent = next
		}
	}
	return parent
}

// within reports whether path lies strictly below dir.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func samePath(a, b string) bool {
	if a == b {
		return true
	}
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

// protectSources returns a predicate matching volume paths that must
// survive cleanup because a new source lives at or below them.
func protectSources(items []item) func(path string) bool {
	if len(items) == 0 {
		return nil
	}
	return func(path string) bool {
		for _, it := range items {
			if it.src == path || within(path, it.src) {
				return true
			}
		}
		return false
	}
}

// removeSnapshot deletes the files listed by prev, the auxiliary files
// and the manifest. Failures are logged per item and returned.
func (e *Engine) removeSnapshot(root string, prev *manifest.Manifest, keep func(string) bool) []error {
	var errs []error
	remove := func(path string, all bool) {
		var err error
		if all {
			err = os.RemoveAll(path)
		} else {
			err = os.Remove(path)
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			e.logger.Warn("Failed to remove previous snapshot file", zap.String("path", path), zap.Error(err))
			errs = append(errs, err)
		}
	}

	if prev != nil {
		for _, name := range prev.Names() {
			if !manifest.IsSafeRelative(name) || manifest.IsReserved(name) {
				e.logger.Warn("Ignoring unsafe name in previous manifest", zap.String("name", name))
				continue
			}
			path := filepath.Join(root, filepath.FromSlash(name))
			if keep != nil && keep(path) {
				e.logger.Debug("Keeping previous item still on the clipboard", zap.String("path", path))
				continue
			}
			remove(path, true)
			removeEmptyParents(root, path)
		}
	}

	remove(filepath.Join(root, manifest.HTMLFileName), false)
	remove(filepath.Join(root, manifest.RTFFileName), false)
	remove(manifest.Path(root)+".tmp", false)
	remove(manifest.Path(root), false)
	return errs
}

// removeEmptyParents removes the directories between path and root that
// are left empty.
func removeEmptyParents(root, path string) {
	root = filepath.Clean(root)
	for dir := filepath.Dir(path); within(root, dir); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}

// copyItems copies each item in order and returns the names that made it.
// Failed items are removed and reported; a cancelled context removes
// everything copied so far and returns the context error.
func (e *Engine) copyItems(ctx context.Context, root string, items []item, progress *progressRelay) ([]string, []error, error) {
	total := len(items)
	names := make([]string, 0, total)
	var (
		failed []error
		copied []item
	)

	for i, it := range items {
		progress.report(i, total)

		if it.inPlace {
			e.logger.Debug("Clipboard item already on the volume", zap.String("name", it.name))
			names = append(names, it.name)
			continue
		}

		err := copyTree(ctx, it.src, it.dst, func() { progress.report(i, total) })
		if err != nil {
			removeItem(root, it.dst)
			if ctx.Err() != nil {
				for _, c := range copied {
					removeItem(root, c.dst)
				}
				return nil, nil, ctx.Err()
			}
			e.logger.Warn("Failed to copy clipboard item", zap.String("source", it.src), zap.Error(err))
			failed = append(failed, fmt.Errorf("copy %s: %w", it.name, err))
			continue
		}
		copied = append(copied, it)
		names = append(names, it.name)
		e.logger.Debug("Copied clipboard item", zap.String("source", it.src), zap.String("name", it.name))
	}

	progress.report(total, total)
	return names, failed, nil
}

func removeItem(root, path string) {
	_ = os.RemoveAll(path)
	removeEmptyParents(root, path)
}

// copyTree copies a file or a directory tree. onFile runs before each file
// transfer; the context is checked at the same point.
func copyTree(ctx context.Context, src, dst string, onFile func()) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if info.IsDir() {
		return copyDir(ctx, src, dst, onFile)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}
	return copyFile(ctx, src, dst, info, onFile)
}

// copyDir copies the files of a directory before descending into its
// subdirectories. Symlinked directories are not followed.
func copyDir(ctx context.Context, src, dst string, onFile func()) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	var dirs []string
	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
			continue
		}
		info, err := os.Stat(from)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if err := copyFile(ctx, from, to, info, onFile); err != nil {
			return err
		}
	}

	for _, name := range dirs {
		if err := copyDir(ctx, filepath.Join(src, name), filepath.Join(dst, name), onFile); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(ctx context.Context, src, dst string, info os.FileInfo, onFile func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if onFile != nil {
		onFile()
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// Best effort; FAT volumes round timestamps.
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return nil
}

// resolveNames turns manifest names into absolute paths under root.
func resolveNames(root string, names []string, logger *zap.Logger) []string {
	paths := make([]string, 0, len(names))
	for _, name := range names {
		if !manifest.IsSafeRelative(name) {
			logger.Warn("Ignoring unsafe name in manifest", zap.String("name", name))
			continue
		}
		paths = append(paths, filepath.Join(root, filepath.FromSlash(name)))
	}
	return paths
}

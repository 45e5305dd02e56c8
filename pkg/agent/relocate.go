package agent

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Artifact extensions picked up by the post-run scan. Images become
// citations; tabular files become exports.
var (
	imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}
	tableExts = map[string]bool{".xlsx": true, ".csv": true, ".tsv": true}
)

// mtimeSlack absorbs clock skew between this process and the filesystem
// when deciding whether a file was written during the run.
const mtimeSlack = 5 * time.Second

// relocateOutputs mirrors files the agent wrote outside the mounted output
// root into it, then rewrites any references in the result payload to the
// new locations.
func (r *Runner) relocateOutputs(result map[string]any, runStart time.Time) []MovedFile {
	cutoff := runStart.Add(-mtimeSlack)
	moved := []MovedFile{}
	movedMap := map[string]string{}

	for _, scanDir := range r.cfg.ScanDirs {
		err := filepath.WalkDir(scanDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if !imageExts[ext] && !tableExts[ext] {
				return nil
			}
			info, err := d.Info()
			if err != nil || info.ModTime().Before(cutoff) {
				return nil
			}
			if isUnder(path, r.cfg.OutputRoot) {
				return nil
			}

			destDir := r.cfg.ExportsDir
			if imageExts[ext] {
				destDir = r.cfg.CitationsDir
			}
			dest, err := copyToOutput(path, destDir)
			if err != nil {
				slog.Warn("Failed to copy output file", "src", path, "error", err)
				return nil
			}
			moved = append(moved, MovedFile{From: path, To: dest})
			movedMap[path] = dest
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			slog.Warn("Output scan failed", "dir", scanDir, "error", err)
		}
	}

	if len(movedMap) > 0 {
		rewriteResultPaths(result, movedMap)
	}
	return moved
}

func isUnder(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// copyToOutput places src under destDir, keeping the base name. An
// existing destination of the same size is treated as already copied;
// otherwise a numeric suffix avoids the collision.
func copyToOutput(src, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}

	base := filepath.Base(src)
	dest := filepath.Join(destDir, base)
	if existing, err := os.Stat(dest); err == nil {
		srcInfo, serr := os.Stat(src)
		if serr == nil && existing.Size() == srcInfo.Size() {
			return dest, nil
		}
		ext := filepath.Ext(base)
		stem := strings.TrimSuffix(base, ext)
		for counter := 1; ; counter++ {
			candidate := filepath.Join(destDir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
			if _, err := os.Stat(candidate); os.IsNotExist(err) {
				dest = candidate
				break
			}
		}
	}

	if err := copyFile(src, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// rewriteResultPaths updates textual result fields that may reference the
// original artifact locations.
func rewriteResultPaths(result map[string]any, movedMap map[string]string) {
	for _, key := range []string{"response", "text", "content", "message"} {
		value, ok := result[key].(string)
		if !ok {
			continue
		}
		for src, dest := range movedMap {
			value = strings.ReplaceAll(value, src, dest)
		}
		result[key] = value
	}
}

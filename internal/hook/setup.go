package hook

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/suykerbuyk/vibe-journal/internal/config"
	"github.com/suykerbuyk/vibe-journal/internal/gitwindow"
)

const (
	markerBegin = "# >>> vibe-journal >>>"
	markerEnd   = "# <<< vibe-journal <<<"
	hookCommand = "vj hook post-commit"
	hookName    = "post-commit"
	backupExt   = ".vj.bak"
)

// hookBlock runs vj in the background so a slow model never holds up the
// commit. Output goes to a log beside the repository's git dir.
func hookBlock() string {
	return markerBegin + "\n" +
		"if command -v vj >/dev/null 2>&1; then\n" +
		"  " + hookCommand + " >>\"$(git rev-parse --git-dir)/vj-hook.log\" 2>&1 &\n" +
		"fi\n" +
		markerEnd + "\n"
}

// HookPath returns the post-commit hook file for the repository containing
// repoPath, honoring core.hooksPath.
func HookPath(repoPath string) (string, error) {
	repo, err := gitwindow.Open(repoPath)
	if err != nil {
		return "", err
	}
	layout, err := gitwindow.LayoutOf(repo)
	if err != nil {
		return "", err
	}

	dir := layout.HooksDir()
	if cfg, err := repo.Config(); err == nil {
		if p := cfg.Raw.Section("core").Option("hooksPath"); p != "" {
			p = config.ExpandHome(p)
			if !filepath.IsAbs(p) {
				p = filepath.Join(layout.WorkTree, p)
			}
			dir = p
		}
	}
	return filepath.Join(dir, hookName), nil
}

// Install adds the vj block to the repository's post-commit hook, creating
// the hook if needed. Idempotent: returns nil when already installed.
func Install(repoPath string) error {
	path, err := HookPath(repoPath)
	if err != nil {
		return err
	}

	content, err := readHook(path)
	if err != nil {
		return err
	}

	if strings.Contains(content, markerBegin) {
		fmt.Fprintf(os.Stderr, "vj hook already installed in %s\n", config.CompressHome(path))
		return nil
	}

	if content == "" {
		content = "#!/bin/sh\n"
	} else {
		if err := backup(path); err != nil {
			return err
		}
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
	}
	content += "\n" + hookBlock()

	if err := writeHook(path, content); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "vj hook installed in %s\n", config.CompressHome(path))
	return nil
}

// Uninstall removes the vj block from the post-commit hook, deleting the
// hook when nothing else remains. Idempotent: returns nil when not
// installed.
func Uninstall(repoPath string) error {
	path, err := HookPath(repoPath)
	if err != nil {
		return err
	}

	content, err := readHook(path)
	if err != nil {
		return err
	}

	if !strings.Contains(content, markerBegin) {
		fmt.Fprintf(os.Stderr, "vj hook not found in %s\n", config.CompressHome(path))
		return nil
	}

	if err := backup(path); err != nil {
		return err
	}

	rest := removeBlock(content)
	if isEmptyScript(rest) {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %w", config.CompressHome(path), err)
		}
	} else if err := writeHook(path, rest); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "vj hook removed from %s\n", config.CompressHome(path))
	return nil
}

// Installed reports whether the repository's post-commit hook runs vj.
func Installed(repoPath string) (bool, error) {
	path, err := HookPath(repoPath)
	if err != nil {
		return false, err
	}
	content, err := readHook(path)
	if err != nil {
		return false, err
	}
	return strings.Contains(content, markerBegin), nil
}

// readHook returns "" when the hook does not exist.
func readHook(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", config.CompressHome(path), err)
	}
	return string(data), nil
}

func writeHook(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create hooks directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", config.CompressHome(path), err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o755); err != nil {
		return fmt.Errorf("chmod %s: %w", config.CompressHome(path), err)
	}
	return nil
}

// backup copies the hook to path.vj.bak. No-op if the hook doesn't exist.
func backup(path string) error {
	src, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("backup: open %s: %w", config.CompressHome(path), err)
	}
	defer src.Close()

	dst, err := os.Create(path + backupExt)
	if err != nil {
		return fmt.Errorf("backup: create %s%s: %w", config.CompressHome(path), backupExt, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("backup: copy: %w", err)
	}
	return nil
}

// removeBlock drops every line from markerBegin through markerEnd, plus
// the blank line Install puts before the block.
func removeBlock(content string) string {
	lines := strings.SplitAfter(content, "\n")
	var kept []string
	inBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == markerBegin:
			inBlock = true
			if n := len(kept); n > 0 && strings.TrimSpace(kept[n-1]) == "" {
				kept = kept[:n-1]
			}
		case trimmed == markerEnd:
			inBlock = false
		case !inBlock:
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "")
}

func isEmptyScript(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#!") {
			continue
		}
		return false
	}
	return true
}

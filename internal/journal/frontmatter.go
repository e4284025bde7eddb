package journal

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FrontMatter is the YAML header of a daily journal file.
type FrontMatter struct {
	Date     string   `yaml:"date"`
	Type     string   `yaml:"type"`
	Projects []string `yaml:"projects,omitempty"`
	Commits  []string `yaml:"commits,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
}

// HasCommit reports whether an entry for hash was already written.
func (f *FrontMatter) HasCommit(hash string) bool {
	for _, c := range f.Commits {
		if c == hash {
			return true
		}
	}
	return false
}

func (f *FrontMatter) addProject(name string) {
	if name == "" {
		return
	}
	for _, p := range f.Projects {
		if p == name {
			return
		}
	}
	f.Projects = append(f.Projects, name)
}

// splitFile separates a daily file into its front matter and body. A file
// without a front matter block yields a zero FrontMatter and the whole
// content as body.
func splitFile(content []byte) (FrontMatter, string, error) {
	var fm FrontMatter
	reader := bufio.NewReader(bytes.NewReader(content))

	firstLine, err := reader.ReadString('\n')
	if strings.TrimSpace(firstLine) != "---" {
		return fm, string(content), nil
	}
	if err != nil {
		return fm, "", fmt.Errorf("unterminated front matter")
	}

	var header strings.Builder
	for {
		line, err := reader.ReadString('\n')
		if strings.TrimSpace(line) == "---" {
			break
		}
		if err != nil {
			return fm, "", fmt.Errorf("unterminated front matter")
		}
		header.WriteString(line)
	}

	if err := yaml.Unmarshal([]byte(header.String()), &fm); err != nil {
		return fm, "", fmt.Errorf("invalid front matter: %w", err)
	}

	var body bytes.Buffer
	if _, err := body.ReadFrom(reader); err != nil {
		return fm, "", err
	}
	return fm, body.String(), nil
}

func joinFile(fm FrontMatter, body string) ([]byte, error) {
	header, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("marshal front matter: %w", err)
	}

	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n")
	b.WriteString(body)
	return b.Bytes(), nil
}

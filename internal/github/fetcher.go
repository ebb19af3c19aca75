package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"

	"github.com/warmintro/warmintro/internal/document"
)

// FetchedFile is one document file pulled from the repository.
type FetchedFile struct {
	Path    string        // relative path within the base directory
	Title   string        // file name without extension
	Type    document.Type // inferred from the top-level subdirectory
	Content string
}

// typeDirs maps conventional subdirectory names to document types.
// Files outside these directories ingest as notes.
var typeDirs = map[string]document.Type{
	"resume":    document.TypeResume,
	"resumes":   document.TypeResume,
	"personal":  document.TypePersonalInfo,
	"companies": document.TypeCompanyResearch,
	"jobs":      document.TypeJobDescription,
	"notes":     document.TypeNote,
}

// Fetcher walks a repository directory for ingestable text files.
type Fetcher struct {
	client   *Client
	owner    string
	repo     string
	basePath string
}

// NewFetcher creates a fetcher rooted at owner/repo under basePath.
func NewFetcher(client *Client, owner, repo, basePath string) *Fetcher {
	return &Fetcher{client: client, owner: owner, repo: repo, basePath: basePath}
}

// ListFiles recursively lists markdown and plain-text files under the
// base path.
func (f *Fetcher) ListFiles(ctx context.Context) ([]string, error) {
	return f.listRecursive(ctx, f.basePath, "")
}

func (f *Fetcher) listRecursive(ctx context.Context, fullPath, relativePath string) ([]string, error) {
	var files []string

	_, dirContents, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		if item.Type == nil || item.Name == nil {
			continue
		}
		itemRelPath := path.Join(relativePath, *item.Name)

		switch *item.Type {
		case "file":
			if strings.HasSuffix(*item.Name, ".md") || strings.HasSuffix(*item.Name, ".txt") {
				files = append(files, itemRelPath)
			}
		case "dir":
			sub, err := f.listRecursive(ctx, path.Join(fullPath, *item.Name), itemRelPath)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		}
	}

	return files, nil
}

// FetchFile downloads one file and infers its document type from the
// first path segment.
func (f *Fetcher) FetchFile(ctx context.Context, relativePath string) (*FetchedFile, error) {
	fullPath := path.Join(f.basePath, relativePath)

	fileContent, _, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("get content of %s: %w", fullPath, err)
	}
	if fileContent == nil {
		return nil, fmt.Errorf("no file content returned for %s", fullPath)
	}

	content, err := base64.StdEncoding.DecodeString(*fileContent.Content)
	if err != nil {
		return nil, fmt.Errorf("decode content of %s: %w", fullPath, err)
	}

	return &FetchedFile{
		Path:    relativePath,
		Title:   titleFromPath(relativePath),
		Type:    TypeForPath(relativePath),
		Content: string(content),
	}, nil
}

// TypeForPath infers a document type from the first path segment of a
// repository-relative path.
func TypeForPath(relativePath string) document.Type {
	segments := strings.Split(path.Clean(relativePath), "/")
	if len(segments) > 1 {
		if docType, ok := typeDirs[strings.ToLower(segments[0])]; ok {
			return docType
		}
	}
	return document.TypeNote
}

func titleFromPath(relativePath string) string {
	name := path.Base(relativePath)
	return strings.TrimSuffix(strings.TrimSuffix(name, ".md"), ".txt")
}

package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Artifact naming
const (
	ArtifactNameSeparator = "_"
	FallbackSlug          = "video"
	MaxSlugLength         = 80
)

// File extensions to skip when looking for a finished artifact
var (
	SkippedExtensions = []string{".part", ".ytdl", ".temp"}
)

// Size units for FormatFileSize
var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// OwnerDir returns the working directory of one owner under root
func OwnerDir(root string, ownerID int64) string {
	return filepath.Join(root, strconv.FormatInt(ownerID, 10))
}

// Slugify turns a title into a lowercase file name safe slug
func Slugify(title string) string {
	s := slug.Make(title)
	if len(s) > MaxSlugLength {
		s = strings.TrimRight(s[:MaxSlugLength], "-")
	}
	if s == "" {
		return FallbackSlug
	}
	return s
}

// ArtifactBase returns "<slug>_<videoID>" without extension
func ArtifactBase(title, videoID string) string {
	return Slugify(title) + ArtifactNameSeparator + videoID
}

// ArtifactName returns "<slug>_<videoID>.<ext>"
func ArtifactName(title, videoID, ext string) string {
	return ArtifactBase(title, videoID) + "." + strings.TrimPrefix(ext, ".")
}

// RemoveMatchingFiles deletes every regular file in dir whose name contains needle.
// A missing dir is not an error.
func RemoveMatchingFiles(dir, needle string) (int, error) {
	if needle == "" {
		return 0, fmt.Errorf("empty match pattern")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), needle) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// FileExists reports whether path is an existing regular file
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// FindArtifact returns expectedPath if it exists, otherwise a finished file in the
// same directory that contains videoID and has the expected extension
func FindArtifact(expectedPath, videoID string) (string, error) {
	if expectedPath == "" {
		return "", fmt.Errorf("file path is empty")
	}
	if FileExists(expectedPath) {
		return expectedPath, nil
	}

	dir := filepath.Dir(expectedPath)
	ext := filepath.Ext(expectedPath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var candidates []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.Contains(name, videoID) || isTemporaryFile(name) {
			continue
		}
		if filepath.Ext(name) == ext {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("file not found: %s", expectedPath)
	}
	sort.Strings(candidates)
	return candidates[0], nil
}

// FormatFileSize renders a byte count as a human readable size
func FormatFileSize(size int64) string {
	if size < 1024 {
		return fmt.Sprintf("%d B", size)
	}
	value := float64(size)
	unit := 0
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", value, sizeUnits[unit])
}

func isTemporaryFile(name string) bool {
	for _, ext := range SkippedExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

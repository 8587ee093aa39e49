package analyzers

import (
	"path/filepath"
	"slices"
	"strings"
)

// FileCategory is a coarse file type derived from the extension.
type FileCategory int

const (
	CategoryOther FileCategory = iota
	CategoryMedia
	CategoryArchive
	CategoryCode
	CategoryDocument
	CategoryImage
	CategoryBinary
)

var categoryNames = [...]string{"other", "media", "archive", "code", "document", "image", "binary"}

func (c FileCategory) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "other"
}

var extCategories = map[string]FileCategory{}

func init() {
	for cat, exts := range map[FileCategory][]string{
		CategoryMedia:    {"mp4", "mkv", "avi", "mov", "webm", "mp3", "flac", "wav", "ogg", "m4a", "aac"},
		CategoryArchive:  {"zip", "tar", "gz", "tgz", "bz2", "xz", "zst", "7z", "rar", "iso", "deb", "rpm"},
		CategoryCode:     {"go", "rs", "c", "h", "cc", "cpp", "hpp", "py", "js", "ts", "java", "rb", "sh", "lua", "zig"},
		CategoryDocument: {"pdf", "doc", "docx", "odt", "txt", "md", "rst", "csv", "xls", "xlsx", "ppt", "pptx", "epub"},
		CategoryImage:    {"png", "jpg", "jpeg", "gif", "bmp", "webp", "svg", "tif", "tiff", "heic"},
		CategoryBinary:   {"so", "a", "o", "dll", "dylib", "exe", "bin", "img", "qcow2", "vmdk", "wasm"},
	} {
		for _, e := range exts {
			extCategories[e] = cat
		}
	}
}

// Classify returns the category for path based on its extension.
func Classify(path string) FileCategory {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return extCategories[ext]
}

// CategoryTotal is the aggregate size of one category.
type CategoryTotal struct {
	Category FileCategory
	Files    int
	Bytes    int64
}

// FileAnalyzer aggregates file sizes per category.
type FileAnalyzer struct {
	totals map[FileCategory]*CategoryTotal
}

// NewFileAnalyzer returns an empty analyzer.
func NewFileAnalyzer() *FileAnalyzer {
	return &FileAnalyzer{totals: make(map[FileCategory]*CategoryTotal)}
}

// Add counts one file.
func (a *FileAnalyzer) Add(f FileSize) {
	cat := Classify(f.Path)
	t, ok := a.totals[cat]
	if !ok {
		t = &CategoryTotal{Category: cat}
		a.totals[cat] = t
	}
	t.Files++
	t.Bytes += f.Size
}

// Totals returns per-category totals, largest first.
func (a *FileAnalyzer) Totals() []CategoryTotal {
	out := make([]CategoryTotal, 0, len(a.totals))
	for _, t := range a.totals {
		out = append(out, *t)
	}
	slices.SortFunc(out, func(x, y CategoryTotal) int {
		if x.Bytes != y.Bytes {
			if x.Bytes > y.Bytes {
				return -1
			}
			return 1
		}
		return int(x.Category) - int(y.Category)
	})
	return out
}

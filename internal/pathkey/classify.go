package pathkey

import (
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/schaermu/portalsync/internal/cms"
)

// DefaultContentType is used for extensions with no known content type.
const DefaultContentType = "application/octet-stream"

// RootSectionName is the system name of the section for the content root.
const RootSectionName = "root"

const layoutsDir = "/layouts/"

var extensionContentTypes = map[string]string{
	".css":  "text/css",
	".gif":  "image/gif",
	".htm":  "text/html",
	".html": "text/html",
	".ico":  "image/x-icon",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".js":   "text/javascript",
	".png":  "image/png",
	".txt":  "text/plain",
}

var templateContentTypes = map[string]bool{
	"text/css":        true,
	"text/html":       true,
	"text/javascript": true,
	"text/plain":      true,
}

// Content types whose extension is dropped from the page path.
var stripExtensionContentTypes = map[string]bool{
	"text/html": true,
}

var (
	layoutPattern  = regexp.MustCompile(`^(?P<dir>.*/)` + regexp.QuoteMeta(LayoutPrefix) + `(?P<name>[^/]+)$`)
	partialPattern = regexp.MustCompile(`^(?P<dir>.*/)` + regexp.QuoteMeta(PartialPrefix) + `(?P<name>[^/]+)$`)
	suffixPattern  = buildSuffixPattern()
)

func buildSuffixPattern() *regexp.Regexp {
	exts := make([]string, 0, len(extensionContentTypes))
	for ext := range extensionContentTypes {
		exts = append(exts, ext)
	}
	sort.Slice(exts, func(i, j int) bool {
		if len(exts[i]) != len(exts[j]) {
			return len(exts[i]) > len(exts[j])
		}
		return exts[i] < exts[j]
	})
	for i, ext := range exts {
		exts[i] = regexp.QuoteMeta(ext)
	}

	return regexp.MustCompile(`^(?P<filename>.*?)` +
		`(?P<ext>` + strings.Join(exts, "|") + `)?` +
		`(?:\.(?P<handler>markdown|textile))?` +
		`(?P<liquid>\.liquid)?$`)
}

// suffixInfo is what the filename suffix grammar yields for a path.
type suffixInfo struct {
	path          string
	contentType   string
	handler       string
	liquidEnabled *bool
}

func parseSuffix(p string) suffixInfo {
	m := suffixPattern.FindStringSubmatch(p)
	if m == nil {
		return suffixInfo{path: p}
	}

	ext := m[suffixPattern.SubexpIndex("ext")]
	contentType, ok := extensionContentTypes[ext]
	if !ok {
		contentType = DefaultContentType
	}

	info := suffixInfo{
		path:        m[suffixPattern.SubexpIndex("filename")],
		contentType: contentType,
		handler:     m[suffixPattern.SubexpIndex("handler")],
	}
	if m[suffixPattern.SubexpIndex("liquid")] != "" {
		info.liquidEnabled = cms.Bool(true)
	}
	if ext != "" && !stripExtensionContentTypes[contentType] {
		info.path += ext
	}
	return info
}

// Classify returns the draft object represented by the local entry at
// relPath. relPath is slash separated and rooted at "/". The draft carries
// no identity and no parent or owning section.
func Classify(relPath string, isDir bool, modTime time.Time) cms.Object {
	meta := cms.Meta{UpdatedAt: modTime.UTC()}

	switch {
	case isDir:
		return classifySection(relPath, meta)
	case layoutPattern.MatchString(relPath) || strings.HasPrefix(relPath, layoutsDir):
		return classifyLayout(relPath, meta)
	case partialPattern.MatchString(relPath):
		return classifyPartial(relPath, meta)
	}

	if info := parseSuffix(relPath); templateContentTypes[info.contentType] {
		return classifyPage(info, meta)
	}
	return cms.File{Meta: meta, Path: relPath}
}

// ContentTypeForPath returns the content type implied by the extension of p,
// or DefaultContentType.
func ContentTypeForPath(p string) string {
	if ct, ok := extensionContentTypes[strings.ToLower(path.Ext(p))]; ok {
		return ct
	}
	return DefaultContentType
}

func classifySection(relPath string, meta cms.Meta) cms.Section {
	name := path.Base(strings.TrimRight(relPath, "/"))
	if relPath == "/" {
		name = RootSectionName
	}
	return cms.Section{
		Meta:       meta,
		SystemName: name,
		Title:      name,
		Path:       strings.TrimRight(relPath, "/"),
		Public:     cms.Bool(true),
	}
}

func classifyLayout(relPath string, meta cms.Meta) cms.Layout {
	transformed := relPath
	if m := layoutPattern.FindStringSubmatch(relPath); m != nil {
		transformed = m[layoutPattern.SubexpIndex("dir")] + m[layoutPattern.SubexpIndex("name")]
	}

	info := parseSuffix(transformed)
	systemName := strings.TrimLeft(strings.TrimPrefix(info.path, layoutsDir), "/")

	title := strings.ReplaceAll(systemName, "_", " ")
	if !strings.HasSuffix(strings.ToLower(title), " layout") {
		title += " layout"
	}

	return cms.Layout{
		Meta:          meta,
		SystemName:    systemName,
		Title:         title,
		ContentType:   info.contentType,
		Handler:       info.handler,
		LiquidEnabled: info.liquidEnabled,
	}
}

func classifyPartial(relPath string, meta cms.Meta) cms.Partial {
	transformed := relPath
	if m := partialPattern.FindStringSubmatch(relPath); m != nil {
		transformed = m[partialPattern.SubexpIndex("dir")] + m[partialPattern.SubexpIndex("name")]
	}

	info := parseSuffix(transformed)
	return cms.Partial{
		Meta:          meta,
		SystemName:    strings.TrimLeft(info.path, "/"),
		ContentType:   info.contentType,
		Handler:       info.handler,
		LiquidEnabled: info.liquidEnabled,
	}
}

func classifyPage(info suffixInfo, meta cms.Meta) cms.Page {
	p := info.path
	if strings.HasSuffix(p, "/"+indexName) {
		p = strings.TrimSuffix(p, indexName)
	}

	title := path.Base(p)
	if p == "/" {
		title = "Home"
	}

	return cms.Page{
		Meta:          meta,
		Title:         title,
		Path:          p,
		ContentType:   info.contentType,
		Handler:       info.handler,
		LiquidEnabled: info.liquidEnabled,
	}
}

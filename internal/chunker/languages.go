package chunker

import (
	"path/filepath"
	"strings"
)

// Language identifies a grammar with its own preferred split boundaries.
type Language string

// Supported grammars.
const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	Go         Language = "go"
	Java       Language = "java"
	CPP        Language = "cpp"
	Rust       Language = "rust"
	Ruby       Language = "ruby"
	Markdown   Language = "markdown"
	HTML       Language = "html"
)

// languageByExt maps file extensions to grammars. TypeScript shares the JS boundaries.
var languageByExt = map[string]Language{
	".py":   Python,
	".js":   JavaScript,
	".ts":   JavaScript,
	".jsx":  JavaScript,
	".tsx":  JavaScript,
	".go":   Go,
	".java": Java,
	".cpp":  CPP,
	".c":    CPP,
	".rs":   Rust,
	".rb":   Ruby,
	".md":   Markdown,
	".html": HTML,
}

// textExts are indexed but split with the generic separators.
var textExts = map[string]bool{
	".txt":  true,
	".json": true,
	".yaml": true,
	".yml":  true,
	".sh":   true,
	".sql":  true,
	".css":  true,
	".scss": true,
}

var genericSeparators = []string{"\n\n", "\n", " ", ""}

var languageSeparators = map[Language][]string{
	Python: {"\nclass ", "\ndef ", "\n\tdef ", "\n\n", "\n", " ", ""},
	JavaScript: {
		"\nfunction ", "\nconst ", "\nlet ", "\nvar ", "\nclass ",
		"\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase ", "\ndefault ",
		"\n\n", "\n", " ", "",
	},
	Go: {
		"\nfunc ", "\nvar ", "\nconst ", "\ntype ",
		"\nif ", "\nfor ", "\nswitch ", "\ncase ",
		"\n\n", "\n", " ", "",
	},
	Java: {
		"\nclass ", "\npublic ", "\nprotected ", "\nprivate ", "\nstatic ",
		"\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase ",
		"\n\n", "\n", " ", "",
	},
	CPP: {
		"\nclass ", "\nvoid ", "\nint ", "\nfloat ", "\ndouble ",
		"\nif ", "\nfor ", "\nwhile ", "\nswitch ", "\ncase ",
		"\n\n", "\n", " ", "",
	},
	Rust: {
		"\nfn ", "\nconst ", "\nlet ",
		"\nif ", "\nwhile ", "\nfor ", "\nloop ", "\nmatch ",
		"\n\n", "\n", " ", "",
	},
	Ruby: {
		"\ndef ", "\nclass ",
		"\nif ", "\nunless ", "\nwhile ", "\nfor ", "\ndo ", "\nbegin ", "\nrescue ",
		"\n\n", "\n", " ", "",
	},
	Markdown: {
		"\n# ", "\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ",
		"```\n", "\n***\n", "\n---\n", "\n___\n",
		"\n\n", "\n", " ", "",
	},
	HTML: {
		"<body", "<div", "<p", "<br", "<li",
		"<h1", "<h2", "<h3", "<h4", "<h5", "<h6",
		"<span", "<table", "<tr", "<td", "<th", "<ul", "<ol",
		"<header", "<footer", "<nav",
		"<head", "<style", "<script", "<meta", "<title",
		"",
	},
}

// Ext returns the indexing extension of a file name: the lowercased suffix,
// or ".env.example" for example environment files.
func Ext(name string) string {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".env.example") {
		return ".env.example"
	}
	return filepath.Ext(lower)
}

// Supported reports whether a file with the given name should be indexed.
func Supported(name string) bool {
	ext := Ext(name)
	if ext == ".env.example" {
		return true
	}
	_, ok := languageByExt[ext]
	return ok || textExts[ext]
}

// LanguageFor returns the grammar for a file name, or "" when the generic splitter applies.
func LanguageFor(name string) Language {
	return languageByExt[Ext(name)]
}

// Separators returns the ordered split boundaries for a grammar.
func Separators(lang Language) []string {
	if seps, ok := languageSeparators[lang]; ok {
		return seps
	}
	return genericSeparators
}

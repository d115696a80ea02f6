package localfs

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// FindPaths walks path recursively and returns the files whose name or path
// matches any name keyword AND whose content matches any content keyword. An
// empty keyword list places no constraint on that axis. With regexKeywords,
// keywords are regular expressions instead of substrings.
//
// Files whose content is not valid UTF-8 are skipped by the content scan;
// other per-file errors are logged and the walk continues.
func (ws *Workspace) FindPaths(path string, nameKeywords, contentKeywords []string, regexKeywords bool) ([]string, error) {
	abs, err := ws.Resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := ws.fs.Stat(abs)
	if err != nil {
		return nil, &NotFoundError{Path: path}
	}
	if !info.IsDir() {
		return nil, &WrongKindError{Path: path, Want: "directory"}
	}

	var nameRes, contentRes []*regexp.Regexp
	if regexKeywords {
		if nameRes, err = compileKeywords(nameKeywords); err != nil {
			return nil, err
		}
		if contentRes, err = compileKeywords(contentKeywords); err != nil {
			return nil, err
		}
	}

	matches := []string{}
	walkErr := afero.Walk(ws.fs, abs, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			ws.log.Warn("skipping unreadable entry during find", zap.String("path", p), zap.Error(err))
			return nil
		}
		if fi.IsDir() {
			return nil
		}
		if !ws.matchPathName(p, nameKeywords, nameRes) {
			return nil
		}
		if !ws.matchFileContent(p, contentKeywords, contentRes) {
			return nil
		}
		matches = append(matches, p)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return matches, nil
}

func compileKeywords(keywords []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		re, err := regexp.Compile(kw)
		if err != nil {
			return nil, &RegexError{Pattern: kw, Err: err}
		}
		res = append(res, re)
	}
	return res, nil
}

// matchPathName tests the file's base name and every path component.
func (ws *Workspace) matchPathName(path string, keywords []string, res []*regexp.Regexp) bool {
	if len(keywords) == 0 {
		return true
	}
	components := strings.Split(filepath.ToSlash(path), "/")
	if res != nil {
		for _, re := range res {
			for _, comp := range components {
				if comp != "" && re.MatchString(comp) {
					return true
				}
			}
		}
		return false
	}
	for _, kw := range keywords {
		for _, comp := range components {
			if comp != "" && strings.Contains(comp, kw) {
				return true
			}
		}
	}
	return false
}

func (ws *Workspace) matchFileContent(path string, keywords []string, res []*regexp.Regexp) bool {
	if len(keywords) == 0 {
		return true
	}
	if err := ws.checkFileSize(path); err != nil {
		ws.log.Warn("skipping oversized file during content search", zap.String("path", path))
		return false
	}
	data, err := afero.ReadFile(ws.fs, path)
	if err != nil {
		ws.log.Warn("error reading file for content search", zap.String("path", path), zap.Error(err))
		return false
	}
	if !utf8.Valid(data) {
		// Binary content never matches a text search.
		return false
	}
	content := string(data)
	if res != nil {
		for _, re := range res {
			if re.MatchString(content) {
				return true
			}
		}
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}

package linkverify

import (
	"context"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	derrors "github.com/substra/docpipeline/internal/errors"
	"github.com/substra/docpipeline/internal/logfields"
)

// BrokenLink is an internal link whose target is missing.
type BrokenLink struct {
	Page string // page path relative to the site root
	URL  string
	Tag  string
	Line int
}

// Result summarizes a verification pass.
type Result struct {
	Pages  int
	Links  int
	Broken []BrokenLink
}

// Check walks every .html file under root and resolves its internal links
// against the file system.
func Check(ctx context.Context, root string) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = fs.ErrNotExist
		}
		return nil, derrors.PathMissing(root, err)
	}

	res := &Result{}
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".html") {
			return nil
		}
		links, err := ExtractLinks(p)
		if err != nil {
			return err
		}
		res.Pages++
		rel, _ := filepath.Rel(root, p)
		for _, l := range links {
			if !ShouldVerifyLink(l) {
				continue
			}
			res.Links++
			if !targetExists(root, p, l.URL) {
				res.Broken = append(res.Broken, BrokenLink{Page: filepath.ToSlash(rel), URL: l.URL, Tag: l.Tag, Line: l.Line})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(res.Broken, func(i, j int) bool { return res.Broken[i].Page < res.Broken[j].Page })
	slog.Debug("Link verification finished", logfields.Path(root), slog.Int("pages", res.Pages), slog.Int("links", res.Links), slog.Int("broken", len(res.Broken)))
	return res, nil
}

// targetExists resolves link relative to page (or to root for absolute
// paths) and checks that a file or a directory index exists there.
func targetExists(root, page, link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if u.Path == "" { // query or fragment only
		return true
	}
	var target string
	if strings.HasPrefix(u.Path, "/") {
		target = filepath.Join(root, filepath.FromSlash(path.Clean(u.Path)))
	} else {
		target = filepath.Join(filepath.Dir(page), filepath.FromSlash(u.Path))
	}
	info, err := os.Stat(target)
	if err != nil {
		return false
	}
	if info.IsDir() {
		_, err = os.Stat(filepath.Join(target, "index.html"))
		return err == nil
	}
	return true
}

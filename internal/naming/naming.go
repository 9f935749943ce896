// Package naming renders branch names, pull request text and commit
// prefixes from tracker items, and resolves branch names back to item ids.
//
// Templates use a small token language: {id}, {key}, {title}, {slug},
// {kind}, {type} and {url}. Unknown tokens are left in place verbatim.
package naming

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jzempel/continuity/internal/types"
)

// Default templates.
const (
	DefaultBranchTemplate  = "{kind}/{id}-{slug}"
	DefaultPRTitleTemplate = "{title}"
	DefaultPRBodyTemplate  = "{url}"
	DefaultCommitTemplate  = "[{key}] "
	DefaultMergeTemplate   = "[finish {key}]"
)

// MaxSlugLength bounds the slug portion of a branch name.
const MaxSlugLength = 40

// Tokens lists every token a template may reference.
var Tokens = []string{"id", "key", "title", "slug", "kind", "type", "url"}

var tokenPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	// Characters git refuses in ref names, plus whitespace.
	refInvalid   = regexp.MustCompile(`[\s~^:?*\[\\\x00-\x1f\x7f]+`)
	repeatSlash  = regexp.MustCompile(`/{2,}`)
	repeatDash   = regexp.MustCompile(`-{2,}`)
	repeatDots   = regexp.MustCompile(`\.{2,}`)
	slashDashRun = regexp.MustCompile(`-*/-*`)
)

// Slug lower-cases title, collapses runs of non-alphanumerics into a
// single dash, and truncates to MaxSlugLength without a trailing dash.
func Slug(title string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxSlugLength {
		s = strings.TrimRight(s[:MaxSlugLength], "-")
	}
	return s
}

// Values returns the token values for item. slug is the adapter rendered
// slug; an empty slug falls back to Slug(item.Title). An item without a
// type uses its kind for {type}.
func Values(item *types.TrackerItem, slug string) map[string]string {
	if slug == "" {
		slug = Slug(item.Title)
	}
	if slug == "" {
		slug = "untitled"
	}
	typ := Slug(item.Type)
	if typ == "" {
		typ = Slug(item.Kind)
	}
	return map[string]string{
		"id":    item.ID,
		"key":   item.Key,
		"title": item.Title,
		"slug":  slug,
		"kind":  Slug(item.Kind),
		"type":  typ,
		"url":   item.URL,
	}
}

// Render substitutes token values into tmpl. Tokens without a value are
// kept verbatim.
func Render(tmpl string, values map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := values[name]; ok {
			return v
		}
		return m
	})
}

// UnknownTokens returns tokens in tmpl that Render will not substitute.
func UnknownTokens(tmpl string) []string {
	known := make(map[string]bool, len(Tokens))
	for _, t := range Tokens {
		known[t] = true
	}
	var unknown []string
	for _, m := range tokenPattern.FindAllStringSubmatch(tmpl, -1) {
		if !known[m[1]] {
			unknown = append(unknown, m[0])
		}
	}
	return unknown
}

// refRules rewrite characters and runs git rejects inside a ref name.
// They leave the ends alone so literal template text can share them.
var refRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{refInvalid, "-"},
	{repeatDots, "."},
	{regexp.MustCompile(`@\{`), "-"},
	{slashDashRun, "/"},
	{repeatSlash, "/"},
	{repeatDash, "-"},
}

func applyRefRules(s string) string {
	for _, r := range refRules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}

// SanitizeRef turns s into a valid git branch name.
func SanitizeRef(s string) string {
	s = applyRefRules(s)
	s = strings.TrimSuffix(s, ".lock")
	return strings.Trim(s, "-/.")
}

// BranchName renders the branch template for item.
func BranchName(tmpl string, item *types.TrackerItem, slug string) string {
	if tmpl == "" {
		tmpl = DefaultBranchTemplate
	}
	return SanitizeRef(Render(tmpl, Values(item, slug)))
}

// Resolve extracts the item id encoded in branch by tmpl. idPattern is the
// backend's id regular expression.
func Resolve(tmpl, branch, idPattern string) (string, error) {
	if tmpl == "" {
		tmpl = DefaultBranchTemplate
	}
	re, err := compile(tmpl, idPattern)
	if err != nil {
		return "", err
	}
	m := re.FindStringSubmatch(branch)
	if m == nil {
		return "", types.NewOpError("resolve branch", branch, types.ErrUnresolvableBranch,
			"does not match template %q", tmpl)
	}
	return m[re.SubexpIndex("id")], nil
}

func compile(tmpl, idPattern string) (*regexp.Regexp, error) {
	if !strings.Contains(tmpl, "{id}") {
		return nil, types.NewOpError("resolve branch", "", types.ErrUnresolvableBranch,
			"template %q has no {id} token", tmpl)
	}
	if idPattern == "" {
		idPattern = `[0-9]+`
	}

	var b strings.Builder
	b.WriteString("^")
	seenID := false
	last := 0
	for _, loc := range tokenPattern.FindAllStringSubmatchIndex(tmpl, -1) {
		b.WriteString(regexp.QuoteMeta(SanitizeLiteral(tmpl[last:loc[0]], last == 0, false)))
		name := tmpl[loc[2]:loc[3]]
		switch name {
		case "id":
			if seenID {
				b.WriteString("(?:" + idPattern + ")")
			} else {
				b.WriteString("(?P<id>" + idPattern + ")")
				seenID = true
			}
		case "slug", "kind", "type":
			b.WriteString(`[a-z0-9-]*?`)
		case "key", "title", "url":
			b.WriteString(`.*?`)
		default:
			b.WriteString(regexp.QuoteMeta(tmpl[loc[0]:loc[1]]))
		}
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(SanitizeLiteral(tmpl[last:], last == 0, true)))
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compile branch template %q: %w", tmpl, err)
	}
	return re, nil
}

// SanitizeLiteral applies the ref rules to literal template text. first
// and last mark the template's leading and trailing text, which also get
// the trimming SanitizeRef applies to the ends of a branch name.
func SanitizeLiteral(s string, first, last bool) string {
	s = applyRefRules(s)
	if first {
		s = strings.TrimLeft(s, "-/.")
	}
	if last {
		s = strings.TrimSuffix(s, ".lock")
		s = strings.TrimRight(s, "-/.")
	}
	return s
}

// PRTitle renders the pull request title template.
func PRTitle(tmpl string, item *types.TrackerItem) string {
	if tmpl == "" {
		tmpl = DefaultPRTitleTemplate
	}
	return strings.TrimSpace(Render(tmpl, Values(item, "")))
}

// PRBody renders the pull request body template.
func PRBody(tmpl string, item *types.TrackerItem) string {
	if tmpl == "" {
		tmpl = DefaultPRBodyTemplate
	}
	return Render(tmpl, Values(item, ""))
}

// MergeMessage renders the merge commit message template.
func MergeMessage(tmpl string, item *types.TrackerItem) string {
	if tmpl == "" {
		tmpl = DefaultMergeTemplate
	}
	return Render(tmpl, Values(item, ""))
}

// CommitMessage prefixes message with the rendered commit template unless
// the rendered reference already appears in it.
func CommitMessage(tmpl string, item *types.TrackerItem, message string) string {
	if tmpl == "" {
		tmpl = DefaultCommitTemplate
	}
	prefix := Render(tmpl, Values(item, ""))
	if ref := strings.TrimSpace(prefix); ref != "" && strings.Contains(message, ref) {
		return message
	}
	return prefix + message
}

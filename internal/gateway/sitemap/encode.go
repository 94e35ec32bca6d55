package sitemap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/net/html"
	"golang.org/x/text/language"

	"github.com/edgecomet/revalidator/pkg/types"
)

const (
	SitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"
	NewsNamespace    = "http://www.google.com/schemas/sitemap-news/0.9"
)

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	News    string       `xml:"xmlns:news,attr,omitempty"`
	URLs    []urlElement `xml:"url"`
}

type urlElement struct {
	Loc        string       `xml:"loc"`
	LastMod    string       `xml:"lastmod,omitempty"`
	ChangeFreq string       `xml:"changefreq,omitempty"`
	Priority   string       `xml:"priority,omitempty"`
	News       *newsElement `xml:"news:news,omitempty"`
}

type newsElement struct {
	Publication     newsPublication `xml:"news:publication"`
	PublicationDate string          `xml:"news:publication_date"`
	Title           string          `xml:"news:title"`
}

type newsPublication struct {
	Name     string `xml:"news:name"`
	Language string `xml:"news:language"`
}

type sitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	Xmlns    string         `xml:"xmlns,attr"`
	Sitemaps []indexElement `xml:"sitemap"`
}

type indexElement struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// EncodeURLSet renders entries as a urlset document. Every value goes through
// the XML escaper. The news namespace is declared only when an entry carries news data.
func EncodeURLSet(entries []types.SitemapURLEntry) ([]byte, error) {
	set := urlSet{Xmlns: SitemapNamespace, URLs: make([]urlElement, 0, len(entries))}
	for _, e := range entries {
		el := urlElement{
			Loc:        e.Location,
			LastMod:    formatTime(e.LastModified),
			ChangeFreq: string(e.ChangeFrequency),
			Priority:   formatPriority(e.Priority),
		}
		if e.News != nil {
			set.News = NewsNamespace
			el.News = &newsElement{
				Publication: newsPublication{
					Name:     e.News.PublicationName,
					Language: e.News.Language,
				},
				PublicationDate: formatTime(e.News.PublicationDate),
				Title:           e.News.Title,
			}
		}
		set.URLs = append(set.URLs, el)
	}
	return marshal(set)
}

// EncodeIndex renders a sitemapindex pointing at locations
func EncodeIndex(locations []string, lastMod time.Time) ([]byte, error) {
	index := sitemapIndex{Xmlns: SitemapNamespace, Sitemaps: make([]indexElement, 0, len(locations))}
	for _, loc := range locations {
		index.Sitemaps = append(index.Sitemaps, indexElement{Loc: loc, LastMod: formatTime(lastMod)})
	}
	return marshal(index)
}

// EmptyURLSet is the document served when a build cannot complete
func EmptyURLSet() []byte {
	return []byte(xml.Header + `<urlset xmlns="` + SitemapNamespace + `"></urlset>`)
}

func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode sitemap: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode sitemap: %w", err)
	}
	return buf.Bytes(), nil
}

// Gzip compresses an encoded document for the .xml.gz routes
func Gzip(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("failed to compress sitemap: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress sitemap: %w", err)
	}
	return buf.Bytes(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatPriority(p float64) string {
	if p <= 0 {
		return ""
	}
	if p > 1 {
		p = 1
	}
	return strconv.FormatFloat(p, 'f', 1, 64)
}

// FlattenTitle reduces a CMS title that may contain markup and entities to plain text
func FlattenTitle(raw string) string {
	if raw == "" {
		return ""
	}

	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(raw))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.TextToken:
			sb.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			sb.WriteByte(' ')
		}
	}
}

// newsLanguage is the ISO 639 code Google News expects, e.g. "en" for en-US.
// Chinese keeps its script variant (zh-cn / zh-tw).
func newsLanguage(tag language.Tag) string {
	if tag == language.Und {
		return ""
	}
	base, _ := tag.Base()
	if base.String() == "zh" {
		if script, _ := tag.Script(); script.String() == "Hant" {
			return "zh-tw"
		}
		return "zh-cn"
	}
	return base.String()
}

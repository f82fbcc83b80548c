package providers

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newsrack/newsrack/pkg/config"
	"github.com/newsrack/newsrack/pkg/htmlutil"
	"github.com/pkg/errors"
)

// Newznab book/magazine category.
const newznabCategoryMagazines = "7010"

type newznab struct {
	name   string
	base   string
	apiKey string
	client *http.Client
}

func newNewznab(cfg config.ProviderConfig, timeout time.Duration) (SearchProvider, error) {
	if cfg.URL == "" {
		return nil, errors.Errorf("provider %q has no url", cfg.Name)
	}
	return &newznab{
		name:   cfg.Name,
		base:   strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (n *newznab) Name() string {
	return n.name
}

type newznabFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []newznabItem `xml:"item"`
	} `xml:"channel"`
}

type newznabItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Enclosure   struct {
		URL    string `xml:"url,attr"`
		Length string `xml:"length,attr"`
	} `xml:"enclosure"`
	Attrs []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value,attr"`
	} `xml:"attr"`
}

func (n *newznab) Search(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{}
	params.Set("t", "search")
	params.Set("q", query)
	params.Set("cat", newznabCategoryMagazines)
	if n.apiKey != "" {
		params.Set("apikey", n.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.base+"/api?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create search request")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "provider %q search failed", n.name)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("provider %q search failed: HTTP %d", n.name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read search response")
	}

	feed := &newznabFeed{}
	if err := xml.Unmarshal(body, feed); err != nil {
		return nil, errors.Wrapf(err, "provider %q returned malformed feed", n.name)
	}

	results := make([]Result, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		result := Result{
			Provider:    n.name,
			Title:       item.Title,
			Description: htmlutil.StripTags(item.Description),
			URL:         item.Link,
			Metadata:    map[string]any{},
		}
		if result.URL == "" {
			result.URL = item.Enclosure.URL
		}
		if result.URL == "" {
			continue
		}

		if size, err := strconv.ParseInt(item.Enclosure.Length, 10, 64); err == nil {
			result.SizeBytes = size
		}
		if item.PubDate != "" {
			if t, err := time.Parse(time.RFC1123Z, item.PubDate); err == nil {
				utc := t.UTC()
				result.PublicationDate = &utc
			} else if t, err := time.Parse(time.RFC1123, item.PubDate); err == nil {
				utc := t.UTC()
				result.PublicationDate = &utc
			}
		}

		for _, attr := range item.Attrs {
			switch attr.Name {
			case "language":
				result.Language = attr.Value
			case "size":
				if result.SizeBytes == 0 {
					if size, err := strconv.ParseInt(attr.Value, 10, 64); err == nil {
						result.SizeBytes = size
					}
				}
			default:
				result.Metadata[attr.Name] = attr.Value
			}
		}

		results = append(results, result)
	}

	return results, nil
}

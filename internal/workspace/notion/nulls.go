package notion

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
)

// nullNumbers sits under the notionapi client and remembers which number
// properties a query returned as null. notionapi decodes those as 0, which
// would turn an empty quantity cell into a zero-quantity transaction.
type nullNumbers struct {
	base http.RoundTripper

	mu    sync.Mutex
	pages map[string]map[string]bool
}

func newNullNumbers(base http.RoundTripper) *nullNumbers {
	if base == nil {
		base = http.DefaultTransport
	}
	return &nullNumbers{base: base, pages: make(map[string]map[string]bool)}
}

func (n *nullNumbers) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := n.base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusOK || !strings.HasSuffix(req.URL.Path, "/query") {
		return resp, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	n.record(body)
	return resp, nil
}

func (n *nullNumbers) record(body []byte) {
	var raw struct {
		Results []struct {
			ID         string                     `json:"id"`
			Properties map[string]json.RawMessage `json:"properties"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, page := range raw.Results {
		id := normalizeID(page.ID)
		delete(n.pages, id)
		for name, prop := range page.Properties {
			var p struct {
				Type   string          `json:"type"`
				Number json.RawMessage `json:"number"`
			}
			if json.Unmarshal(prop, &p) != nil || p.Type != "number" {
				continue
			}
			if len(p.Number) == 0 || string(p.Number) == "null" {
				if n.pages[id] == nil {
					n.pages[id] = make(map[string]bool)
				}
				n.pages[id][name] = true
			}
		}
	}
}

// isNull reports whether prop of page came back as an empty number cell.
func (n *nullNumbers) isNull(pageID, prop string) bool {
	if n == nil {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pages[normalizeID(pageID)][prop]
}

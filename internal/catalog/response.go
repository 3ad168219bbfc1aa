package catalog

import (
	"bytes"
	"errors"

	"github.com/goccy/go-json"

	"movierec/pkg/models"
)

var errNotObject = errors.New("response body is not a JSON object")

// Response is a successful catalog reply. Body holds the raw bytes as
// received, which is also what the cache stores.
type Response struct {
	Op   Op
	Body []byte
}

// Page is the envelope shared by every list operation. Results holds the
// records that decoded; the others are listed in Invalid.
type Page struct {
	Page         int
	Results      []models.CatalogRecord
	Invalid      []InvalidRecord
	TotalPages   int
	TotalResults int

	positions []int
}

// InvalidRecord is a list entry whose fields do not have the expected
// types. TMDBID is filled when the id itself was readable.
type InvalidRecord struct {
	Index  int
	TMDBID int64
	Err    error
}

// Position maps an index into Results back to the record's place in the
// upstream list.
func (p *Page) Position(i int) int {
	if i >= 0 && i < len(p.positions) {
		return p.positions[i]
	}
	return i
}

// newResponse accepts body only when it is a JSON object.
func newResponse(op Op, body []byte) (*Response, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, &Failure{Op: op, Reason: ReasonDecode, Err: errNotObject}
	}
	return &Response{Op: op, Body: body}, nil
}

func (r *Response) decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Failure{Op: r.Op, Reason: ReasonDecode, Err: err}
	}
	return nil
}

// Page decodes a paginated movie list. Only the envelope has to decode;
// each record is decoded on its own so one bad entry does not sink the
// page. Decoded records are otherwise unvalidated.
func (r *Response) Page() (*Page, error) {
	var env struct {
		Page         int               `json:"page"`
		Results      []json.RawMessage `json:"results"`
		TotalPages   int               `json:"total_pages"`
		TotalResults int               `json:"total_results"`
	}
	if err := r.decode(&env); err != nil {
		return nil, err
	}

	p := &Page{
		Page:         env.Page,
		Results:      make([]models.CatalogRecord, 0, len(env.Results)),
		TotalPages:   env.TotalPages,
		TotalResults: env.TotalResults,
		positions:    make([]int, 0, len(env.Results)),
	}
	for i, raw := range env.Results {
		var rec models.CatalogRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			var head struct {
				ID int64 `json:"id"`
			}
			_ = json.Unmarshal(raw, &head)
			p.Invalid = append(p.Invalid, InvalidRecord{Index: i, TMDBID: head.ID, Err: err})
			continue
		}
		p.Results = append(p.Results, rec)
		p.positions = append(p.positions, i)
	}
	return p, nil
}

// Genres decodes a genre-list reply.
func (r *Response) Genres() ([]models.GenreRecord, error) {
	var env struct {
		Genres []models.GenreRecord `json:"genres"`
	}
	if err := r.decode(&env); err != nil {
		return nil, err
	}
	return env.Genres, nil
}

// Record decodes a single movie, as returned by the detail operation.
func (r *Response) Record() (*models.CatalogRecord, error) {
	var rec models.CatalogRecord
	if err := r.decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

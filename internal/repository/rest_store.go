package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/promptmart/internal/domain"
)

const incrementRPC = "increment_prompt_counter"

// RESTStoreConfig holds connection settings for a PostgREST-compatible API.
type RESTStoreConfig struct {
	BaseURL string
	APIKey  string
	Table   string
	Timeout time.Duration
}

// RESTStore is a RecordStore backed by a PostgREST-style HTTP query API
// (as exposed by Supabase). Reads go to /rest/v1/<table>, increments to
// the increment_prompt_counter RPC.
type RESTStore struct {
	client *resty.Client
	table  string
}

// NewRESTStore creates a RESTStore.
func NewRESTStore(cfg RESTStoreConfig) *RESTStore {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetHeader("apikey", cfg.APIKey)
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	table := cfg.Table
	if table == "" {
		table = "prompts"
	}
	return &RESTStore{client: client, table: table}
}

type restError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Find issues one GET with the query encoded as PostgREST parameters.
// Filters containing a condition the API cannot express are dropped.
func (s *RESTStore) Find(ctx context.Context, q Query) ([]domain.RawRecord, error) {
	params := url.Values{}
	params.Set("select", "*")

	for _, f := range q.Filters {
		key, value, ok := restFilter(f)
		if !ok {
			continue
		}
		params.Add(key, value)
	}

	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts = append(parts, o.Field+"."+dir)
		}
		params.Set("order", strings.Join(parts, ","))
	}

	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var records []domain.RawRecord
	var apiErr restError
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		SetResult(&records).
		SetError(&apiErr).
		Get("/rest/v1/" + s.table)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.table, err)
	}
	if resp.StatusCode() != http.StatusOK {
		if apiErr.Message != "" {
			return nil, fmt.Errorf("query API error: %s", apiErr.Message)
		}
		return nil, fmt.Errorf("query API error: status %d", resp.StatusCode())
	}
	return records, nil
}

// restFilter renders f as one query parameter. A single condition becomes
// field=op.value; disjunctions become or=(...).
func restFilter(f Filter) (string, string, bool) {
	terms := make([]string, 0, len(f.AnyOf))
	for _, c := range f.AnyOf {
		term, ok := restTerm(c)
		if !ok {
			return "", "", false
		}
		terms = append(terms, term)
	}
	switch len(terms) {
	case 0:
		return "", "", false
	case 1:
		c := f.AnyOf[0]
		return c.Field, strings.TrimPrefix(terms[0], c.Field+"."), true
	default:
		return "or", "(" + strings.Join(terms, ",") + ")", true
	}
}

func restTerm(c Condition) (string, bool) {
	switch c.Op {
	case OpEq, OpGt:
		value, ok := restValue(c.Value)
		if !ok {
			return "", false
		}
		return c.Field + "." + string(c.Op) + "." + value, true
	case OpILike:
		// substring over array elements is not expressible
		if c.Field == FieldTags {
			return "", false
		}
		return c.Field + ".ilike.*" + restReserved.Replace(fmt.Sprint(c.Value)) + "*", true
	case OpOverlaps:
		values, ok := c.Value.([]string)
		if !ok {
			return "", false
		}
		quoted := make([]string, 0, len(values))
		for _, v := range values {
			quoted = append(quoted, `"`+strings.ReplaceAll(strings.ReplaceAll(v, `\`, `\\`), `"`, `\"`)+`"`)
		}
		return c.Field + ".ov.{" + strings.Join(quoted, ",") + "}", true
	default:
		return "", false
	}
}

// restReserved turns characters with meaning in filter syntax into the
// ilike wildcard, which only loosens a match.
var restReserved = strings.NewReplacer(",", "*", "(", "*", ")", "*", `"`, "*", `\`, "*")

// restValue renders a scalar. Strings containing filter syntax are refused
// so the caller drops the filter instead of sending a different value.
func restValue(v interface{}) (string, bool) {
	switch val := v.(type) {
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case string:
		if strings.ContainsAny(val, `,()"\`) {
			return "", false
		}
		return val, true
	default:
		return "", false
	}
}

// Increment calls the increment RPC, which performs the UPDATE server-side.
// The RPC returns the new value, or null when no row matched.
func (s *RESTStore) Increment(ctx context.Context, id string, counter Counter) error {
	if !counter.Valid() {
		return fmt.Errorf("unknown counter %q", counter)
	}

	var result *int64
	var apiErr restError
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"prompt_id": id, "counter": string(counter)}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/rest/v1/rpc/" + incrementRPC)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", incrementRPC, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.IsError() {
		if apiErr.Message != "" {
			return fmt.Errorf("%s error: %s", incrementRPC, apiErr.Message)
		}
		return fmt.Errorf("%s error: status %d", incrementRPC, resp.StatusCode())
	}
	if result == nil {
		return ErrNotFound
	}
	return nil
}

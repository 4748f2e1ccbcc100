// Package osv queries the OSV.dev advisory database for known
// vulnerabilities in package versions.
package osv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/depsentry/depsentry/pkg/cache"
	"github.com/depsentry/depsentry/pkg/graph"
	"github.com/depsentry/depsentry/pkg/integrations"
)

// maxBatchSize is OSV's documented querybatch limit.
const maxBatchSize = 1000

// Vulnerability is one OSV advisory, trimmed to the fields the
// vulnerability stage consumes.
type Vulnerability struct {
	ID       string   `json:"id"`
	Summary  string   `json:"summary"`
	Details  string   `json:"details,omitempty"`
	Aliases  []string `json:"aliases,omitempty"`
	Severity string   `json:"severity,omitempty"`
	Fixed    string   `json:"fixed,omitempty"`
}

// Query identifies one package-version to look up.
type Query struct {
	Name      string
	Version   string
	Ecosystem graph.Ecosystem
}

// Client provides access to the OSV.dev API.
// All methods are safe for concurrent use.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates an OSV client with the given cache backend.
func NewClient(backend cache.Cache, cacheTTL time.Duration) *Client {
	return &Client{
		Client:  integrations.NewClient(backend, "osv:", cacheTTL, nil),
		baseURL: "https://api.osv.dev/v1",
	}
}

// QueryBatch looks up advisories for a set of package-versions in one
// round trip per 1000 queries. The result slice is parallel to queries:
// result[i] holds the advisories for queries[i], empty when none are
// known. Packages with unknown versions are skipped client-side (OSV
// cannot answer version-less queries precisely) and get an empty result.
func (c *Client) QueryBatch(ctx context.Context, queries []Query, refresh bool) ([][]Vulnerability, error) {
	results := make([][]Vulnerability, len(queries))

	batch := make([]int, 0, maxBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.queryBatch(ctx, queries, batch, results, refresh); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for i, q := range queries {
		if q.Name == "" || q.Version == "" || q.Version == graph.UnknownVersion {
			continue
		}
		batch = append(batch, i)
		if len(batch) == maxBatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) queryBatch(ctx context.Context, queries []Query, idx []int, results [][]Vulnerability, refresh bool) error {
	req := batchRequest{Queries: make([]apiQuery, len(idx))}
	for n, i := range idx {
		req.Queries[n] = newAPIQuery(queries[i])
	}

	key := batchKey(queries, idx)
	var resp batchResponse
	err := c.Cached(ctx, key, refresh, &resp, func() error {
		return c.Post(ctx, c.baseURL+"/querybatch", req, &resp)
	})
	if err != nil {
		return fmt.Errorf("osv querybatch: %w", err)
	}
	if len(resp.Results) != len(idx) {
		return fmt.Errorf("osv querybatch: %d results for %d queries", len(resp.Results), len(idx))
	}

	for n, i := range idx {
		vulns := make([]Vulnerability, 0, len(resp.Results[n].Vulns))
		for _, v := range resp.Results[n].Vulns {
			full, err := c.FetchVulnerability(ctx, v.ID, refresh)
			if err != nil {
				// A vanished advisory detail should not sink the batch.
				if errors.Is(err, integrations.ErrNotFound) {
					vulns = append(vulns, Vulnerability{ID: v.ID})
					continue
				}
				return err
			}
			vulns = append(vulns, *full)
		}
		results[i] = vulns
	}
	return nil
}

// FetchVulnerability retrieves the full advisory for an OSV ID.
func (c *Client) FetchVulnerability(ctx context.Context, id string, refresh bool) (*Vulnerability, error) {
	var data apiVulnerability
	err := c.Cached(ctx, "vuln:"+id, refresh, &data, func() error {
		return c.Get(ctx, c.baseURL+"/vulns/"+id, &data)
	})
	if err != nil {
		return nil, err
	}
	v := data.trim()
	return &v, nil
}

func batchKey(queries []Query, idx []int) string {
	h := ""
	for _, i := range idx {
		q := queries[i]
		h += q.Name + "@" + q.Version + "/" + string(q.Ecosystem) + ";"
	}
	return "batch:" + cache.Hash([]byte(h))
}

// ecosystemName maps internal ecosystems to OSV's identifiers.
func ecosystemName(eco graph.Ecosystem) string {
	switch eco {
	case graph.EcosystemNPM:
		return "npm"
	case graph.EcosystemPyPI:
		return "PyPI"
	default:
		return ""
	}
}

type batchRequest struct {
	Queries []apiQuery `json:"queries"`
}

type apiQuery struct {
	Package apiPackage `json:"package"`
	Version string     `json:"version"`
}

type apiPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem,omitempty"`
}

func newAPIQuery(q Query) apiQuery {
	return apiQuery{
		Package: apiPackage{Name: q.Name, Ecosystem: ecosystemName(q.Ecosystem)},
		Version: q.Version,
	}
}

type batchResponse struct {
	Results []batchResult `json:"results"`
}

type batchResult struct {
	Vulns []vulnRef `json:"vulns"`
}

type vulnRef struct {
	ID string `json:"id"`
}

type apiVulnerability struct {
	ID       string        `json:"id"`
	Summary  string        `json:"summary"`
	Details  string        `json:"details"`
	Aliases  []string      `json:"aliases"`
	Severity []apiSeverity `json:"severity"`
	Affected []apiAffected `json:"affected"`
}

type apiSeverity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

type apiAffected struct {
	Ranges            []apiRange   `json:"ranges"`
	EcosystemSpecific apiSpecifics `json:"ecosystem_specific"`
	DatabaseSpecific  apiSpecifics `json:"database_specific"`
}

type apiSpecifics struct {
	Severity string `json:"severity"`
}

type apiRange struct {
	Events []apiEvent `json:"events"`
}

type apiEvent struct {
	Fixed string `json:"fixed"`
}

func (v apiVulnerability) trim() Vulnerability {
	out := Vulnerability{
		ID:      v.ID,
		Summary: v.Summary,
		Details: v.Details,
		Aliases: v.Aliases,
	}
	for _, a := range v.Affected {
		if out.Severity == "" {
			if s := a.DatabaseSpecific.Severity; s != "" {
				out.Severity = s
			} else if s := a.EcosystemSpecific.Severity; s != "" {
				out.Severity = s
			}
		}
		for _, r := range a.Ranges {
			for _, e := range r.Events {
				if e.Fixed != "" && out.Fixed == "" {
					out.Fixed = e.Fixed
				}
			}
		}
	}
	return out
}

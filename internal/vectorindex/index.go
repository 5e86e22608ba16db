// Package vectorindex stores page embeddings in qdrant and answers
// nearest-neighbour queries restricted to an explicit set of document ids.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	DeleteBatchSize = 1000
	UpsertBatchSize = 64
)

// ErrUnfilteredQuery is returned when a query carries no allowed documents.
var ErrUnfilteredQuery = errors.New("query without document filter refused")

// Point is one embedded page.
type Point struct {
	ID         string
	Vector     []float32
	DocumentID string
	Name       string
	Tag        string
	Page       int
	Content    string
}

type Match struct {
	ID         string  `json:"id"`
	Score      float32 `json:"score"`
	DocumentID string  `json:"document_id"`
	Name       string  `json:"name"`
	Tag        string  `json:"tag"`
	Page       int     `json:"page"`
	Content    string  `json:"content"`
}

// PointID derives a stable id for one page of one document. Titles repeat
// across owners, so the document id is part of the key.
func PointID(documentID string, page int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s\x00%d", documentID, page))).String()
}

type Index struct {
	client     *qdrant.Client
	collection string
}

func New(client *qdrant.Client, collection string) *Index {
	return &Index{client: client, collection: collection}
}

func (i *Index) Upsert(ctx context.Context, points []Point) error {
	for _, batch := range chunk(points, UpsertBatchSize) {
		structs := make([]*qdrant.PointStruct, 0, len(batch))
		for _, p := range batch {
			structs = append(structs, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(p.ID),
				Vectors: qdrant.NewVectors(p.Vector...),
				Payload: qdrant.NewValueMap(payloadOf(p)),
			})
		}
		if _, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: i.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         structs,
		}); err != nil {
			return fmt.Errorf("upsert points failed: %w", err)
		}
	}
	return nil
}

// Delete removes points in batches. A failed batch stops the run; earlier
// batches stay deleted.
func (i *Index) Delete(ctx context.Context, ids []string) error {
	for _, batch := range chunk(ids, DeleteBatchSize) {
		if _, err := i.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: i.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         qdrant.NewPointsSelector(pointIDs(batch)...),
		}); err != nil {
			return fmt.Errorf("delete points failed: %w", err)
		}
	}
	return nil
}

// Query returns the k nearest points belonging to documentIDs.
func (i *Index) Query(ctx context.Context, vector []float32, k int, documentIDs []string) ([]Match, error) {
	filter, err := DocumentFilter(documentIDs)
	if err != nil {
		return nil, err
	}
	res, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query points failed: %w", err)
	}

	matches := make([]Match, 0, len(res))
	for _, p := range res {
		m := matchOf(p.GetId(), p.GetPayload())
		m.Score = p.GetScore()
		matches = append(matches, m)
	}
	return matches, nil
}

// Fetch loads points by id, ordered by page.
func (i *Index) Fetch(ctx context.Context, ids []string) ([]Match, error) {
	var matches []Match
	for _, batch := range chunk(ids, DeleteBatchSize) {
		res, err := i.client.Get(ctx, &qdrant.GetPoints{
			CollectionName: i.collection,
			Ids:            pointIDs(batch),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("fetch points failed: %w", err)
		}
		for _, p := range res {
			matches = append(matches, matchOf(p.GetId(), p.GetPayload()))
		}
	}
	SortByPage(matches)
	return matches, nil
}

// DocumentFilter builds the payload filter for an allow-list of document ids.
func DocumentFilter(documentIDs []string) (*qdrant.Filter, error) {
	if len(documentIDs) == 0 {
		return nil, ErrUnfilteredQuery
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatchKeywords("document_id", documentIDs...)},
	}, nil
}

func SortByPage(matches []Match) {
	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Page < matches[b].Page
	})
}

func payloadOf(p Point) map[string]any {
	return map[string]any{
		"document_id": p.DocumentID,
		"name":        p.Name,
		"tag":         p.Tag,
		"page":        int64(p.Page),
		"content":     p.Content,
	}
}

func matchOf(id *qdrant.PointId, payload map[string]*qdrant.Value) Match {
	return Match{
		ID:         id.GetUuid(),
		DocumentID: payload["document_id"].GetStringValue(),
		Name:       payload["name"].GetStringValue(),
		Tag:        payload["tag"].GetStringValue(),
		Page:       int(payload["page"].GetIntegerValue()),
		Content:    payload["content"].GetStringValue(),
	}
}

func pointIDs(ids []string) []*qdrant.PointId {
	out := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		out = append(out, qdrant.NewIDUUID(id))
	}
	return out
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

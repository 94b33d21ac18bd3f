// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package mongostore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/olegiv/chapel-cms/internal/store"
)

type contentDoc struct {
	Page      string        `bson:"page"`
	Section   string        `bson:"section"`
	Value     bson.RawValue `bson:"content"`
	UpdatedBy string        `bson:"updatedBy,omitempty"`
	CreatedAt time.Time     `bson:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt"`
}

func (d contentDoc) toContent() (store.Content, error) {
	v, err := fromBSON(d.Value)
	if err != nil {
		return store.Content{}, fmt.Errorf("section %s/%s: %w", d.Page, d.Section, err)
	}
	return store.Content{
		Page:      d.Page,
		Section:   d.Section,
		Value:     v,
		UpdatedBy: d.UpdatedBy,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}, nil
}

// toBSON converts a decoded JSON value to a BSON value through relaxed
// extended JSON so json.Number values are stored as numbers.
func toBSON(v any) (bson.RawValue, error) {
	raw, err := store.EncodeValue(v)
	if err != nil {
		return bson.RawValue{}, err
	}
	var wrapper bson.Raw
	if err := bson.UnmarshalExtJSON([]byte(`{"v":`+raw+`}`), false, &wrapper); err != nil {
		return bson.RawValue{}, fmt.Errorf("encoding content: %w", err)
	}
	return wrapper.Lookup("v"), nil
}

func fromBSON(rv bson.RawValue) (any, error) {
	b, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: rv}}, false, false)
	if err != nil {
		return nil, fmt.Errorf("decoding content: %w", err)
	}
	decoded, err := store.DecodeValue(string(b))
	if err != nil {
		return nil, err
	}
	return decoded.(map[string]any)["v"], nil
}

// ListPages returns the distinct pages that have at least one section.
func (s *Store) ListPages(ctx context.Context) ([]string, error) {
	values, err := s.contents.Distinct(ctx, "page", bson.D{})
	if err != nil {
		return nil, err
	}
	pages := make([]string, 0, len(values))
	for _, v := range values {
		if p, ok := v.(string); ok {
			pages = append(pages, p)
		}
	}
	sort.Strings(pages)
	return pages, nil
}

// CountSectionsByPage returns the number of sections per page.
func (s *Store) CountSectionsByPage(ctx context.Context) ([]store.PageCount, error) {
	cur, err := s.contents.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$page"}, {Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	})
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Page string `bson:"_id"`
		N    int64  `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	counts := make([]store.PageCount, 0, len(rows))
	for _, r := range rows {
		counts = append(counts, store.PageCount{Page: r.Page, Sections: r.N})
	}
	return counts, nil
}

// ListContentByPage returns every section of a page in creation order.
func (s *Store) ListContentByPage(ctx context.Context, page string) ([]store.Content, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.contents.Find(ctx, bson.D{{Key: "page", Value: page}}, opts)
	if err != nil {
		return nil, err
	}
	var docs []contentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	items := make([]store.Content, 0, len(docs))
	for _, d := range docs {
		c, err := d.toContent()
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, nil
}

// GetContent returns one section or store.ErrNotFound.
func (s *Store) GetContent(ctx context.Context, page, section string) (store.Content, error) {
	var d contentDoc
	err := s.contents.FindOne(ctx, bson.D{{Key: "page", Value: page}, {Key: "section", Value: section}}).Decode(&d)
	if err != nil {
		return store.Content{}, notFound(err)
	}
	return d.toContent()
}

// UpsertContent creates or replaces the content of (page, section).
func (s *Store) UpsertContent(ctx context.Context, arg store.UpsertContentParams) (store.Content, error) {
	value, err := toBSON(arg.Value)
	if err != nil {
		return store.Content{}, err
	}
	filter := bson.D{{Key: "page", Value: arg.Page}, {Key: "section", Value: arg.Section}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "content", Value: value},
			{Key: "updatedBy", Value: arg.UpdatedBy},
			{Key: "updatedAt", Value: arg.Now},
		}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "createdAt", Value: arg.Now}}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var d contentDoc
	if err := s.contents.FindOneAndUpdate(ctx, filter, update, opts).Decode(&d); err != nil {
		return store.Content{}, err
	}
	return d.toContent()
}

// DeleteContent removes one section; store.ErrNotFound when nothing matched.
func (s *Store) DeleteContent(ctx context.Context, page, section string) error {
	res, err := s.contents.DeleteOne(ctx, bson.D{{Key: "page", Value: page}, {Key: "section", Value: section}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

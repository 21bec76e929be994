package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/iliyamo/campus-marketplace/internal/model"
)

const listingColumns = `l.id, l.title, l.description, l.price, l.category, l.item_condition,
	l.location, l.status, l.seller_id, l.created_at, l.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (model.Listing, error) {
	var l model.Listing
	var category, condition, status string
	err := row.Scan(
		&l.ID, &l.Title, &l.Description, &l.Price, &category, &condition,
		&l.Location, &status, &l.SellerID, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return l, err
	}
	l.Category = model.Category(category)
	l.Condition = model.Condition(condition)
	// Rows written by older clients may carry upper-case statuses.
	if st, ok := model.ParseListingStatus(status); ok {
		l.Status = st
	} else {
		l.Status = model.ListingStatus(status)
	}
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return l, nil
}

// CreateListing inserts the listing together with its images and tags in
// one transaction.
func (s *SQLStore) CreateListing(ctx context.Context, l *model.Listing) (string, error) {
	if err := prepareNewListing(l, s.now()); err != nil {
		return "", err
	}
	err := s.WithinTx(ctx, func(tx Tx) error {
		t := tx.(*sqlTx)
		const ins = `INSERT INTO listings
			(id, title, description, price, category, item_condition, location, status, seller_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := t.tx.ExecContext(ctx, t.q(ins),
			l.ID, l.Title, l.Description, l.Price, string(l.Category), string(l.Condition),
			l.Location, string(l.Status), l.SellerID, l.CreatedAt, l.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert listing: %w", err)
		}
		return t.writeMedia(ctx, l)
	})
	if err != nil {
		return "", err
	}
	return l.ID, nil
}

// GetListing loads one listing with its images and tags.
func (s *SQLStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	return s.getListing(ctx, s.db, id, false)
}

func (s *SQLStore) getListing(ctx context.Context, q querier, id string, forUpdate bool) (*model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings l WHERE l.id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	l, err := scanListing(q.QueryRowContext(ctx, s.q(query), id))
	if err != nil {
		return nil, notFoundOr(err)
	}
	out := []model.Listing{l}
	if err := s.attachMedia(ctx, q, out); err != nil {
		return nil, err
	}
	return &out[0], nil
}

// ListByOwner returns every listing of the seller, newest first.
func (s *SQLStore) ListByOwner(ctx context.Context, sellerID string) ([]model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings l
		WHERE l.seller_id = ?
		ORDER BY l.created_at DESC, l.id`
	return s.queryListings(ctx, query, sellerID)
}

// Recent returns the newest listings, optionally within one category.
func (s *SQLStore) Recent(ctx context.Context, limit int, category model.Category) ([]model.Listing, error) {
	limit = ClampRecent(limit)
	query := `SELECT ` + listingColumns + ` FROM listings l`
	args := []any{}
	if category != "" {
		query += ` WHERE l.category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY l.created_at DESC, l.id LIMIT ?`
	args = append(args, limit)
	return s.queryListings(ctx, query, args...)
}

// PopularTags counts tag usage across all listings.
func (s *SQLStore) PopularTags(ctx context.Context, limit int) ([]model.TagCount, error) {
	const q = `SELECT tag, COUNT(*) AS uses
		FROM listing_tags
		GROUP BY tag
		ORDER BY uses DESC, tag
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, s.q(q), ClampTags(limit))
	if err != nil {
		return nil, fmt.Errorf("popular tags: %w", err)
	}
	defer rows.Close()
	out := []model.TagCount{}
	for rows.Next() {
		var tc model.TagCount
		var n int64
		if err := rows.Scan(&tc.Tag, &n); err != nil {
			return nil, fmt.Errorf("scan tag count: %w", err)
		}
		tc.Count = int(n)
		out = append(out, tc)
	}
	return out, rows.Err()
}

// Search filters listings and returns one page plus the total match count.
func (s *SQLStore) Search(ctx context.Context, f SearchFilter) ([]model.Listing, int64, error) {
	f = f.Normalize()
	where := []string{}
	args := []any{}

	if f.Query != "" {
		like := "%" + escapeLike(strings.ToLower(f.Query)) + "%"
		where = append(where, "(LOWER(l.title) LIKE ? OR LOWER(l.description) LIKE ?)")
		args = append(args, like, like)
	}
	if f.Category != "" {
		where = append(where, "l.category = ?")
		args = append(args, string(f.Category))
	}
	if f.Condition != "" {
		where = append(where, "l.item_condition = ?")
		args = append(args, string(f.Condition))
	}
	if f.Status != "" {
		where = append(where, "l.status = ?")
		args = append(args, string(f.Status))
	}
	if f.MinPrice != nil {
		where = append(where, "l.price >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		where = append(where, "l.price <= ?")
		args = append(args, *f.MaxPrice)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	countSQL := `SELECT COUNT(*) FROM listings l WHERE ` + cond
	if err := s.db.QueryRowContext(ctx, s.q(countSQL), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}
	if total == 0 {
		return []model.Listing{}, 0, nil
	}

	order := "l.created_at DESC"
	switch f.Sort {
	case SortOldest:
		order = "l.created_at ASC"
	case SortPriceAsc:
		order = "l.price ASC, l.created_at DESC"
	case SortPriceDesc:
		order = "l.price DESC, l.created_at DESC"
	}
	dataSQL := `SELECT ` + listingColumns + ` FROM listings l
		WHERE ` + cond + `
		ORDER BY ` + order + `, l.id
		LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), f.PageSize, f.Offset())

	out, err := s.queryListings(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *SQLStore) queryListings(ctx context.Context, query string, args ...any) ([]model.Listing, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	out := []model.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachMedia(ctx, s.db, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachMedia loads images (in seller order) and tags for a batch of
// listings with two IN queries.
func (s *SQLStore) attachMedia(ctx context.Context, q querier, listings []model.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	idx := make(map[string]int, len(listings))
	args := make([]any, 0, len(listings))
	for i := range listings {
		idx[listings[i].ID] = i
		listings[i].Images = []string{}
		listings[i].Tags = []string{}
		args = append(args, listings[i].ID)
	}
	in := placeholders(len(args))

	imgSQL := `SELECT listing_id, url FROM listing_images WHERE listing_id IN (` + in + `) ORDER BY listing_id, position`
	if err := s.collect(ctx, q, imgSQL, args, func(id, v string) {
		l := &listings[idx[id]]
		l.Images = append(l.Images, v)
	}); err != nil {
		return fmt.Errorf("load images: %w", err)
	}

	tagSQL := `SELECT listing_id, tag FROM listing_tags WHERE listing_id IN (` + in + `) ORDER BY listing_id, tag`
	if err := s.collect(ctx, q, tagSQL, args, func(id, v string) {
		l := &listings[idx[id]]
		l.Tags = append(l.Tags, v)
	}); err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	return nil
}

func (s *SQLStore) collect(ctx context.Context, q querier, query string, args []any, fn func(id, v string)) error {
	rows, err := q.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id, v string
		if err := rows.Scan(&id, &v); err != nil {
			return err
		}
		fn(id, v)
	}
	return rows.Err()
}

// LockListing selects the listing row FOR UPDATE.
func (t *sqlTx) LockListing(ctx context.Context, id string) (*model.Listing, error) {
	return t.store.getListing(ctx, t.tx, id, true)
}

func (t *sqlTx) SetListingStatus(ctx context.Context, id string, status model.ListingStatus) error {
	res, err := t.tx.ExecContext(ctx, t.q(`UPDATE listings SET status = ?, updated_at = ? WHERE id = ?`),
		string(status), t.store.now(), id)
	if err != nil {
		return fmt.Errorf("set listing status: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqlTx) UpdateListing(ctx context.Context, l *model.Listing) error {
	if err := prepareUpdatedListing(l, t.store.now()); err != nil {
		return err
	}
	const upd = `UPDATE listings
		SET title = ?, description = ?, price = ?, category = ?, item_condition = ?, location = ?, updated_at = ?
		WHERE id = ?`
	res, err := t.tx.ExecContext(ctx, t.q(upd),
		l.Title, l.Description, l.Price, string(l.Category), string(l.Condition), l.Location, l.UpdatedAt, l.ID)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if _, err := t.tx.ExecContext(ctx, t.q(`DELETE FROM listing_images WHERE listing_id = ?`), l.ID); err != nil {
		return fmt.Errorf("clear images: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, t.q(`DELETE FROM listing_tags WHERE listing_id = ?`), l.ID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	return t.writeMedia(ctx, l)
}

// DeleteListing removes the listing; images, tags and any remaining
// requests go with it through ON DELETE CASCADE.
func (t *sqlTx) DeleteListing(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, t.q(`DELETE FROM listings WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// writeMedia bulk-inserts images and tags with one multi-row INSERT each.
func (t *sqlTx) writeMedia(ctx context.Context, l *model.Listing) error {
	if len(l.Images) > 0 {
		query := `INSERT INTO listing_images (listing_id, position, url) VALUES `
		args := make([]any, 0, len(l.Images)*3)
		for i, url := range l.Images {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?)"
			args = append(args, l.ID, i, url)
		}
		if _, err := t.tx.ExecContext(ctx, t.q(query), args...); err != nil {
			return fmt.Errorf("insert images: %w", err)
		}
	}
	if len(l.Tags) > 0 {
		query := `INSERT INTO listing_tags (listing_id, tag) VALUES `
		args := make([]any, 0, len(l.Tags)*2)
		for i, tag := range l.Tags {
			if i > 0 {
				query += ","
			}
			query += "(?, ?)"
			args = append(args, l.ID, tag)
		}
		if _, err := t.tx.ExecContext(ctx, t.q(query), args...); err != nil {
			return fmt.Errorf("insert tags: %w", err)
		}
	}
	return nil
}

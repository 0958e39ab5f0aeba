// Package gallery stores the public photo gallery. Each entry points at a
// file previously uploaded through the upload endpoints.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Image is one gallery entry.
type Image struct {
	ID        string    `json:"id"`
	ImageURL  string    `json:"imageUrl"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Date      string    `json:"date,omitempty"`
	Order     int       `json:"order"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewImage holds the fields accepted when creating an entry.
type NewImage struct {
	ImageURL string `json:"imageUrl" example:"https://samiti.org/uploads/1718000000000-1b4e28ba-2fa1-11d2-883f-0016d3cca427.jpg"`
	Title    string `json:"title"    example:"Annual function"`
	Category string `json:"category" example:"events"`
	Date     string `json:"date"     example:"2024-03-25"`
	Order    int    `json:"order"    example:"1"`
	IsActive *bool  `json:"isActive" example:"true"`
}

// Patch holds optional field updates; nil fields are left unchanged.
type Patch struct {
	ImageURL *string `json:"imageUrl"`
	Title    *string `json:"title"`
	Category *string `json:"category"`
	Date     *string `json:"date"`
	Order    *int    `json:"order"`
	IsActive *bool   `json:"isActive"`
}

// ErrNotFound is returned when no entry has the requested id.
var ErrNotFound = errors.New("gallery image not found")

const imageColumns = `id, image_url, title, category, taken_on, sort_order, is_active, created_at, updated_at`

// Repository handles gallery database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// List returns entries ordered for display. activeOnly hides disabled ones.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]Image, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+imageColumns+` FROM gallery_images
		 WHERE is_active OR NOT $1
		 ORDER BY sort_order ASC, created_at DESC`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list gallery images: %w", err)
	}
	defer rows.Close()

	images := []Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gallery image: %w", err)
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list gallery images: %w", err)
	}
	return images, nil
}

// Create inserts a new entry.
func (r *Repository) Create(ctx context.Context, ni NewImage) (*Image, error) {
	active := true
	if ni.IsActive != nil {
		active = *ni.IsActive
	}
	img, err := scanImage(r.db.QueryRow(ctx,
		`INSERT INTO gallery_images (image_url, title, category, taken_on, sort_order, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+imageColumns,
		ni.ImageURL, ni.Title, ni.Category, ni.Date, ni.Order, active,
	))
	if err != nil {
		return nil, fmt.Errorf("create gallery image: %w", err)
	}
	return img, nil
}

// Update applies p to the entry with id and returns the result.
func (r *Repository) Update(ctx context.Context, id string, p Patch) (*Image, error) {
	img, err := scanImage(r.db.QueryRow(ctx,
		`UPDATE gallery_images SET
		   image_url  = COALESCE($2, image_url),
		   title      = COALESCE($3, title),
		   category   = COALESCE($4, category),
		   taken_on   = COALESCE($5, taken_on),
		   sort_order = COALESCE($6, sort_order),
		   is_active  = COALESCE($7, is_active),
		   updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+imageColumns,
		id, p.ImageURL, p.Title, p.Category, p.Date, p.Order, p.IsActive,
	))
	if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update gallery image: %w", err)
	}
	return img, nil
}

// Delete removes the entry with id. The uploaded file itself is kept.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM gallery_images WHERE id = $1`, id)
	if isInvalidText(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete gallery image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanImage(row pgx.Row) (*Image, error) {
	img := &Image{}
	err := row.Scan(&img.ID, &img.ImageURL, &img.Title, &img.Category, &img.Date,
		&img.Order, &img.IsActive, &img.CreatedAt, &img.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// isInvalidText reports a malformed UUID literal (code 22P02).
func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/framez/backend/internal/db"
	"github.com/framez/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user together with its profile row in one transaction.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin user transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
        INSERT INTO users (id, email, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
    `, user.ID, user.Email, user.Password, user.CreatedAt, user.UpdatedAt); err != nil {
		if mapped := translatePgError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert user: %w", err)
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO profiles (id, full_name, avatar_url, email, created_at)
        VALUES ($1, $2, '', $3, $4)
    `, user.ID, user.FullName, user.Email, user.CreatedAt); err != nil {
		if mapped := translatePgError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit user transaction: %w", err)
	}

	return nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, "u.email = $1", email)
}

// FindByID fetches a user by identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "u.id = $1", id)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, predicate string, arg any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT u.id, u.email, u.password_hash, COALESCE(p.full_name, ''), u.created_at, u.updated_at
        FROM users u
        LEFT JOIN profiles p ON p.id = u.id
        WHERE `+predicate, arg)

	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.FullName, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}

	return user, nil
}

// PostgresProfileRepository provides PostgreSQL-backed reads of profiles.
type PostgresProfileRepository struct {
	pool db.Pool
}

// NewPostgresProfileRepository constructs a profile repository backed by PostgreSQL.
func NewPostgresProfileRepository(pool db.Pool) *PostgresProfileRepository {
	return &PostgresProfileRepository{pool: pool}
}

// FindByID fetches the profile for a user.
func (r *PostgresProfileRepository) FindByID(ctx context.Context, id string) (models.Profile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Profile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, full_name, avatar_url, email, created_at
        FROM profiles
        WHERE id = $1
    `, id)

	var profile models.Profile
	if err := row.Scan(&profile.ID, &profile.FullName, &profile.AvatarURL, &profile.Email, &profile.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, ErrNotFound
		}
		return models.Profile{}, fmt.Errorf("select profile: %w", err)
	}

	return profile, nil
}

// PostgresPostRepository provides PostgreSQL-backed persistence for posts.
type PostgresPostRepository struct {
	pool db.Pool
}

// NewPostgresPostRepository constructs a post repository backed by PostgreSQL.
func NewPostgresPostRepository(pool db.Pool) *PostgresPostRepository {
	return &PostgresPostRepository{pool: pool}
}

// Create stores a new post.
func (r *PostgresPostRepository) Create(ctx context.Context, post models.Post) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO posts (id, user_id, content, image_url, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, post.ID, post.UserID, post.Content, post.ImageURL, post.CreatedAt)
	if err != nil {
		if mapped := translatePgError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert post: %w", err)
	}

	return nil
}

const feedColumns = `p.id, p.user_id, p.content, p.image_url, p.created_at, pr.full_name, pr.avatar_url`

// FindByID fetches one post joined with its author.
func (r *PostgresPostRepository) FindByID(ctx context.Context, id string) (models.FeedItem, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.FeedItem{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+feedColumns+`
        FROM posts p
        LEFT JOIN profiles pr ON pr.id = p.user_id
        WHERE p.id = $1
    `, id)
	if err != nil {
		return models.FeedItem{}, fmt.Errorf("query post: %w", err)
	}

	items, err := scanFeedItems(rows)
	if err != nil {
		return models.FeedItem{}, err
	}
	if len(items) == 0 {
		return models.FeedItem{}, ErrNotFound
	}
	return items[0], nil
}

// ListFeed returns posts from every author, newest first, joined with author profiles.
func (r *PostgresPostRepository) ListFeed(ctx context.Context, query FeedQuery) ([]models.FeedItem, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	limit := query.EffectiveLimit()

	var rows pgx.Rows
	switch {
	case query.Before != nil && query.BeforeID != "":
		rows, err = conn.Query(ctx, `
            SELECT `+feedColumns+`
            FROM posts p
            LEFT JOIN profiles pr ON pr.id = p.user_id
            WHERE (p.created_at, p.id) < ($1, $2)
            ORDER BY p.created_at DESC, p.id DESC
            LIMIT $3
        `, query.Before.UTC(), query.BeforeID, limit)
	case query.Before != nil:
		rows, err = conn.Query(ctx, `
            SELECT `+feedColumns+`
            FROM posts p
            LEFT JOIN profiles pr ON pr.id = p.user_id
            WHERE p.created_at < $1
            ORDER BY p.created_at DESC, p.id DESC
            LIMIT $2
        `, query.Before.UTC(), limit)
	default:
		rows, err = conn.Query(ctx, `
            SELECT `+feedColumns+`
            FROM posts p
            LEFT JOIN profiles pr ON pr.id = p.user_id
            ORDER BY p.created_at DESC, p.id DESC
            LIMIT $1
        `, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query feed: %w", err)
	}

	return scanFeedItems(rows)
}

// ListByUser returns the posts authored by userID, newest first.
func (r *PostgresPostRepository) ListByUser(ctx context.Context, userID string) ([]models.Post, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, user_id, content, image_url, created_at
        FROM posts
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query user posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var post models.Post
		if err := rows.Scan(&post.ID, &post.UserID, &post.Content, &post.ImageURL, &post.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		post.CreatedAt = post.CreatedAt.UTC()
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user posts: %w", err)
	}

	return posts, nil
}

// Delete removes a post owned by ownerID and returns the deleted row. Posts
// owned by someone else are reported as ErrNotFound.
func (r *PostgresPostRepository) Delete(ctx context.Context, id, ownerID string) (models.Post, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Post{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        DELETE FROM posts
        WHERE id = $1 AND user_id = $2
        RETURNING id, user_id, content, image_url, created_at
    `, id, ownerID)

	var post models.Post
	if err := row.Scan(&post.ID, &post.UserID, &post.Content, &post.ImageURL, &post.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, fmt.Errorf("delete post: %w", err)
	}
	post.CreatedAt = post.CreatedAt.UTC()

	return post, nil
}

func scanFeedItems(rows pgx.Rows) ([]models.FeedItem, error) {
	defer rows.Close()

	var items []models.FeedItem
	for rows.Next() {
		var (
			item      models.FeedItem
			fullName  *string
			avatarURL *string
		)
		if err := rows.Scan(&item.ID, &item.UserID, &item.Content, &item.ImageURL, &item.CreatedAt, &fullName, &avatarURL); err != nil {
			return nil, fmt.Errorf("scan feed item: %w", err)
		}
		item.CreatedAt = item.CreatedAt.UTC()
		if fullName != nil || avatarURL != nil {
			item.Author = &models.Author{
				FullName:  models.StringValue(fullName),
				AvatarURL: models.StringValue(avatarURL),
			}
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed: %w", err)
	}

	return items, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ ProfileRepository = (*PostgresProfileRepository)(nil)
var _ PostRepository = (*PostgresPostRepository)(nil)

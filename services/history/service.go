package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ptbridge/internal/database"
	"ptbridge/models"
)

var ErrDatabaseRequired = errors.New("database not provided")

// Service persists download history in sqlite.
type Service struct {
	db *sql.DB
}

func NewService(db *database.DB) (*Service, error) {
	if db == nil {
		return nil, ErrDatabaseRequired
	}
	return &Service{db: db.Connection()}, nil
}

// Record stores one dispatched download. Missing ids and timestamps are
// filled in here.
func (s *Service) Record(ctx context.Context, item models.DownloadHistoryItem) error {
	if strings.TrimSpace(item.URL) == "" {
		return errors.New("url is required")
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO download_history (id, url, title, site_host, client_id, save_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.URL, item.Title, item.SiteHost, item.ClientID, item.SavePath, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// List returns recent entries, newest first. A non-positive limit returns
// everything.
func (s *Service) List(ctx context.Context, limit int) ([]models.DownloadHistoryItem, error) {
	query := `SELECT id, url, title, site_host, client_id, save_path, created_at
	          FROM download_history ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var items []models.DownloadHistoryItem
	for rows.Next() {
		var item models.DownloadHistoryItem
		if err := rows.Scan(&item.ID, &item.URL, &item.Title, &item.SiteHost, &item.ClientID, &item.SavePath, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Remove deletes the given entries by id.
func (s *Service) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM download_history WHERE id IN (%s)", placeholders), args...)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

// Clear removes all history entries.
func (s *Service) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM download_history"); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

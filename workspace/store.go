package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/fmriflow/internal/database"
	"github.com/BaSui01/fmriflow/workflow"
)

// Store errors.
var (
	ErrNotFound    = errors.New("workspace not found")
	ErrInvalidName = errors.New("workspace name is required")
)

// MaxNameLength bounds workspace names.
const MaxNameLength = 255

// updateRetries bounds retries of an update that hit a lock conflict.
const updateRetries = 3

// Workspace is a saved canvas.
type Workspace struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	Name        string `gorm:"size:255;not null;index" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	// Canvas is the editor snapshot as JSON.
	Canvas      string    `gorm:"type:text;not null" json:"canvas"`
	Fingerprint string    `gorm:"size:64;index" json:"fingerprint"`
	NodeCount   int       `json:"node_count"`
	EdgeCount   int       `json:"edge_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName implements gorm's tabler.
func (Workspace) TableName() string { return "fmriflow_workspaces" }

// Graph decodes the stored canvas.
func (w *Workspace) Graph() (*workflow.Graph, error) {
	return workflow.ParseCanvas([]byte(w.Canvas))
}

func (w *Workspace) setGraph(g *workflow.Graph) error {
	if g == nil {
		g = &workflow.Graph{}
	}
	data, err := workflow.MarshalCanvas(g)
	if err != nil {
		return fmt.Errorf("failed to encode canvas: %w", err)
	}
	w.Canvas = string(data)
	w.Fingerprint = g.Fingerprint()
	w.NodeCount = len(g.Nodes)
	w.EdgeCount = len(g.Edges)
	return nil
}

// Update is a partial update. Nil fields are left unchanged.
type Update struct {
	Name        *string
	Description *string
	Graph       *workflow.Graph
}

// ListOptions pages List results. Zero Limit means 50.
type ListOptions struct {
	Limit  int
	Offset int
	// Query filters by a case-insensitive name substring.
	Query string
}

// Store persists workspaces.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore creates a store on db.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.With(zap.String("component", "workspace"))}
}

// Migrate creates or updates the workspace table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Workspace{}); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	if len(name) > MaxNameLength {
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, MaxNameLength)
	}
	return name, nil
}

// Create saves a new workspace with a fresh UUID.
func (s *Store) Create(ctx context.Context, name, description string, g *workflow.Graph) (*Workspace, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	w := &Workspace{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
	}
	if err := w.setGraph(g); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(w).Error; err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	s.logger.Info("workspace created",
		zap.String("id", w.ID),
		zap.String("name", w.Name),
		zap.Int("nodes", w.NodeCount),
	)
	return w, nil
}

// Get loads a workspace by ID.
func (s *Store) Get(ctx context.Context, id string) (*Workspace, error) {
	var w Workspace
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return &w, nil
}

// List returns workspaces, most recently updated first, and the total count.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Workspace, int64, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	q := s.db.WithContext(ctx).Model(&Workspace{})
	if query := strings.TrimSpace(opts.Query); query != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(query)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count workspaces: %w", err)
	}

	var items []Workspace
	err := q.Order("updated_at DESC").Order("id").Limit(opts.Limit).Offset(opts.Offset).Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return items, total, nil
}

// Update applies u to the workspace and returns the saved record.
func (s *Store) Update(ctx context.Context, id string, u Update) (*Workspace, error) {
	var out *Workspace
	err := database.TransactionWithRetry(ctx, s.db, updateRetries, s.logger, func(tx *gorm.DB) error {
		var w Workspace
		err := tx.Where("id = ?", id).First(&w).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to get workspace: %w", err)
		}

		if u.Name != nil {
			name, err := normalizeName(*u.Name)
			if err != nil {
				return err
			}
			w.Name = name
		}
		if u.Description != nil {
			w.Description = *u.Description
		}
		if u.Graph != nil {
			if err := w.setGraph(u.Graph); err != nil {
				return err
			}
		}
		if err := tx.Save(&w).Error; err != nil {
			return fmt.Errorf("failed to update workspace: %w", err)
		}
		out = &w
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("workspace updated", zap.String("id", id))
	return out, nil
}

// Delete removes a workspace.
func (s *Store) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Workspace{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete workspace: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.logger.Info("workspace deleted", zap.String("id", id))
	return nil
}
